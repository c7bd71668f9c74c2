package util

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgrid/dgrid/lib/predicate"
)

func TestWrapString(t *testing.T) {
	wrapped := WrapString("the quick brown fox jumps over the lazy dog and keeps running until the line is long")
	for _, line := range splitLines(wrapped) {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "", WrapString(""))
}

func TestParseValue(t *testing.T) {
	testCases := []struct {
		arg  string
		want interface{}
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"2.5", 2.5},
		{"true", true},
		{"false", false},
		{"TRUE", "TRUE"},
		{"hello", "hello"},
		{"'42'", "42"},
		{"''", ""},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ParseValue(tc.arg), tc.arg)
	}
}

func TestParseWhere(t *testing.T) {
	assert.Equal(t, predicate.True(), ParseWhere("  "))
	assert.Equal(t, predicate.Sql("this > 1"), ParseWhere("this > 1"))
}

func TestGetClientConfig(t *testing.T) {
	defer viper.Reset()
	cmd := &cobra.Command{Use: "test"}
	SetupClientFlags(cmd)
	require.NoError(t, cmd.PersistentFlags().Parse([]string{
		"--cluster-name", "prod",
		"--addresses", "10.0.0.1:5701, 10.0.0.2:5701,",
		"--retries", "3",
		"--read-buffer", "64",
	}))
	require.NoError(t, viper.BindPFlags(cmd.PersistentFlags()))

	conf := GetClientConfig()
	assert.Equal(t, "prod", conf.ClusterName)
	assert.Equal(t, []string{"10.0.0.1:5701", "10.0.0.2:5701"}, conf.Addresses)
	assert.Equal(t, 3, conf.RetryCount)
	assert.Equal(t, 64*1024, conf.Socket.ReadBufferSize)
	assert.NoError(t, conf.Validate())
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}
