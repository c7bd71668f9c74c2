package util

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/rpc/common"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}
	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the cluster connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	defaults := common.DefaultClientConfig()

	key := "cluster-name"
	cmd.PersistentFlags().String(key, defaults.ClusterName, WrapString("Name of the cluster to join"))

	key = "addresses"
	cmd.PersistentFlags().String(key, strings.Join(defaults.Addresses, ","), WrapString("Comma-separated list of member addresses used to bootstrap the cluster view"))

	key = "timeout"
	cmd.PersistentFlags().Duration(key, defaults.InvocationTimeout, WrapString("Timeout of a single operation including all retries"))

	key = "retries"
	cmd.PersistentFlags().Int(key, defaults.RetryCount, WrapString("How many times a failed operation is retried"))

	key = "connect-timeout"
	cmd.PersistentFlags().Duration(key, defaults.ConnectTimeout, WrapString("Timeout for opening a connection to a member"))

	key = "heartbeat-interval"
	cmd.PersistentFlags().Duration(key, defaults.HeartbeatInterval, WrapString("Interval between two heartbeats on an idle connection"))

	key = "heartbeat-timeout"
	cmd.PersistentFlags().Duration(key, defaults.HeartbeatTimeout, WrapString("A connection that received nothing for this long is closed"))

	key = "smart-routing"
	cmd.PersistentFlags().Bool(key, defaults.SmartRouting, WrapString("Send key based operations directly to the partition owner"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, defaults.Socket.TCPNoDelay, WrapString("Whether to enable TCP_NODELAY on member connections"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, defaults.Socket.ReadBufferSize/1024, WrapString("The size of the socket read buffer (in KB)"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, defaults.Socket.WriteBufferSize/1024, WrapString("The size of the socket write buffer (in KB)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads .env files and makes viper read DGRID_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dgrid")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() common.ClientConfig {
	conf := common.DefaultClientConfig()
	conf.ClusterName = viper.GetString("cluster-name")
	conf.Addresses = splitList(viper.GetString("addresses"))
	conf.InvocationTimeout = viper.GetDuration("timeout")
	conf.RetryCount = viper.GetInt("retries")
	conf.ConnectTimeout = viper.GetDuration("connect-timeout")
	conf.HeartbeatInterval = viper.GetDuration("heartbeat-interval")
	conf.HeartbeatTimeout = viper.GetDuration("heartbeat-timeout")
	conf.SmartRouting = viper.GetBool("smart-routing")
	conf.Socket.TCPNoDelay = viper.GetBool("tcp-nodelay")
	conf.Socket.ReadBufferSize = viper.GetInt("read-buffer") * 1024
	conf.Socket.WriteBufferSize = viper.GetInt("write-buffer") * 1024
	conf.LogLevel = viper.GetString("log-level")
	return conf
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// ParseValue converts a command line argument to the value stored in the
// grid: integers become int64, decimals float64, true/false bool and
// everything else stays a string. A value in single quotes is always a
// string.
func ParseValue(arg string) interface{} {
	if len(arg) >= 2 && strings.HasPrefix(arg, "'") && strings.HasSuffix(arg, "'") {
		return arg[1 : len(arg)-1]
	}
	if i, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(arg); err == nil && (arg == "true" || arg == "false") {
		return b
	}
	return arg
}

// ParseWhere returns the predicate of a --where expression, an empty
// expression matches every entry
func ParseWhere(expression string) predicate.Predicate {
	if strings.TrimSpace(expression) == "" {
		return predicate.True()
	}
	return predicate.Sql(expression)
}

// Elapsed formats the duration since start for command output
func Elapsed(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
