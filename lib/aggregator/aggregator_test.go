package aggregator

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgrid/dgrid/lib/serialization"
)

func TestRoundTripEveryVariant(t *testing.T) {
	s := serialization.NewService()
	require.NoError(t, Register(s))

	builders := []func(...string) Aggregator{
		Count, Distinct, DoubleAvg, DoubleSum, FixedPointSum, FloatingPointSum,
		IntegerAvg, IntegerSum, LongAvg, LongSum, Max, Min, NumberAvg,
	}
	for _, build := range builders {
		for _, attr := range [][]string{nil, {"price"}} {
			agg := build(attr...)
			t.Run(agg.Kind().String(), func(t *testing.T) {
				data, err := s.ToData(agg)
				require.NoError(t, err)

				payload := data.Payload()
				assert.Equal(t, FactoryID, int32(binary.BigEndian.Uint32(payload[1:5])))
				assert.Equal(t, agg.ClassID(), int32(binary.BigEndian.Uint32(payload[5:9])))

				out, err := s.ToObject(data)
				require.NoError(t, err)
				assert.Equal(t, agg, out)
			})
		}
	}
}

func TestClassIDs(t *testing.T) {
	tests := []struct {
		agg     Aggregator
		classID int32
	}{
		{Count(), 4},
		{Distinct(), 5},
		{DoubleAvg(), 6},
		{DoubleSum(), 7},
		{FixedPointSum(), 8},
		{FloatingPointSum(), 9},
		{IntegerAvg(), 10},
		{IntegerSum(), 11},
		{LongAvg(), 12},
		{LongSum(), 13},
		{Max(), 14},
		{Min(), 15},
		{NumberAvg(), 16},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.classID, tt.agg.ClassID(), tt.agg.Kind().String())
		assert.Equal(t, FactoryID, tt.agg.FactoryID())
	}
}

func TestAttributePath(t *testing.T) {
	assert.Equal(t, "", Max().AttributePath())
	assert.Equal(t, "this", Max("this").AttributePath())
}

func TestFactoryUnknownClass(t *testing.T) {
	assert.Nil(t, Factory(0))
	assert.Nil(t, Factory(99))
}
