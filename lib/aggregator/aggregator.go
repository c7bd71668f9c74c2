package aggregator

import (
	"github.com/dgrid/dgrid/lib/serialization"
)

// FactoryID is the identified factory id of all aggregators.
const FactoryID int32 = -29

// Class ids of the aggregator factory.
const (
	CountClassID            int32 = 4
	DistinctClassID         int32 = 5
	DoubleAvgClassID        int32 = 6
	DoubleSumClassID        int32 = 7
	FixedPointSumClassID    int32 = 8
	FloatingPointSumClassID int32 = 9
	IntegerAvgClassID       int32 = 10
	IntegerSumClassID       int32 = 11
	LongAvgClassID          int32 = 12
	LongSumClassID          int32 = 13
	MaxClassID              int32 = 14
	MinClassID              int32 = 15
	NumberAvgClassID        int32 = 16
)

// Kind names an aggregation.
type Kind int32

const (
	KindCount Kind = iota
	KindDistinct
	KindDoubleAvg
	KindDoubleSum
	KindFixedPointSum
	KindFloatingPointSum
	KindIntegerAvg
	KindIntegerSum
	KindLongAvg
	KindLongSum
	KindMax
	KindMin
	KindNumberAvg
)

var kinds = []struct {
	name    string
	classID int32
}{
	KindCount:            {"Count", CountClassID},
	KindDistinct:         {"Distinct", DistinctClassID},
	KindDoubleAvg:        {"DoubleAvg", DoubleAvgClassID},
	KindDoubleSum:        {"DoubleSum", DoubleSumClassID},
	KindFixedPointSum:    {"FixedPointSum", FixedPointSumClassID},
	KindFloatingPointSum: {"FloatingPointSum", FloatingPointSumClassID},
	KindIntegerAvg:       {"IntegerAvg", IntegerAvgClassID},
	KindIntegerSum:       {"IntegerSum", IntegerSumClassID},
	KindLongAvg:          {"LongAvg", LongAvgClassID},
	KindLongSum:          {"LongSum", LongSumClassID},
	KindMax:              {"Max", MaxClassID},
	KindMin:              {"Min", MinClassID},
	KindNumberAvg:        {"NumberAvg", NumberAvgClassID},
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kinds) {
		return "Unknown"
	}
	return kinds[k].name
}

// Aggregator is a server-side aggregation. The unexported method closes the
// set of implementations to this package.
type Aggregator interface {
	serialization.IdentifiedDataSerializable
	Kind() Kind
	AttributePath() string
	isAggregator()
}

// aggregator holds what every variant sends: the attribute path. Accumulator
// state is always empty on the client and is written as zero values so the
// member receives the layout it expects.
type aggregator struct {
	kind      Kind
	attribute string
}

func (a *aggregator) isAggregator()         {}
func (a *aggregator) Kind() Kind            { return a.kind }
func (a *aggregator) AttributePath() string { return a.attribute }
func (a *aggregator) FactoryID() int32      { return FactoryID }
func (a *aggregator) ClassID() int32        { return kinds[a.kind].classID }

func (a *aggregator) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(a.attribute)
	switch a.kind {
	case KindCount:
		out.WriteInt64(0)
	case KindDistinct:
		out.WriteInt32(0) // empty value set
	case KindDoubleAvg, KindIntegerAvg, KindLongAvg, KindNumberAvg:
		out.WriteFloat64(0)
		out.WriteInt64(0)
	case KindDoubleSum, KindFloatingPointSum:
		out.WriteFloat64(0)
	case KindFixedPointSum, KindIntegerSum, KindLongSum:
		out.WriteInt64(0)
	case KindMax, KindMin:
		return out.WriteObject(nil)
	}
	return nil
}

func (a *aggregator) ReadData(in *serialization.ObjectDataInput) error {
	a.attribute = in.ReadString()
	switch a.kind {
	case KindCount, KindFixedPointSum, KindIntegerSum, KindLongSum:
		in.ReadInt64()
	case KindDistinct:
		n := in.ReadInt32()
		for i := int32(0); i < n && in.Err() == nil; i++ {
			if _, err := in.ReadObject(); err != nil {
				return err
			}
		}
	case KindDoubleAvg, KindIntegerAvg, KindLongAvg, KindNumberAvg:
		in.ReadFloat64()
		in.ReadInt64()
	case KindDoubleSum, KindFloatingPointSum:
		in.ReadFloat64()
	case KindMax, KindMin:
		if _, err := in.ReadObject(); err != nil {
			return err
		}
	}
	return in.Err()
}

// --------------------------------------------------------------------------
// Builders
// --------------------------------------------------------------------------

func newAggregator(kind Kind, attributePath []string) Aggregator {
	a := &aggregator{kind: kind}
	if len(attributePath) > 0 {
		a.attribute = attributePath[0]
	}
	return a
}

// Count counts the matching entries.
func Count(attributePath ...string) Aggregator {
	return newAggregator(KindCount, attributePath)
}

// Distinct returns the set of distinct values.
func Distinct(attributePath ...string) Aggregator {
	return newAggregator(KindDistinct, attributePath)
}

func DoubleAvg(attributePath ...string) Aggregator {
	return newAggregator(KindDoubleAvg, attributePath)
}

func DoubleSum(attributePath ...string) Aggregator {
	return newAggregator(KindDoubleSum, attributePath)
}

// FixedPointSum sums any integral values into a long.
func FixedPointSum(attributePath ...string) Aggregator {
	return newAggregator(KindFixedPointSum, attributePath)
}

// FloatingPointSum sums any numeric values into a double.
func FloatingPointSum(attributePath ...string) Aggregator {
	return newAggregator(KindFloatingPointSum, attributePath)
}

func IntegerAvg(attributePath ...string) Aggregator {
	return newAggregator(KindIntegerAvg, attributePath)
}

func IntegerSum(attributePath ...string) Aggregator {
	return newAggregator(KindIntegerSum, attributePath)
}

func LongAvg(attributePath ...string) Aggregator {
	return newAggregator(KindLongAvg, attributePath)
}

func LongSum(attributePath ...string) Aggregator {
	return newAggregator(KindLongSum, attributePath)
}

func Max(attributePath ...string) Aggregator {
	return newAggregator(KindMax, attributePath)
}

func Min(attributePath ...string) Aggregator {
	return newAggregator(KindMin, attributePath)
}

// NumberAvg averages values of mixed numeric types.
func NumberAvg(attributePath ...string) Aggregator {
	return newAggregator(KindNumberAvg, attributePath)
}

// --------------------------------------------------------------------------
// Factory
// --------------------------------------------------------------------------

// Factory creates zero aggregators by class id.
func Factory(classID int32) serialization.IdentifiedDataSerializable {
	for k, d := range kinds {
		if d.classID == classID {
			return &aggregator{kind: Kind(k)}
		}
	}
	return nil
}

// Register adds the aggregator factory to a serialization service.
func Register(s *serialization.Service) error {
	return s.RegisterFactory(FactoryID, Factory)
}
