package rc

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/dgrid/dgrid/lib/predicate"
	"github.com/dgrid/dgrid/lib/serialization"
)

// Class name and ids of the test fixture factory
const (
	IdentifiedFactoryClass        = "dgrid.test.IdentifiedFactory"
	IdentifiedFactoryID     int32 = 66
	CustomComparatorClassID int32 = 2
)

// Comparison types of the CustomComparator
const (
	ComparatorNatural int32 = 0
	ComparatorReverse int32 = 1
	ComparatorLength  int32 = 2
)

// CustomComparator orders the keys, values or entries of a paging query
// depending on IterationType; the zero value orders by key. Type selects
// natural, reverse or string length order.
type CustomComparator struct {
	Type          int32
	IterationType predicate.IterationType
}

func (c *CustomComparator) FactoryID() int32 { return IdentifiedFactoryID }
func (c *CustomComparator) ClassID() int32   { return CustomComparatorClassID }

func (c *CustomComparator) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteInt32(c.Type)
	out.WriteString(c.IterationType.String())
	return nil
}

func (c *CustomComparator) ReadData(in *serialization.ObjectDataInput) (err error) {
	c.Type = in.ReadInt32()
	iterationType := in.ReadString()
	if in.Err() != nil {
		return in.Err()
	}
	c.IterationType, err = predicate.ParseIterationType(iterationType)
	return err
}

func (c *CustomComparator) Compare(a, b predicate.Entry) int {
	x, y := a.Value, b.Value
	if c.IterationType == predicate.IterationKey {
		x, y = a.Key, b.Key
	}

	switch c.Type {
	case ComparatorReverse:
		return -naturalOrder(x, y)
	case ComparatorLength:
		return cmp.Compare(len(fmt.Sprint(x)), len(fmt.Sprint(y)))
	default:
		return naturalOrder(x, y)
	}
}

// IdentifiedFactory creates the fixture classes by class id
func IdentifiedFactory(classID int32) serialization.IdentifiedDataSerializable {
	if classID == CustomComparatorClassID {
		return &CustomComparator{}
	}
	return nil
}

// naturalOrder compares numbers numerically and anything else by its string form
func naturalOrder(a, b interface{}) int {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return cmp.Compare(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint8:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
