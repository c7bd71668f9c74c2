package predicate

import (
	"fmt"
	"strings"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
)

// IterationType selects what a paged query orders and returns.
type IterationType int32

const (
	IterationKey IterationType = iota
	IterationValue
	IterationEntry
)

func (t IterationType) String() string {
	switch t {
	case IterationKey:
		return "KEY"
	case IterationValue:
		return "VALUE"
	case IterationEntry:
		return "ENTRY"
	default:
		return fmt.Sprintf("IterationType(%d)", int32(t))
	}
}

// ParseIterationType parses the wire name of an iteration type.
func ParseIterationType(s string) (IterationType, error) {
	switch strings.ToUpper(s) {
	case "KEY":
		return IterationKey, nil
	case "VALUE":
		return IterationValue, nil
	case "ENTRY":
		return IterationEntry, nil
	}
	return 0, errs.Newf(errs.CodeSerialization, "unknown iteration type %q", s)
}

// Entry is a decoded key/value pair handed to comparators.
type Entry struct {
	Key   interface{}
	Value interface{}
}

// Comparator orders query results. Implementations are user types shipped to
// the cluster by (factory id, class id); the member evaluates Compare with its
// own registration of the same class.
type Comparator interface {
	serialization.IdentifiedDataSerializable
	// Compare returns a negative number, zero or a positive number when a is
	// less than, equal to or greater than b.
	Compare(a, b Entry) int
}

// Extractable is implemented by values whose attributes can be queried by
// name. The attributes "this" and "__key" are resolved by the member itself.
type Extractable interface {
	Attribute(name string) (value interface{}, ok bool)
}
