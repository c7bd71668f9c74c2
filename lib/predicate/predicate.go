package predicate

import (
	"fmt"
	"reflect"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
)

// FactoryID is the identified factory id of all predicates.
const FactoryID int32 = -20

// Class ids of the predicate factory. They are part of the wire contract.
const (
	SqlClassID         int32 = 0
	AndClassID         int32 = 1
	BetweenClassID     int32 = 2
	EqualClassID       int32 = 3
	GreaterLessClassID int32 = 4
	LikeClassID        int32 = 5
	ILikeClassID       int32 = 6
	InClassID          int32 = 7
	InstanceOfClassID  int32 = 8
	NotEqualClassID    int32 = 9
	NotClassID         int32 = 10
	OrClassID          int32 = 11
	RegexClassID       int32 = 12
	FalseClassID       int32 = 13
	TrueClassID        int32 = 14
	PagingClassID      int32 = 15
)

// Predicate is a query condition evaluated by the cluster. The unexported
// method closes the set of implementations to this package.
type Predicate interface {
	serialization.IdentifiedDataSerializable
	isPredicate()
}

// --------------------------------------------------------------------------
// Leaf Predicates
// --------------------------------------------------------------------------

// SqlPredicate carries a raw expression evaluated by the cluster.
type SqlPredicate struct {
	Expression string
}

// EqualPredicate matches entries whose attribute equals Value.
type EqualPredicate struct {
	Attribute string
	Value     interface{}
}

// NotEqualPredicate matches entries whose attribute differs from Value.
type NotEqualPredicate struct {
	Attribute string
	Value     interface{}
}

// GreaterLessPredicate covers >, >=, < and <=.
type GreaterLessPredicate struct {
	Attribute string
	Value     interface{}
	Equal     bool
	Less      bool
}

// BetweenPredicate matches From <= attribute <= To.
type BetweenPredicate struct {
	Attribute string
	From      interface{}
	To        interface{}
}

// InPredicate matches entries whose attribute is one of Values.
type InPredicate struct {
	Attribute string
	Values    []interface{}
}

// LikePredicate matches a SQL LIKE pattern (% and _ wildcards).
type LikePredicate struct {
	Attribute  string
	Expression string
}

// ILikePredicate is the case-insensitive LikePredicate.
type ILikePredicate struct {
	Attribute  string
	Expression string
}

// RegexPredicate matches a regular expression against the whole attribute.
type RegexPredicate struct {
	Attribute string
	Regex     string
}

// InstanceOfPredicate matches values of the given cluster-side class.
type InstanceOfPredicate struct {
	ClassName string
}

// TruePredicate matches everything.
type TruePredicate struct{}

// FalsePredicate matches nothing.
type FalsePredicate struct{}

// --------------------------------------------------------------------------
// Composite Predicates
// --------------------------------------------------------------------------

// AndPredicate matches when all children match.
type AndPredicate struct {
	Predicates []Predicate
}

// OrPredicate matches when at least one child matches.
type OrPredicate struct {
	Predicates []Predicate
}

// NotPredicate negates its child.
type NotPredicate struct {
	Predicate Predicate
}

// --------------------------------------------------------------------------
// Identified Data Serializable
// --------------------------------------------------------------------------

func (*SqlPredicate) isPredicate()         {}
func (*EqualPredicate) isPredicate()       {}
func (*NotEqualPredicate) isPredicate()    {}
func (*GreaterLessPredicate) isPredicate() {}
func (*BetweenPredicate) isPredicate()     {}
func (*InPredicate) isPredicate()          {}
func (*LikePredicate) isPredicate()        {}
func (*ILikePredicate) isPredicate()       {}
func (*RegexPredicate) isPredicate()       {}
func (*InstanceOfPredicate) isPredicate()  {}
func (*TruePredicate) isPredicate()        {}
func (*FalsePredicate) isPredicate()       {}
func (*AndPredicate) isPredicate()         {}
func (*OrPredicate) isPredicate()          {}
func (*NotPredicate) isPredicate()         {}

func (*SqlPredicate) FactoryID() int32         { return FactoryID }
func (*EqualPredicate) FactoryID() int32       { return FactoryID }
func (*NotEqualPredicate) FactoryID() int32    { return FactoryID }
func (*GreaterLessPredicate) FactoryID() int32 { return FactoryID }
func (*BetweenPredicate) FactoryID() int32     { return FactoryID }
func (*InPredicate) FactoryID() int32          { return FactoryID }
func (*LikePredicate) FactoryID() int32        { return FactoryID }
func (*ILikePredicate) FactoryID() int32       { return FactoryID }
func (*RegexPredicate) FactoryID() int32       { return FactoryID }
func (*InstanceOfPredicate) FactoryID() int32  { return FactoryID }
func (*TruePredicate) FactoryID() int32        { return FactoryID }
func (*FalsePredicate) FactoryID() int32       { return FactoryID }
func (*AndPredicate) FactoryID() int32         { return FactoryID }
func (*OrPredicate) FactoryID() int32          { return FactoryID }
func (*NotPredicate) FactoryID() int32         { return FactoryID }

func (*SqlPredicate) ClassID() int32         { return SqlClassID }
func (*EqualPredicate) ClassID() int32       { return EqualClassID }
func (*NotEqualPredicate) ClassID() int32    { return NotEqualClassID }
func (*GreaterLessPredicate) ClassID() int32 { return GreaterLessClassID }
func (*BetweenPredicate) ClassID() int32     { return BetweenClassID }
func (*InPredicate) ClassID() int32          { return InClassID }
func (*LikePredicate) ClassID() int32        { return LikeClassID }
func (*ILikePredicate) ClassID() int32       { return ILikeClassID }
func (*RegexPredicate) ClassID() int32       { return RegexClassID }
func (*InstanceOfPredicate) ClassID() int32  { return InstanceOfClassID }
func (*TruePredicate) ClassID() int32        { return TrueClassID }
func (*FalsePredicate) ClassID() int32       { return FalseClassID }
func (*AndPredicate) ClassID() int32         { return AndClassID }
func (*OrPredicate) ClassID() int32          { return OrClassID }
func (*NotPredicate) ClassID() int32         { return NotClassID }

func (p *SqlPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.Expression)
	return nil
}

func (p *SqlPredicate) ReadData(in *serialization.ObjectDataInput) error {
	p.Expression = in.ReadString()
	return in.Err()
}

func (p *EqualPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.Attribute)
	return out.WriteObject(p.Value)
}

func (p *EqualPredicate) ReadData(in *serialization.ObjectDataInput) (err error) {
	p.Attribute = in.ReadString()
	p.Value, err = in.ReadObject()
	return err
}

func (p *NotEqualPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.Attribute)
	return out.WriteObject(p.Value)
}

func (p *NotEqualPredicate) ReadData(in *serialization.ObjectDataInput) (err error) {
	p.Attribute = in.ReadString()
	p.Value, err = in.ReadObject()
	return err
}

func (p *GreaterLessPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.Attribute)
	if err := out.WriteObject(p.Value); err != nil {
		return err
	}
	out.WriteBool(p.Equal)
	out.WriteBool(p.Less)
	return nil
}

func (p *GreaterLessPredicate) ReadData(in *serialization.ObjectDataInput) (err error) {
	p.Attribute = in.ReadString()
	if p.Value, err = in.ReadObject(); err != nil {
		return err
	}
	p.Equal = in.ReadBool()
	p.Less = in.ReadBool()
	return in.Err()
}

// WriteData writes the upper bound before the lower bound, matching the
// member-side field order.
func (p *BetweenPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.Attribute)
	if err := out.WriteObject(p.To); err != nil {
		return err
	}
	return out.WriteObject(p.From)
}

func (p *BetweenPredicate) ReadData(in *serialization.ObjectDataInput) (err error) {
	p.Attribute = in.ReadString()
	if p.To, err = in.ReadObject(); err != nil {
		return err
	}
	p.From, err = in.ReadObject()
	return err
}

func (p *InPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.Attribute)
	out.WriteInt32(int32(len(p.Values)))
	for _, v := range p.Values {
		if err := out.WriteObject(v); err != nil {
			return err
		}
	}
	return nil
}

func (p *InPredicate) ReadData(in *serialization.ObjectDataInput) error {
	p.Attribute = in.ReadString()
	n := in.ReadInt32()
	if err := checkCount(in, n); err != nil {
		return err
	}
	p.Values = nil
	for i := int32(0); i < n; i++ {
		v, err := in.ReadObject()
		if err != nil {
			return err
		}
		p.Values = append(p.Values, v)
	}
	return nil
}

func (p *LikePredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.Attribute)
	out.WriteString(p.Expression)
	return nil
}

func (p *LikePredicate) ReadData(in *serialization.ObjectDataInput) error {
	p.Attribute = in.ReadString()
	p.Expression = in.ReadString()
	return in.Err()
}

func (p *ILikePredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.Attribute)
	out.WriteString(p.Expression)
	return nil
}

func (p *ILikePredicate) ReadData(in *serialization.ObjectDataInput) error {
	p.Attribute = in.ReadString()
	p.Expression = in.ReadString()
	return in.Err()
}

func (p *RegexPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.Attribute)
	out.WriteString(p.Regex)
	return nil
}

func (p *RegexPredicate) ReadData(in *serialization.ObjectDataInput) error {
	p.Attribute = in.ReadString()
	p.Regex = in.ReadString()
	return in.Err()
}

func (p *InstanceOfPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	out.WriteString(p.ClassName)
	return nil
}

func (p *InstanceOfPredicate) ReadData(in *serialization.ObjectDataInput) error {
	p.ClassName = in.ReadString()
	return in.Err()
}

func (*TruePredicate) WriteData(*serialization.ObjectDataOutput) error { return nil }
func (*TruePredicate) ReadData(*serialization.ObjectDataInput) error   { return nil }

func (*FalsePredicate) WriteData(*serialization.ObjectDataOutput) error { return nil }
func (*FalsePredicate) ReadData(*serialization.ObjectDataInput) error   { return nil }

func (p *AndPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	return writePredicates(out, p.Predicates)
}

func (p *AndPredicate) ReadData(in *serialization.ObjectDataInput) (err error) {
	p.Predicates, err = readPredicates(in)
	return err
}

func (p *OrPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	return writePredicates(out, p.Predicates)
}

func (p *OrPredicate) ReadData(in *serialization.ObjectDataInput) (err error) {
	p.Predicates, err = readPredicates(in)
	return err
}

func (p *NotPredicate) WriteData(out *serialization.ObjectDataOutput) error {
	return out.WriteObject(p.Predicate)
}

func (p *NotPredicate) ReadData(in *serialization.ObjectDataInput) (err error) {
	p.Predicate, err = readPredicate(in)
	return err
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func writePredicates(out *serialization.ObjectDataOutput, predicates []Predicate) error {
	out.WriteInt32(int32(len(predicates)))
	for _, p := range predicates {
		if err := out.WriteObject(p); err != nil {
			return err
		}
	}
	return nil
}

func readPredicates(in *serialization.ObjectDataInput) ([]Predicate, error) {
	n := in.ReadInt32()
	if err := checkCount(in, n); err != nil {
		return nil, err
	}
	var predicates []Predicate
	for i := int32(0); i < n; i++ {
		p, err := readPredicate(in)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, p)
	}
	return predicates, nil
}

// readPredicate reads a nested object and requires it to be a predicate
func readPredicate(in *serialization.ObjectDataInput) (Predicate, error) {
	v, err := in.ReadObject()
	if err != nil {
		return nil, err
	}
	p, ok := v.(Predicate)
	if !ok {
		return nil, errs.Newf(errs.CodeSerialization, "bad tag: expected a predicate, got %T", v)
	}
	return p, nil
}

// checkCount validates an element count read from the wire; each element
// needs at least its 4 byte type id
func checkCount(in *serialization.ObjectDataInput, n int32) error {
	if in.Err() != nil {
		return in.Err()
	}
	if n < 0 || int(n)*4 > in.Remaining() {
		return errs.Newf(errs.CodeSerialization, "malformed payload: bad element count %d", n)
	}
	return nil
}

// isNil reports whether p is nil or a typed nil pointer
func isNil(p interface{}) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

func mustNotBeNil(op string, predicates ...Predicate) {
	for i, p := range predicates {
		if isNil(p) {
			panic(fmt.Sprintf("predicate: %s operand %d is nil", op, i))
		}
	}
}
