package serialization

import "fmt"

// Reserved type ids. They are part of the wire contract with the members and
// must not change.
const (
	TypeNull        int32 = 0
	TypeIdentified  int32 = -2
	TypeByte        int32 = -3
	TypeBool        int32 = -4
	TypeChar        int32 = -5
	TypeShort       int32 = -6
	TypeInt         int32 = -7
	TypeLong        int32 = -8
	TypeFloat       int32 = -9
	TypeDouble      int32 = -10
	TypeString      int32 = -11
	TypeByteArray   int32 = -12
	TypeBoolArray   int32 = -13
	TypeCharArray   int32 = -14
	TypeShortArray  int32 = -15
	TypeIntArray    int32 = -16
	TypeLongArray   int32 = -17
	TypeFloatArray  int32 = -18
	TypeDoubleArray int32 = -19
	TypeStringArray int32 = -20
	TypeUUID        int32 = -21
	TypeList        int32 = -29
)

// TypeDescriptor identifies the logic that encodes and decodes a value. For
// identified data serializable values TypeID is TypeIdentified and the
// FactoryID / ClassID pair selects the implementation. For every other value
// only TypeID is set.
type TypeDescriptor struct {
	TypeID    int32
	FactoryID int32
	ClassID   int32
}

// Identified returns the descriptor of an identified data serializable class.
func Identified(factoryID, classID int32) TypeDescriptor {
	return TypeDescriptor{TypeID: TypeIdentified, FactoryID: factoryID, ClassID: classID}
}

// String returns a readable form used in error messages.
func (t TypeDescriptor) String() string {
	if t.TypeID == TypeIdentified {
		return fmt.Sprintf("identified(factory=%d, class=%d)", t.FactoryID, t.ClassID)
	}
	return fmt.Sprintf("type(%d)", t.TypeID)
}

// ClassName returns the cluster-side class name of a built-in type id. It is
// used by InstanceOf predicates. Unknown ids return an empty string.
func ClassName(typeID int32) string {
	switch typeID {
	case TypeByte:
		return "java.lang.Byte"
	case TypeBool:
		return "java.lang.Boolean"
	case TypeChar:
		return "java.lang.Character"
	case TypeShort:
		return "java.lang.Short"
	case TypeInt:
		return "java.lang.Integer"
	case TypeLong:
		return "java.lang.Long"
	case TypeFloat:
		return "java.lang.Float"
	case TypeDouble:
		return "java.lang.Double"
	case TypeString:
		return "java.lang.String"
	case TypeUUID:
		return "java.util.UUID"
	case TypeList:
		return "java.util.ArrayList"
	case TypeByteArray, TypeBoolArray, TypeCharArray, TypeShortArray, TypeIntArray,
		TypeLongArray, TypeFloatArray, TypeDoubleArray, TypeStringArray:
		return "java.lang.Object[]"
	default:
		return ""
	}
}
