package server

import (
	"bytes"
	"cmp"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// number widens a numeric value. isInt reports an integral type.
func number(v interface{}) (i int64, f float64, isInt bool, ok bool) {
	switch n := v.(type) {
	case uint8:
		return int64(n), float64(n), true, true
	case uint16:
		return int64(n), float64(n), true, true
	case int16:
		return int64(n), float64(n), true, true
	case int32:
		return int64(n), float64(n), true, true
	case int64:
		return n, float64(n), true, true
	case int:
		return int64(n), float64(n), true, true
	case float32:
		return int64(n), float64(n), false, true
	case float64:
		return int64(n), n, false, true
	}
	return 0, 0, false, false
}

// compareValues orders two attribute values. Integers compare exactly, mixed
// numbers as float64. ok is false if the values are not comparable.
func compareValues(a, b interface{}) (c int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if ai, af, aInt, aok := number(a); aok {
		bi, bf, bInt, bok := number(b)
		if !bok {
			return 0, false
		}
		if aInt && bInt {
			return cmp.Compare(ai, bi), true
		}
		return cmp.Compare(af, bf), true
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case bv:
				return -1, true
			default:
				return 1, true
			}
		}
	case uuid.UUID:
		if bv, ok := b.(uuid.UUID); ok {
			return bytes.Compare(av[:], bv[:]), true
		}
	}
	return 0, false
}

func equalValues(a, b interface{}) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}
