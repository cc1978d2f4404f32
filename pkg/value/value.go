// Package value defines the values scripts operate on.
//
// A nil Value is the "empty" value. Arithmetic and comparisons that see an
// empty operand produce empty, which gives conditions their third state
// (see Truth).
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindArray
	KindHash
	KindStructType
	KindStruct
	KindCallable
)

var kindNames = [...]string{
	KindEmpty:      "empty",
	KindInt:        "integer",
	KindFloat:      "float",
	KindBool:       "boolean",
	KindString:     "string",
	KindArray:      "array",
	KindHash:       "hash",
	KindStructType: "structure type",
	KindStruct:     "structure",
	KindCallable:   "subroutine",
}

// String returns the user-facing name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a script value.
type Value interface {
	Kind() Kind
	String() string
}

// Serializable is implemented by values that know whether they can be
// written into a saved process image. Values that do not implement it are
// treated as serializable iff their kind is a plain data kind.
type Serializable interface {
	IsSerializable() bool
}

// KindOf returns the kind of v; KindEmpty for nil.
func KindOf(v Value) Kind {
	if v == nil {
		return KindEmpty
	}
	return v.Kind()
}

// ToString formats v for display; the empty value formats as "".
func ToString(v Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

// Int is a 32-bit script integer.
type Int int32

func (Int) Kind() Kind       { return KindInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is a script floating-point number.
type Float float64

func (Float) Kind() Kind { return KindFloat }
func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// Bool is a script boolean.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (b Bool) String() string {
	if b {
		return "YES"
	}
	return "NO"
}

// String is a script string.
type String string

func (String) Kind() Kind       { return KindString }
func (s String) String() string { return string(s) }

// ---------------------------------------------------------------------------
// Truth
// ---------------------------------------------------------------------------

// Tristate is the result of evaluating a value as a condition.
type Tristate int8

const (
	Empty Tristate = iota - 1
	False
	True
)

// Truth evaluates v as a condition.
func Truth(v Value) Tristate {
	switch x := v.(type) {
	case nil:
		return Empty
	case Bool:
		if x {
			return True
		}
		return False
	case Int:
		if x != 0 {
			return True
		}
		return False
	case Float:
		if x != 0 {
			return True
		}
		return False
	case String:
		if x != "" {
			return True
		}
		return False
	default:
		return True
	}
}

// FromTristate converts a Tristate back into a value (nil for Empty).
func FromTristate(t Tristate) Value {
	switch t {
	case True:
		return Bool(true)
	case False:
		return Bool(false)
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Serializability
// ---------------------------------------------------------------------------

// IsSerializable reports whether v can be stored in a saved process image.
func IsSerializable(v Value) bool {
	return isSerializable(v, make(map[Value]bool))
}

func isSerializable(v Value, seen map[Value]bool) bool {
	switch x := v.(type) {
	case nil, Int, Float, Bool, String, *StructType:
		return true
	case *Array:
		if seen[x] {
			return true
		}
		seen[x] = true
		for _, e := range x.elems {
			if !isSerializable(e, seen) {
				return false
			}
		}
		return true
	case *Hash:
		if seen[x] {
			return true
		}
		seen[x] = true
		for _, k := range x.keys {
			if !isSerializable(x.m[k], seen) {
				return false
			}
		}
		return true
	case *Struct:
		if seen[x] {
			return true
		}
		seen[x] = true
		for _, f := range x.Fields {
			if !isSerializable(f, seen) {
				return false
			}
		}
		return true
	case Serializable:
		return x.IsSerializable()
	default:
		return false
	}
}

// quote renders a value the way it appears inside container listings.
func quote(v Value) string {
	if s, ok := v.(String); ok {
		return strconv.Quote(string(s))
	}
	if v == nil {
		return "EMPTY"
	}
	return v.String()
}

func joinQuoted(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = quote(v)
	}
	return strings.Join(parts, ", ")
}
