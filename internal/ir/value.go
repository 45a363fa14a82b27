package ir

import (
	"fmt"
	"strconv"
)

// Kind identifies the concrete type held by a Value.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindEnum
	KindVector
	KindOpaque
)

// String returns the lowercase kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindVector:
		return "vector"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a sealed interface over the runtime value kinds the engine
// moves between argument caches and run memory. Only Bool, Int, Float,
// String, Enum, Vector, and Opaque implement it.
//
// Unwrap returns the canonical Go representation (bool, int64, float64,
// string, Enum, Vector, or the opaque payload) used by the checked
// accessor As.
type Value interface {
	value() // sealed
	Kind() Kind
	Unwrap() any
	String() string
}

// Bool is a boolean value.
type Bool bool

func (Bool) value()        {}
func (Bool) Kind() Kind    { return KindBool }
func (v Bool) Unwrap() any { return bool(v) }
func (v Bool) String() string {
	return strconv.FormatBool(bool(v))
}

// Int is a 64-bit integer value.
type Int int64

func (Int) value()        {}
func (Int) Kind() Kind    { return KindInt }
func (v Int) Unwrap() any { return int64(v) }
func (v Int) String() string {
	return strconv.FormatInt(int64(v), 10)
}

// Float is a 64-bit floating point value.
type Float float64

func (Float) value()        {}
func (Float) Kind() Kind    { return KindFloat }
func (v Float) Unwrap() any { return float64(v) }
func (v Float) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

// String is a text value.
type String string

func (String) value()           {}
func (String) Kind() Kind       { return KindString }
func (v String) Unwrap() any    { return string(v) }
func (v String) String() string { return string(v) }

// Enum is an enum-ish label: textual on the wire but distinct from String
// so a parser that resolved a label set cannot be re-read as free text.
type Enum string

func (Enum) value()           {}
func (Enum) Kind() Kind       { return KindEnum }
func (v Enum) Unwrap() any    { return v }
func (v Enum) String() string { return string(v) }

// Vector is a three-component float vector.
type Vector struct {
	X, Y, Z float64
}

func (Vector) value()        {}
func (Vector) Kind() Kind    { return KindVector }
func (v Vector) Unwrap() any { return v }
func (v Vector) String() string {
	return fmt.Sprintf("(%s, %s, %s)",
		strconv.FormatFloat(v.X, 'g', -1, 64),
		strconv.FormatFloat(v.Y, 'g', -1, 64),
		strconv.FormatFloat(v.Z, 'g', -1, 64))
}

// Opaque carries a host payload the engine does not interpret. The
// recorded dynamic type is checked on every read via As, so a wrong
// downcast surfaces as a failed lookup instead of a panic.
type Opaque struct {
	V any
}

func (Opaque) value()        {}
func (Opaque) Kind() Kind    { return KindOpaque }
func (v Opaque) Unwrap() any { return v.V }
func (v Opaque) String() string {
	return fmt.Sprintf("%v", v.V)
}

// From converts a Go value into a Value. Native numeric types collapse to
// Int/Float; anything outside the union is wrapped as Opaque. A nil input
// returns nil.
func From(v any) Value {
	switch x := v.(type) {
	case nil:
		return nil
	case Value:
		return x
	case bool:
		return Bool(x)
	case int:
		return Int(x)
	case int32:
		return Int(x)
	case int64:
		return Int(x)
	case float32:
		return Float(x)
	case float64:
		return Float(x)
	case string:
		return String(x)
	default:
		return Opaque{V: v}
	}
}

// As reads a Value as T, where T is one of the canonical representations
// (bool, int64, float64, string, Enum, Vector) or the dynamic type of an
// Opaque payload. Returns false when the kinds do not line up.
func As[T any](v Value) (T, bool) {
	var zero T
	if v == nil {
		return zero, false
	}
	t, ok := v.Unwrap().(T)
	if !ok {
		return zero, false
	}
	return t, true
}
