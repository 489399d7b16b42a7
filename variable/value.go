package variable

import "fmt"

// Kind is the active alternative of a Value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a tagged union over {int64, float64, string, bool}. The zero
// Value is the integer 0; there is no "no value" alternative because every
// Context entry must hold one of the four kinds at all times.
//
// The public constructors are NewInt, NewFloat, NewString, and NewBool.
// There is deliberately no constructor that accepts a raw string literal and
// silently produces a bool — that conversion hazard is the reason this type
// exists instead of a bare interface{}.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

// NewInt constructs an integer Value.
func NewInt(v int64) Value { return Value{kind: KindInt, i: v} }

// NewFloat constructs a float Value.
func NewFloat(v float64) Value { return Value{kind: KindFloat, f: v} }

// NewString constructs a string Value. This is the only string-accepting
// constructor; there is no implicit conversion from any other type.
func NewString(v string) Value { return Value{kind: KindString, s: v} }

// NewBool constructs a boolean Value from a native bool, never from a
// pointer or string literal.
func NewBool(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind reports the active alternative.
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer alternative and whether v holds one.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the float alternative and whether v holds one.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Str returns the string alternative and whether v holds one.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Bool returns the boolean alternative and whether v holds one.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Equal compares two Values for equality; Values of different kinds are
// never equal, even when numerically comparable (1 != 1.0).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindBool:
		return v.b == other.b
	default:
		return false
	}
}

// String renders v for display and for use in Messages/logs.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return "<invalid>"
	}
}

// Map is the shared dictionary a Context exposes, keyed by validated Name.
type Map map[Name]Value

// Clone returns a shallow copy of m (Values are immutable, so this is also
// a deep copy in effect).
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
