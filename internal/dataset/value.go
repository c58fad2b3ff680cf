package dataset

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	Null ValueKind = iota
	IntVal
	FloatVal
	StringVal
)

// String returns the kind name used in logs.
func (k ValueKind) String() string {
	switch k {
	case IntVal:
		return "int"
	case FloatVal:
		return "float"
	case StringVal:
		return "string"
	default:
		return "null"
	}
}

// Value is a single cell or a coerced filter operand.
// The zero Value is null.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: IntVal, i: v} }

// Float returns a floating point Value.
func Float(v float64) Value { return Value{kind: FloatVal, f: v} }

// String returns a text Value.
func String(v string) Value { return Value{kind: StringVal, s: v} }

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is the null marker.
func (v Value) IsNull() bool { return v.kind == Null }

// Equal reports exact type-and-value equality. Values of different kinds are
// never equal, so Int(3) does not equal Float(3) and nulls match nothing.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case IntVal:
		return v.i == o.i
	case FloatVal:
		return v.f == o.f
	case StringVal:
		return v.s == o.s
	default:
		return false
	}
}

// Interface returns the value as a plain Go value for encoding: nil, int64,
// float64 or string. Non-finite floats have no JSON form and come back as nil.
func (v Value) Interface() any {
	switch v.kind {
	case IntVal:
		return v.i
	case FloatVal:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil
		}
		return v.f
	case StringVal:
		return v.s
	default:
		return nil
	}
}

// String formats v for logs and error messages; null prints as "null".
func (v Value) String() string {
	switch v.kind {
	case IntVal:
		return strconv.FormatInt(v.i, 10)
	case FloatVal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case StringVal:
		return v.s
	default:
		return "null"
	}
}

// Coerce converts a raw filter operand into a typed Value. A string containing
// "." is tried as a float, anything else as an integer; when the parse fails
// the original string is kept.
// Surrounding whitespace is ignored by the numeric parses only.
func Coerce(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return Float(f)
		}
		return String(raw)
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return Int(i)
	}
	return String(raw)
}
