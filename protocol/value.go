package protocol

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindNone
	KindStructured
)

// maxExactInt is 2^63; floats at or above it do not fit int64.
const maxExactInt = float64(math.MaxInt64)

// Value is a typed parameter value carried by a Message. The zero Value
// is the empty string.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	v    interface{}
}

// String builds a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int builds an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float builds a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// None builds the null value.
func None() Value { return Value{kind: KindNone} }

// Structured wraps an arbitrary JSON-encodable value (maps, slices).
// Structured values travel inside the reserved json parameter.
func Structured(v interface{}) Value { return Value{kind: KindStructured, v: v} }

// Kind reports the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload, or "" for non-string values.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// Int64 returns the integer payload, or 0 for non-integer values.
func (v Value) Int64() int64 {
	if v.kind == KindInt {
		return v.i
	}
	return 0
}

// Float64 returns the float payload, or 0 for non-float values.
func (v Value) Float64() float64 {
	if v.kind == KindFloat {
		return v.f
	}
	return 0
}

// Bool returns the boolean payload, or false for non-boolean values.
func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.b
	}
	return false
}

// Any returns the payload boxed as a plain Go value: string, int64,
// float64, bool, nil, or the wrapped structured value.
func (v Value) Any() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindStructured:
		return v.v
	}
	return nil
}

// String renders v in the typed wire syntax: strings stay untagged,
// other kinds carry their type tag. Floats with a zero fractional part
// are written as int: and lose their floatness on the next decode.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return "int:" + strconv.FormatInt(v.i, 10)
	case KindFloat:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < maxExactInt {
			return "int:" + strconv.FormatInt(int64(v.f), 10)
		}
		return "float:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		if v.b {
			return "bool:True"
		}
		return "bool:False"
	case KindNone:
		return "NoneType:"
	case KindStructured:
		b, err := json.Marshal(v.v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return v.s
}

// ParseValue interprets the typed wire syntax. Tags are matched
// case-insensitively; any text that does not parse as a tagged value
// comes back unchanged as a string, so parsing never fails.
func ParseValue(text string) Value {
	i := strings.IndexByte(text, ':')
	if i < 0 {
		return String(text)
	}
	payload := text[i+1:]
	switch strings.ToLower(text[:i]) {
	case "int":
		if n, err := strconv.ParseInt(payload, 10, 64); err == nil {
			return Int(n)
		}
	case "float":
		if f, err := strconv.ParseFloat(payload, 64); err == nil {
			return Float(f)
		}
	case "bool":
		switch strings.ToLower(payload) {
		case "true":
			return Bool(true)
		case "false":
			return Bool(false)
		}
	case "nonetype":
		if payload == "" {
			return None()
		}
	}
	return String(text)
}

// fromJSON maps a decoded JSON value onto the value union. JSON numbers
// arrive as float64; integral ones become Int.
func fromJSON(v interface{}) Value {
	switch t := v.(type) {
	case string:
		return String(t)
	case float64:
		if t == math.Trunc(t) && t >= math.MinInt64 && t < maxExactInt {
			return Int(int64(t))
		}
		return Float(t)
	case bool:
		return Bool(t)
	case nil:
		return None()
	}
	return Structured(v)
}
