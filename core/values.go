package core

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// Kind identifies the type of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is a typed scalar that can be exchanged between processes.
// The zero Value is nil.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	raw  []byte
}

// Values is an ordered sequence of Value, the unit of one exchange.
type Values []Value

// NilValue returns the nil Value.
func NilValue() Value { return Value{} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue wraps an int64.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue wraps a float64.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// BytesValue wraps a byte slice. The slice is not copied until the value
// is sent.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// FromGo converts a Go scalar into a Value.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return NilValue(), nil
	case Value:
		return x, nil
	case bool:
		return BoolValue(x), nil
	case int:
		return IntValue(int64(x)), nil
	case int8:
		return IntValue(int64(x)), nil
	case int16:
		return IntValue(int64(x)), nil
	case int32:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil
	case uint8:
		return IntValue(int64(x)), nil
	case uint16:
		return IntValue(int64(x)), nil
	case uint32:
		return IntValue(int64(x)), nil
	case float32:
		return FloatValue(float64(x)), nil
	case float64:
		return FloatValue(x), nil
	case string:
		return StringValue(x), nil
	case []byte:
		return BytesValue(x), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// ValuesOf converts a list of Go scalars into Values.
func ValuesOf(args ...any) (Values, error) {
	out := make(Values, 0, len(args))
	for i, arg := range args {
		v, err := FromGo(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is the nil Value.
func (v Value) IsNil() bool { return v.kind == KindNil }

// AsBool returns the bool held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the int64 held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns v as a float64. Ints are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsBytes returns the bytes held by v.
func (v Value) AsBytes() ([]byte, bool) { return v.raw, v.kind == KindBytes }

// Truthy reports whether v counts as true. Only nil and false do not.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}

// Equal reports whether two values have the same kind and contents.
// An int and a float compare equal when numerically equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		a, okA := v.AsFloat()
		b, okB := o.AsFloat()
		return okA && okB && a == b
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	default:
		return false
	}
}

// String returns the printable form of the value.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("%x", v.raw)
	default:
		return "<invalid>"
	}
}

// Strings returns the printable form of each value.
func (vs Values) Strings() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// wireValue is the CBOR form of a Value.
type wireValue struct {
	_     struct{} `cbor:",toarray"`
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("core: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// EncodeValues serializes values into a payload owned by nobody but the
// caller. Later changes to the inputs do not affect the payload.
func EncodeValues(values Values) ([]byte, error) {
	wire := make([]wireValue, len(values))
	for i, v := range values {
		if v.kind > KindBytes {
			return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedValue, v.kind)
		}
		wire[i] = wireValue{Kind: v.kind, Bool: v.b, Int: v.i, Float: v.f, Str: v.s, Bytes: v.raw}
	}
	return cborEncMode.Marshal(wire)
}

// DecodeValues rebuilds values from a payload produced by EncodeValues.
func DecodeValues(data []byte) (Values, error) {
	if len(data) == 0 {
		return Values{}, nil
	}
	var wire []wireValue
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	out := make(Values, len(wire))
	for i, w := range wire {
		switch w.Kind {
		case KindNil:
		case KindBool:
			out[i] = BoolValue(w.Bool)
		case KindInt:
			out[i] = IntValue(w.Int)
		case KindFloat:
			out[i] = FloatValue(w.Float)
		case KindString:
			out[i] = StringValue(w.Str)
		case KindBytes:
			if w.Bytes == nil {
				w.Bytes = []byte{}
			}
			out[i] = BytesValue(w.Bytes)
		default:
			return nil, fmt.Errorf("%w: unknown kind %d at index %d", ErrDecode, w.Kind, i)
		}
	}
	return out, nil
}
