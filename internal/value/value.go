package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over JSON values.
// Only Null, Bool, String, Int, Number, Array and Object implement it.
type Value interface {
	jsonValue() // Sealed - only these types implement it
}

// Null represents a JSON null.
type Null struct{}

func (Null) jsonValue() {}

// Bool represents a JSON boolean.
type Bool bool

func (Bool) jsonValue() {}

// String represents a JSON string.
type String string

func (String) jsonValue() {}

// Int represents a JSON integer that fits in int64.
type Int int64

func (Int) jsonValue() {}

// Number represents any other JSON number (fractions, exponents, integers
// beyond int64). The literal text is kept so that nothing is lost before
// canonicalization.
type Number string

func (Number) jsonValue() {}

// Array represents a JSON array.
type Array []Value

func (Array) jsonValue() {}

// Object represents a JSON object.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) jsonValue() {}

// MarshalJSON implementations emit canonical bytes so that values embedded
// in larger structures serialize deterministically.

func (v Null) MarshalJSON() ([]byte, error)   { return MarshalCanonical(v) }
func (v Bool) MarshalJSON() ([]byte, error)   { return MarshalCanonical(v) }
func (v String) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }
func (v Int) MarshalJSON() ([]byte, error)    { return MarshalCanonical(v) }
func (v Number) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }
func (v Array) MarshalJSON() ([]byte, error)  { return MarshalCanonical(v) }
func (v Object) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Get returns the member named key.
func (o Object) Get(key string) (Value, bool) {
	v, ok := o[key]
	return v, ok
}

// String returns the member named key if it is a JSON string.
func (o Object) String(key string) (string, bool) {
	s, ok := o[key].(String)
	return string(s), ok
}

// Object returns the member named key if it is a JSON object.
func (o Object) Object(key string) (Object, bool) {
	obj, ok := o[key].(Object)
	return obj, ok
}

// Uint64 returns the member named key if it is a JSON integer in [0, 2^64).
func (o Object) Uint64(key string) (uint64, bool) {
	switch n := o[key].(type) {
	case Int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case Number:
		u, err := strconv.ParseUint(string(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return u, true
	default:
		return 0, false
	}
}

// Uint64Value returns the narrowest Value holding u.
func Uint64Value(u uint64) Value {
	if u <= math.MaxInt64 {
		return Int(int64(u))
	}
	return Number(strconv.FormatUint(u, 10))
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Parse decodes a single JSON document into a Value.
// Numbers are decoded with UseNumber so integers above 2^53 keep every digit.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse json: trailing data after document")
	}

	return FromAny(raw)
}

// FromAny converts a decoded Go value (encoding/json, yaml.v3) into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint:
		return Uint64Value(uint64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		return Uint64Value(val), nil
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return Int(int64(val)), nil
		}
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return nil, fmt.Errorf("non-finite number %v", val)
		}
		return Number(strconv.FormatFloat(val, 'g', -1, 64)), nil
	case json.Number:
		return numberFromLiteral(string(val)), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToAny converts a Value back into plain Go values (maps, slices, strings,
// int64, json.Number) for encoders that do not know about this package.
func ToAny(v Value) any {
	switch val := v.(type) {
	case Null, nil:
		return nil
	case Bool:
		return bool(val)
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Number:
		return json.Number(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

func numberFromLiteral(lit string) Value {
	if isIntegerLiteral(lit) {
		if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return Int(n)
		}
	}
	return Number(lit)
}

func isIntegerLiteral(lit string) bool {
	return lit != "" && !strings.ContainsAny(lit, ".eE")
}

// Equal reports whether a and b are the same JSON value.
// Numbers are compared by canonical form, so 1.50 equals 1.5.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Int, Number:
		if _, ok := b.(Int); !ok {
			if _, ok := b.(Number); !ok {
				return false
			}
		}
		ca, errA := MarshalCanonical(a)
		cb, errB := MarshalCanonical(b)
		return errA == nil && errB == nil && bytes.Equal(ca, cb)
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y, ok := b.(Object)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}
