package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"uint64 literal", Number("18446744073709551615"), "18446744073709551615"},
		{"fraction", Number("1.50"), "1.5"},
		{"integral fraction", Number("2.0"), "2"},
		{"large exponent", Number("1e21"), "1e+21"},
		{"small exponent", Number("0.0000001"), "1e-7"},
		{"plain exponent", Number("1.5e3"), "1500"},
		{"negative zero", Number("-0.0"), "0"},
		{"null", Null{}, "null"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array", Array{Int(1), Null{}, String("x")}, `[1,null,"x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := Object{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Object{"y": Int(1), "x": Int(2)},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":2,"y":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	result, err := MarshalCanonical(String("<a href=\"x\">&</a>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a href=\"x\">&</a>"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))
}

func TestMarshalCanonicalControlCharacters(t *testing.T) {
	result, err := MarshalCanonical(String("tab\there\nnew\x01\\"))
	require.NoError(t, err)
	assert.Equal(t, `"tab\there\nnew\u0001\\"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	decomposed, err := MarshalCanonical(String("cafe\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(String("caf\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, string(composed), string(decomposed))
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	obj := Object{"c": Int(3), "a": Int(1), "b": Array{Object{"z": Null{}, "y": Bool(true)}}}

	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMarshalCanonicalErrors(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(Number("1e400"))
	assert.Error(t, err)

	_, err = MarshalCanonical(Array{Int(1), nil})
	assert.ErrorContains(t, err, "array[1]")
}

func TestMarshalJSONUsesCanonicalForm(t *testing.T) {
	wrapper := struct {
		Value Value `json:"value"`
	}{Value: Object{"b": Int(1), "a": String("<")}}

	data, err := json.Marshal(wrapper)
	require.NoError(t, err)
	// encoding/json re-escapes HTML characters emitted by MarshalJSON.
	assert.Equal(t, `{"value":{"a":"\u003c","b":1}}`, string(data))
}

func TestParseThenCanonical(t *testing.T) {
	v, err := Parse([]byte(`{ "nickname" : "Alice", "age": 30, "score": 9.50 }`))
	require.NoError(t, err)

	result, err := MarshalCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"age":30,"nickname":"Alice","score":9.5}`, string(result))
}
