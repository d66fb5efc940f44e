package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"html not escaped", String("<a&b>"), `"<a&b>"`},
		{"int", Int(-42), "-42"},
		{"bool", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"sorted keys", Object{"zebra": Int(1), "alpha": Int(2)}, `{"alpha":2,"zebra":1}`},
		{"nested", Object{"z": Object{"b": Int(1), "a": Int(2)}, "a": Array{Int(3)}}, `{"a":[3],"z":{"a":2,"b":1}}`},
		{"line separator", String("a\u2028b"), "\"a\u2028b\""},
		{"escaped backslash kept", String(`\u2028`), `"\\u2028"`},
		{"control escaped", String("a\nb"), `"a\nb"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestMarshalCanonical_NFC(t *testing.T) {
	composed, err := MarshalCanonical(String("caf\u00e9"))
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(String("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonical_RejectsNull(t *testing.T) {
	_, err := MarshalCanonical(Object{"x": Null{}})
	assert.ErrorContains(t, err, "null is forbidden")

	_, err = MarshalCanonical(nil)
	assert.Error(t, err)
}
