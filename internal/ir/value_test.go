package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("x")
	var _ Value = Int(1)
	var _ Value = Bool(true)
	var _ Value = Array{String("a")}
	var _ Value = Object{"k": Int(1)}
}

func TestObject_SortedKeysUTF16(t *testing.T) {
	obj := Object{"a": Int(1), "A": Int(2), "aa": Int(3), "Aa": Int(4), "AA": Int(5)}
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aa"}, obj.SortedKeys())

	// U+FFFD sorts after the surrogate pair encoding of U+1F600 in UTF-16,
	// the opposite of UTF-8 byte order.
	obj = Object{"\uFFFD": Int(1), "\U0001F600": Int(2)}
	assert.Equal(t, []string{"\U0001F600", "\uFFFD"}, obj.SortedKeys())
}

func TestObject_JSONRoundTrip(t *testing.T) {
	in := Object{
		"role":    String("EXECUTE_ROLE"),
		"index":   Int(3),
		"granted": Bool(true),
		"targets": Array{String("0x01"), String("0x02")},
		"nested":  Object{"n": Null{}},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `{"granted":true,"index":3,"nested":{"n":null},"role":"EXECUTE_ROLE","targets":["0x01","0x02"]}`, string(data))

	var out Object
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestParseValue_RejectsFloatsAndNull(t *testing.T) {
	_, err := ParseValue([]byte(`{"amount": 1.5}`))
	assert.ErrorContains(t, err, "floats are not allowed")

	_, err = ParseValue([]byte(`[1, null]`))
	assert.ErrorContains(t, err, "null is not allowed")

	v, err := ParseValue([]byte(`{"amount": "1000000000000000000000"}`))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", v.(Object).Str("amount"))
}

func TestObject_UnmarshalRejectsNonObject(t *testing.T) {
	var obj Object
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &obj))
}
