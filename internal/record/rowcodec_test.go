package record

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTestSchema builds a simple schema used across tests.
func makeTestSchema(t *testing.T) Schema {
	t.Helper()
	s, err := NewSchema(false,
		Field{Name: "a", Type: TypeInt},
		Field{Name: "b", Type: TypeString},
		Field{Name: "score", Type: TypeFloat, Default: 0.5},
	)
	require.NoError(t, err)
	return s
}

func TestEncodeDecodeRow_RoundTrip(t *testing.T) {
	s := makeTestSchema(t)

	line, err := EncodeRow(s, Record{"time": 1571234567.125, "a": 1, "b": "x", "score": 2.25})
	require.NoError(t, err)
	require.Equal(t, "1571234567.125,1,x,2.25\n", string(line))

	row, err := DecodeRow(s, line)
	require.NoError(t, err)
	require.Equal(t, Record{"time": 1571234567.125, "a": int64(1), "b": "x", "score": 2.25}, row)
}

func TestEncodeRow_Defaults(t *testing.T) {
	s := makeTestSchema(t)

	line, err := EncodeRow(s, Record{"time": 10.0})
	require.NoError(t, err)
	require.Equal(t, "10,0,,0.5\n", string(line))
}

func TestEncodeDecodeRow_Escaping(t *testing.T) {
	s := makeTestSchema(t)
	tricky := "line1\nline2\r\nback\\slash,comma \\n literal"

	line, err := EncodeRow(s, Record{"time": 1.0, "b": tricky})
	require.NoError(t, err)
	// exactly one line terminator, at the end
	require.Equal(t, 1, countByte(line, '\n'))
	require.Equal(t, byte('\n'), line[len(line)-1])
	require.NotContains(t, string(line), "\r")

	row, err := DecodeRow(s, line)
	require.NoError(t, err)
	require.Equal(t, tricky, row["b"])
}

func TestDecodeRow_ShortRowUsesDefaults(t *testing.T) {
	s := makeTestSchema(t)

	row, err := DecodeRow(s, []byte("5,3\n"))
	require.NoError(t, err)
	assert.Equal(t, 5.0, row["time"])
	assert.Equal(t, int64(3), row["a"])
	assert.Equal(t, "", row["b"])
	assert.Equal(t, 0.5, row["score"])
}

func TestDecodeRow_Errors(t *testing.T) {
	s := makeTestSchema(t)

	_, err := DecodeRow(s, []byte("5,abc\n"))
	require.ErrorIs(t, err, ErrEncoding)

	_, err = DecodeRow(s, []byte(`5,1,bad\q`))
	require.ErrorIs(t, err, ErrEncoding)

	_, err = DecodeRow(s, []byte(`5,1,dangling\`))
	require.ErrorIs(t, err, ErrEncoding)
}

func TestFieldType_Conversions(t *testing.T) {
	cases := []struct {
		typ  FieldType
		in   any
		want string
	}{
		{TypeString, "abc", "abc"},
		{TypeString, 12, "12"},
		{TypeString, nil, ""},
		{TypeInt, 3.9, "3"},
		{TypeInt, "-2.5", "-2"},
		{TypeInt, json.Number("42"), "42"},
		{TypeInt, "", "0"},
		{TypeFloat, "1e3", "1000"},
		{TypeFloat, 7, "7"},
		{TypeTime, int64(1600000000), "1600000000"},
		{TypeTime, time.Unix(1600000000, 500_000_000), "1600000000.5"},
	}
	for _, c := range cases {
		got, err := c.typ.Encode(c.in)
		require.NoError(t, err, "%s %v", c.typ, c.in)
		assert.Equal(t, c.want, got, "%s %v", c.typ, c.in)
	}

	_, err := TypeInt.Encode("not a number")
	require.ErrorIs(t, err, ErrEncoding)
	_, err = TypeFloat.Encode([]int{1})
	require.ErrorIs(t, err, ErrEncoding)

	v, err := TypeInt.Decode("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
	v, err = TypeFloat.Decode("")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestNormalizeTime(t *testing.T) {
	f, err := NormalizeTime("2020-09-13T12:26:40.25Z")
	require.NoError(t, err)
	require.InDelta(t, 1600000000.25, f, 1e-6)

	f, err = NormalizeTime(int32(5))
	require.NoError(t, err)
	require.Equal(t, 5.0, f)

	_, err = NormalizeTime("yesterday")
	require.ErrorIs(t, err, ErrEncoding)

	for _, v := range []any{"NaN", "nan", "Inf", "-infinity", json.Number("NaN"), math.NaN(), math.Inf(1)} {
		_, err = NormalizeTime(v)
		require.ErrorIs(t, err, ErrEncoding, "%v", v)
	}
}

func TestFieldType_RejectsNonFinite(t *testing.T) {
	for _, typ := range []FieldType{TypeInt, TypeFloat, TypeTime} {
		for _, v := range []any{"NaN", "Inf", "-Inf", math.NaN(), math.Inf(1), math.Inf(-1)} {
			_, err := typ.Encode(v)
			require.ErrorIs(t, err, ErrEncoding, "%s %v", typ, v)
		}
	}
	_, err := TypeFloat.Decode("NaN")
	require.ErrorIs(t, err, ErrEncoding)
}

func TestRecord_Matches(t *testing.T) {
	r := Record{"time": 1.0, "a": int64(1), "b": "x"}

	require.True(t, r.Matches(nil))
	require.True(t, r.Matches(map[string]any{"a": 1.0, "b": "x"}))
	require.True(t, r.Matches(map[string]any{"a": json.Number("1")}))
	require.False(t, r.Matches(map[string]any{"a": "1"}))
	require.False(t, r.Matches(map[string]any{"missing": ""}))
}

func countByte(b []byte, c byte) int {
	n := 0
	for _, x := range b {
		if x == c {
			n++
		}
	}
	return n
}
