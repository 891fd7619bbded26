package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_AddFieldInsertsTime(t *testing.T) {
	var s Schema
	require.NoError(t, s.AddField(Field{Name: "a", Type: TypeInt}))

	require.Equal(t, []string{"time", "a"}, s.Names())
	assert.Equal(t, TypeTime, s.Fields[0].Type)

	err := s.AddField(Field{Name: "a", Type: TypeString})
	require.ErrorIs(t, err, ErrDuplicateField)

	err = s.AddField(Field{Name: "time", Type: TypeTime})
	require.ErrorIs(t, err, ErrDuplicateField)
}

func TestSchema_ExplicitTimeField(t *testing.T) {
	s, err := NewSchema(false,
		Field{Name: "time", Type: TypeTime},
		Field{Name: "v", Type: TypeFloat, Default: 1.5},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"time", "v"}, s.Names())

	_, err = NewSchema(false, Field{Name: "time", Type: TypeInt})
	require.ErrorIs(t, err, ErrTimeField)
}

func TestSchema_BadFields(t *testing.T) {
	var s Schema
	require.ErrorIs(t, s.AddField(Field{Name: ""}), ErrBadFieldName)
	require.ErrorIs(t, s.AddField(Field{Name: "x", Type: FieldType(9)}), ErrUnknownType)
	require.ErrorIs(t, s.AddField(Field{Name: "x", Type: TypeInt, Default: "nope"}), ErrEncoding)
	require.Empty(t, s.Fields)
}

func TestSchema_ExtendReturnsCopy(t *testing.T) {
	s, err := NewSchema(false, Field{Name: "a", Type: TypeInt})
	require.NoError(t, err)

	next, err := s.Extend("b", "c")
	require.NoError(t, err)
	require.Equal(t, []string{"time", "a", "b", "c"}, next.Names())
	require.Equal(t, []string{"time", "a"}, s.Names())

	f, ok := next.Field("c")
	require.True(t, ok)
	assert.Equal(t, TypeString, f.Type)
	assert.Equal(t, "", f.DefaultValue())

	empty, err := Schema{}.Extend("x")
	require.NoError(t, err)
	require.Equal(t, []string{"time", "x"}, empty.Names())
}

func TestSchema_JSON(t *testing.T) {
	s, err := NewSchema(true,
		Field{Name: "n", Type: TypeInt, Default: 7},
		Field{Name: "name", Type: TypeString},
	)
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.Contains(t, string(data), `"type":"int"`)
	require.Contains(t, string(data), `"field_lock":true`)

	var got Schema
	require.NoError(t, json.Unmarshal(data, &got))
	require.NoError(t, got.Validate())
	require.True(t, got.Locked)
	require.Equal(t, s.Names(), got.Names())

	// json numbers come back as float64; the typed default is still int64.
	f, _ := got.Field("n")
	assert.Equal(t, int64(7), f.DefaultValue())
}

func TestSchema_ValidateRejectsMisplacedTime(t *testing.T) {
	s := Schema{Fields: []Field{{Name: "a"}, {Name: "time", Type: TypeTime}}}
	require.ErrorIs(t, s.Validate(), ErrTimeField)

	s = Schema{Fields: []Field{{Name: "time", Type: TypeTime}, {Name: "a"}, {Name: "a"}}}
	require.ErrorIs(t, s.Validate(), ErrDuplicateField)
}
