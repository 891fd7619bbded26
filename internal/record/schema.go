package record

import "fmt"

// TimeField is the name of the mandatory first column.
const TimeField = "time"

// Schema is the ordered field list of a table. Values are stored
// positionally, so fields are only ever appended.
type Schema struct {
	Fields []Field `json:"fields"`
	// Locked forbids growing the schema from unknown keys in written records.
	Locked bool `json:"field_lock"`
}

// NewSchema builds a schema from fields, inserting the time field first when
// the caller did not.
func NewSchema(locked bool, fields ...Field) (Schema, error) {
	s := Schema{Locked: locked}
	for _, f := range fields {
		if err := s.AddField(f); err != nil {
			return Schema{}, err
		}
	}
	return s, nil
}

func (s Schema) NumFields() int { return len(s.Fields) }

// AddField appends f. The time field is inserted automatically on the first
// addition; an explicit time field is only accepted as that first field.
func (s *Schema) AddField(f Field) error {
	if err := f.validate(); err != nil {
		return err
	}
	if f.Name == TimeField {
		if len(s.Fields) > 0 {
			if s.Fields[0].Name == TimeField {
				return fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
			}
			return ErrTimeField
		}
		if f.Type != TypeTime {
			return ErrTimeField
		}
		s.Fields = append(s.Fields, f)
		return nil
	}
	if s.Index(f.Name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
	}
	if len(s.Fields) == 0 || s.Fields[0].Name != TimeField {
		s.Fields = append([]Field{{Name: TimeField, Type: TypeTime}}, s.Fields...)
	}
	s.Fields = append(s.Fields, f)
	return nil
}

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Field(name string) (Field, bool) {
	i := s.Index(name)
	if i < 0 {
		return Field{}, false
	}
	return s.Fields[i], true
}

func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

func (s Schema) Clone() Schema {
	fs := make([]Field, len(s.Fields))
	copy(fs, s.Fields)
	return Schema{Fields: fs, Locked: s.Locked}
}

// Extend returns a copy of s with one string field (default "") per name
// appended. s itself is left untouched so the caller can commit the new
// version as a single step.
func (s Schema) Extend(names ...string) (Schema, error) {
	next := s.Clone()
	if len(next.Fields) == 0 {
		next.Fields = append(next.Fields, Field{Name: TimeField, Type: TypeTime})
	}
	for _, n := range names {
		if err := next.AddField(Field{Name: n, Type: TypeString}); err != nil {
			return Schema{}, err
		}
	}
	return next, nil
}

// Validate checks a schema loaded from disk.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return nil
	}
	if s.Fields[0].Name != TimeField || s.Fields[0].Type != TypeTime {
		return ErrTimeField
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if err := f.validate(); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}
