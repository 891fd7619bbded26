package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

var (
	ErrEncoding       = errors.New("record: value cannot be converted to field type")
	ErrUnknownType    = errors.New("record: unknown field type")
	ErrDuplicateField = errors.New("record: duplicate field name")
	ErrBadFieldName   = errors.New("record: invalid field name")
	ErrTimeField      = errors.New("record: time field must be first and of type time")
)

// FieldType is the closed set of column types. Each type owns one pair of
// conversions: Encode (value -> storage string) and Decode (storage string -> value).
type FieldType uint8

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeTime
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeTime:
		return "time"
	default:
		return "unknown"
	}
}

func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "":
		return TypeString, nil
	case "int":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	case "time":
		return TypeTime, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

func (t FieldType) MarshalText() ([]byte, error) {
	if t > TypeTime {
		return nil, ErrUnknownType
	}
	return []byte(t.String()), nil
}

func (t *FieldType) UnmarshalText(b []byte) error {
	ft, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = ft
	return nil
}

// Encode renders v in its storage form.
func (t FieldType) Encode(v any) (string, error) {
	switch t {
	case TypeString:
		if v == nil {
			return "", nil
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return "", fmt.Errorf("%w: %T as string", ErrEncoding, v)
		}
		return s, nil
	case TypeInt:
		n, err := toInt64(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case TypeFloat:
		f, err := toFloat64(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case TypeTime:
		f, err := NormalizeTime(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return "", ErrUnknownType
	}
}

// Decode parses a storage string. Numeric types read "" as zero.
func (t FieldType) Decode(s string) (any, error) {
	switch t {
	case TypeString:
		return s, nil
	case TypeInt:
		f, err := parseNumber(s)
		if err != nil {
			return nil, err
		}
		return truncate(f)
	case TypeFloat, TypeTime:
		return parseNumber(s)
	default:
		return nil, ErrUnknownType
	}
}

// Zero is the value a field of this type decodes to when nothing was stored.
func (t FieldType) Zero() any {
	switch t {
	case TypeInt:
		return int64(0)
	case TypeFloat, TypeTime:
		return float64(0)
	default:
		return ""
	}
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrEncoding, s)
	}
	return finite(f)
}

// finite rejects NaN and infinities, which neither sort nor survive JSON.
func finite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrEncoding, f)
	}
	return f, nil
}

func truncate(f float64) (int64, error) {
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v overflows int", ErrEncoding, f)
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return parseNumber(x)
	case json.Number:
		return parseNumber(x.String())
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %T as float", ErrEncoding, v)
	}
	return finite(f)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case string:
		f, err := parseNumber(x)
		if err != nil {
			return 0, err
		}
		return truncate(f)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := parseNumber(x.String())
		if err != nil {
			return 0, err
		}
		return truncate(f)
	case float32:
		return truncate(float64(x))
	case float64:
		return truncate(x)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %T as int", ErrEncoding, v)
	}
	return n, nil
}

// Field is one named, typed column.
type Field struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Default any       `json:"default,omitempty"`
}

// DefaultValue returns the typed value rows without stored data decode to.
func (f Field) DefaultValue() any {
	if f.Default == nil {
		return f.Type.Zero()
	}
	s, err := f.Type.Encode(f.Default)
	if err != nil {
		return f.Type.Zero()
	}
	v, err := f.Type.Decode(s)
	if err != nil {
		return f.Type.Zero()
	}
	return v
}

func (f Field) validate() error {
	if f.Name == "" || strings.ContainsAny(f.Name, "\r\n") {
		return fmt.Errorf("%w: %q", ErrBadFieldName, f.Name)
	}
	if f.Type > TypeTime {
		return fmt.Errorf("%w: field %q", ErrUnknownType, f.Name)
	}
	if f.Default != nil {
		if _, err := f.Type.Encode(f.Default); err != nil {
			return fmt.Errorf("default of %q: %w", f.Name, err)
		}
	}
	return nil
}
