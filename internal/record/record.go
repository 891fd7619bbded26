package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Record maps field names to typed values. A decoded record always carries
// TimeField as float64 epoch seconds.
type Record map[string]any

// Time returns the record's timestamp, normalized to epoch seconds.
func (r Record) Time() (float64, bool, error) {
	v, ok := r[TimeField]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, err := NormalizeTime(v)
	if err != nil {
		return 0, true, err
	}
	return f, true, nil
}

// Matches reports whether every key in eq holds an equal value in r.
func (r Record) Matches(eq map[string]any) bool {
	for k, want := range eq {
		got, ok := r[k]
		if !ok || !ValueEqual(got, want) {
			return false
		}
	}
	return true
}

// NormalizeTime converts a raw epoch number or a calendar time into epoch
// seconds with sub-second precision. Strings may be numeric or RFC 3339.
func NormalizeTime(v any) (float64, error) {
	switch x := v.(type) {
	case time.Time:
		return epoch(x), nil
	case *time.Time:
		if x == nil {
			return 0, nil
		}
		return epoch(*x), nil
	case string:
		s := strings.TrimSpace(x)
		if f, err := parseNumber(s); err == nil {
			return f, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a time", ErrEncoding, x)
		}
		return epoch(t), nil
	case json.Number:
		return parseNumber(x.String())
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %T as time", ErrEncoding, v)
	}
	return finite(f)
}

func epoch(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// ValueEqual compares decoded values loosely enough for filters coming from
// JSON: any two numbers compare by value.
func ValueEqual(a, b any) bool {
	fa, aNum := number(a)
	fb, bNum := number(b)
	if aNum && bNum {
		return fa == fb
	}
	if aNum != bNum {
		return false
	}
	return a == b
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return cast.ToFloat64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
