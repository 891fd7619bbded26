package record

import (
	"bytes"
	"fmt"
)

// Row layout: one line per record, values in schema order joined by
// Separator, terminated by '\n'. Inside a value '\\', '\n', '\r' and the
// separator are backslash-escaped, so every line splits unambiguously.
const (
	Separator = ','
	escape    = '\\'
)

// EncodeRow renders r against s. Fields missing from r take their default.
// Keys of r unknown to s are ignored; growing the schema is the caller's job.
func EncodeRow(s Schema, r Record) ([]byte, error) {
	var buf bytes.Buffer
	for i, f := range s.Fields {
		v, ok := r[f.Name]
		if !ok {
			v = f.DefaultValue()
		}
		str, err := f.Type.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if i > 0 {
			buf.WriteByte(Separator)
		}
		writeEscaped(&buf, str)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// DecodeRow parses one line (with or without its '\n'). A row written before
// later fields existed has fewer tokens; those fields decode to their default.
func DecodeRow(s Schema, line []byte) (Record, error) {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	tokens, err := splitRow(line)
	if err != nil {
		return nil, err
	}
	out := make(Record, len(s.Fields))
	for i, f := range s.Fields {
		if i >= len(tokens) {
			out[f.Name] = f.DefaultValue()
			continue
		}
		v, err := f.Type.Decode(tokens[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func writeEscaped(buf *bytes.Buffer, s string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case escape:
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case Separator:
			buf.WriteByte(escape)
			buf.WriteByte(Separator)
		default:
			buf.WriteByte(c)
		}
	}
}

func splitRow(line []byte) ([]string, error) {
	var (
		tokens []string
		cur    []byte
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch c {
		case Separator:
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		case escape:
			if i+1 >= len(line) {
				return nil, fmt.Errorf("%w: dangling escape", ErrEncoding)
			}
			i++
			switch line[i] {
			case escape:
				cur = append(cur, escape)
			case 'n':
				cur = append(cur, '\n')
			case 'r':
				cur = append(cur, '\r')
			case Separator:
				cur = append(cur, Separator)
			default:
				return nil, fmt.Errorf("%w: unknown escape \\%c", ErrEncoding, line[i])
			}
		default:
			cur = append(cur, c)
		}
	}
	return append(tokens, string(cur)), nil
}
