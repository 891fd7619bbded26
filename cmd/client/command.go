package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/server/novatswire"
)

const helpText = `commands:
  tables                               list tables
  schema <table>                       show the schema
  define <table> <schema json>         replace the schema, e.g.
                                       {"fields":[{"name":"v","type":"float"}],"field_lock":true}
  write <table> <json object|array>    append one record or a batch
  read <table> <line>                  read one record by line number
  query <table> [opts] [field=value]   read a time range
  count <table> [opts] [field=value]   count a time range
  drop <table>                         delete a table
  commit                               persist all tables

query/count opts:
  start=<epoch|RFC3339>  end=<epoch|RFC3339>  limit=<n>  reverse

meta commands:
  \q | quit | exit       quit
  \history               print history
  \help                  show help`

// parseCommand turns one input line into a request.
func parseCommand(line string) (novatswire.Request, error) {
	op, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	req := novatswire.Request{Op: novatswire.Op(strings.ToLower(op))}
	rest = strings.TrimSpace(rest)

	switch req.Op {
	case novatswire.OpTables, novatswire.OpCommit:
		if rest != "" {
			return req, fmt.Errorf("%s takes no arguments", op)
		}
		return req, nil
	case novatswire.OpDrop, novatswire.OpSchema, novatswire.OpRead,
		novatswire.OpWrite, novatswire.OpDefine,
		novatswire.OpQuery, novatswire.OpCount:
	default:
		return req, fmt.Errorf("unknown command %q (try \\help)", op)
	}

	req.Table, rest, _ = strings.Cut(rest, " ")
	rest = strings.TrimSpace(rest)
	if req.Table == "" {
		return req, fmt.Errorf("%s: missing table", op)
	}

	switch req.Op {
	case novatswire.OpDrop, novatswire.OpSchema:
		if rest != "" {
			return req, fmt.Errorf("%s takes only a table", op)
		}
	case novatswire.OpRead:
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return req, fmt.Errorf("read: bad line %q", rest)
		}
		req.Line = n
	case novatswire.OpWrite:
		rs, err := parseRecords(rest)
		if err != nil {
			return req, fmt.Errorf("write: %w", err)
		}
		req.Records = rs
	case novatswire.OpDefine:
		var s record.Schema
		if err := decodeJSON(rest, &s); err != nil {
			return req, fmt.Errorf("define: %w", err)
		}
		req.Schema = &s
	case novatswire.OpQuery, novatswire.OpCount:
		if err := parseQueryArgs(&req, strings.Fields(rest)); err != nil {
			return req, fmt.Errorf("%s: %w", op, err)
		}
	}
	return req, nil
}

func parseRecords(s string) ([]record.Record, error) {
	if strings.HasPrefix(s, "[") {
		var rs []record.Record
		if err := decodeJSON(s, &rs); err != nil {
			return nil, err
		}
		return rs, nil
	}
	var r record.Record
	if err := decodeJSON(s, &r); err != nil {
		return nil, err
	}
	return []record.Record{r}, nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return fmt.Errorf("missing json")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	return dec.Decode(v)
}

func parseQueryArgs(req *novatswire.Request, args []string) error {
	for _, arg := range args {
		if arg == "reverse" {
			req.Reverse = true
			continue
		}
		key, val, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return fmt.Errorf("bad argument %q", arg)
		}
		switch key {
		case "start", "end":
			st, err := record.NormalizeTime(val)
			if err != nil {
				return err
			}
			if key == "start" {
				req.Start = &st
			} else {
				req.End = &st
			}
		case "limit":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return fmt.Errorf("bad limit %q", val)
			}
			req.Limit = n
		default:
			if req.Eq == nil {
				req.Eq = make(map[string]any)
			}
			req.Eq[key] = filterValue(val)
		}
	}
	return nil
}

// filterValue reads numbers as numbers; quote a value to compare it as text.
func filterValue(s string) any {
	if uq, err := strconv.Unquote(s); err == nil {
		return uq
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return json.Number(s)
	}
	return s
}

// columns orders record keys: time first, then by name.
func columns(rs []record.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range rs {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	delete(seen, record.TimeField)

	cols := make([]string, 0, len(seen)+1)
	for k := range seen {
		cols = append(cols, k)
	}
	slices.Sort(cols)
	return append([]string{record.TimeField}, cols...)
}

func printResponse(resp *novatswire.Response, req novatswire.Request) {
	switch {
	case req.Op == novatswire.OpTables:
		for _, name := range resp.Tables {
			fmt.Println(name)
		}
		fmt.Printf("(%d tables)\n", len(resp.Tables))
	case resp.Schema != nil:
		for _, f := range resp.Schema.Fields {
			if f.Default != nil {
				fmt.Printf("%-20s %-8s default=%v\n", f.Name, f.Type, f.Default)
				continue
			}
			fmt.Printf("%-20s %s\n", f.Name, f.Type)
		}
		if resp.Schema.Locked {
			fmt.Println("(locked)")
		}
	case req.Op == novatswire.OpQuery || req.Op == novatswire.OpRead:
		printRecords(resp.Records)
	case req.Op == novatswire.OpCount:
		fmt.Println(resp.Count)
	case req.Op == novatswire.OpWrite:
		fmt.Printf("OK (%d written)\n", resp.Count)
	default:
		fmt.Println("OK")
	}
}

func printRecords(rs []record.Record) {
	cols := columns(rs)

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	cells := make([][]string, len(rs))
	for j, r := range rs {
		row := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := r[c]; ok && v != nil {
				row[i] = fmt.Sprintf("%v", v)
			}
			widths[i] = max(widths[i], len(row[i]))
		}
		cells[j] = row
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Print(" | ")
			}
			fmt.Print(padRight(values[i], widths[i]))
		}
		fmt.Println()
	}

	printRow(cols)
	for i := range cols {
		if i > 0 {
			fmt.Print("-+-")
		}
		fmt.Print(strings.Repeat("-", widths[i]))
	}
	fmt.Println()
	for _, row := range cells {
		printRow(row)
	}
	fmt.Printf("(%d rows)\n", len(rs))
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
