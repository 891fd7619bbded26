package novatswire

import "github.com/tuannm99/novats/internal/record"

// Op names a request type.
type Op string

const (
	OpWrite  Op = "write"
	OpQuery  Op = "query"
	OpCount  Op = "count"
	OpRead   Op = "read"
	OpTables Op = "tables"
	OpDrop   Op = "drop"
	OpDefine Op = "define"
	OpSchema Op = "schema"
	OpCommit Op = "commit"
)

// Request is a single command. Only the fields its Op uses are read.
type Request struct {
	ID    uint64 `json:"id"`
	Op    Op     `json:"op"`
	Table string `json:"table,omitempty"`
	// write
	Records []record.Record `json:"records,omitempty"`
	// query / count
	Start   *float64       `json:"start,omitempty"`
	End     *float64       `json:"end,omitempty"`
	Eq      map[string]any `json:"eq,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Reverse bool           `json:"reverse,omitempty"`
	// read
	Line int `json:"line,omitempty"`
	// define
	Schema *record.Schema `json:"schema,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	ID      uint64          `json:"id"`
	Count   int             `json:"count"`
	Records []record.Record `json:"records,omitempty"`
	Tables  []string        `json:"tables,omitempty"`
	Schema  *record.Schema  `json:"schema,omitempty"`
	Error   string          `json:"error,omitempty"`
}
