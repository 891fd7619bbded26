// Package novats is the top-level facade for the novats time-series engine.
package novats

import (
	"github.com/tuannm99/novats/internal/engine"
	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/internal/storage"
	"github.com/tuannm99/novats/internal/table"
)

type (
	Database = engine.Database
	Options  = engine.Options
	Table    = table.Table
	Cursor   = table.Cursor
	Record   = record.Record
	Schema   = record.Schema
	Field    = record.Field
)

const (
	TypeString = record.TypeString
	TypeInt    = record.TypeInt
	TypeFloat  = record.TypeFloat
	TypeTime   = record.TypeTime

	DurabilitySafe = storage.DurabilitySafe
	DurabilityFast = storage.DurabilityFast
)

// Open opens the database stored in dir.
func Open(dir string, opts Options) (*Database, error) {
	return engine.Open(dir, opts)
}

// NewSchema builds a schema; the time field is added first.
func NewSchema(locked bool, fields ...Field) (Schema, error) {
	return record.NewSchema(locked, fields...)
}

// Bound returns a query bound at v.
func Bound(v float64) *float64 { return table.Bound(v) }
