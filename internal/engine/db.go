package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/internal/storage"
	"github.com/tuannm99/novats/internal/table"
)

var (
	ErrDatabaseClosed = errors.New("novats: database is closed")
	ErrBadTableName   = errors.New("novats: invalid table name")
)

// table names become file name prefixes: <name>-db.csv
var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

type Options struct {
	Fs          afero.Fs
	Durability  storage.Durability
	StrictOrder bool
	Now         func() time.Time
	// Schemas are applied to tables created without a schema of their own.
	Schemas map[string]record.Schema
	// MaxOpenTables bounds the number of tables kept open. A victim picked
	// by the CLOCK hand, skipping tables used since its last pass, is
	// committed and closed to make room. 0 is unbounded.
	MaxOpenTables int
}

func (o Options) tableOptions() table.Options {
	return table.Options{
		Fs:          o.Fs,
		Durability:  o.Durability,
		StrictOrder: o.StrictOrder,
		Now:         o.Now,
	}
}

// Database is a directory of tables. Tables are opened lazily and cached
// until Close, or until evicted when MaxOpenTables is set. A *table.Table
// returned by Table must not be kept across calls that may open another
// table. It is not safe for concurrent use.
type Database struct {
	DataDir string

	opts   Options
	tables *tableCache
	closed bool
}

// Open creates dataDir if needed and returns a handle on it. No table is
// opened until it is asked for.
func Open(dataDir string, opts Options) (*Database, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if err := opts.Fs.MkdirAll(dataDir, storage.FileMode0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Database{
		DataDir: dataDir,
		opts:    opts,
		tables:  newTableCache(opts.MaxOpenTables),
	}, nil
}

func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name) && name != "." && name != ".."
}

// Table opens or creates the named table.
func (db *Database) Table(name string) (*table.Table, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	if !ValidTableName(name) {
		return nil, fmt.Errorf("%w: %q", ErrBadTableName, name)
	}
	if tbl, ok := db.tables.Get(name); ok {
		return tbl, nil
	}
	if db.tables.Full() {
		if err := db.evict(); err != nil {
			return nil, err
		}
	}

	tbl, err := table.Open(db.DataDir, name, db.opts.tableOptions())
	if err != nil {
		return nil, err
	}

	if s, ok := db.opts.Schemas[name]; ok && tbl.Schema().NumFields() == 0 {
		if err := tbl.Define(s); err != nil {
			_ = tbl.Close()
			return nil, fmt.Errorf("define table %s: %w", name, err)
		}
		slog.Info("engine:: applied configured schema", "table", name, "fields", s.Names())
	}

	db.tables.Put(name, tbl)
	return tbl, nil
}

func (db *Database) evict() error {
	name, tbl, ok := db.tables.Evict()
	if !ok {
		return nil
	}
	slog.Debug("engine:: evicting table", "table", name, "open", db.tables.Len())
	if err := tbl.Close(); err != nil {
		return fmt.Errorf("evict table %s: %w", name, err)
	}
	return nil
}

// Tables lists every table stored in the data directory, opened or not.
func (db *Database) Tables() ([]string, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	return storage.ListTables(db.opts.Fs, db.DataDir)
}

// DropTable deletes the table files. Dropping a missing table is not an
// error.
func (db *Database) DropTable(name string) error {
	tbl, err := db.Table(name)
	if err != nil {
		return err
	}
	db.tables.Remove(name)
	return tbl.Remove()
}

// Commit persists every opened table.
func (db *Database) Commit() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	var err error
	for _, tbl := range db.tables.All() {
		err = multierr.Append(err, tbl.Commit())
	}
	return err
}

// Close commits and closes every opened table. Closing twice is a no-op.
func (db *Database) Close() error {
	if db.closed {
		return nil
	}
	var err error
	for name, tbl := range db.tables.Clear() {
		if cerr := tbl.Close(); cerr != nil {
			slog.Error("engine:: close table", "table", name, "err", cerr)
			err = multierr.Append(err, cerr)
		}
	}
	db.closed = true
	return err
}

// Drop closes the database and removes its directory.
func (db *Database) Drop() error {
	err := db.Close()
	return multierr.Append(err, db.opts.Fs.RemoveAll(db.DataDir))
}
