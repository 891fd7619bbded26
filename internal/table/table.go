package table

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/tuannm99/novats/internal/metrics"
	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/internal/storage"
)

var (
	ErrWriteFailed = errors.New("table: write failed, batch rolled back")
	ErrOutOfOrder  = errors.New("table: timestamp older than the previous record")
	ErrClosed      = errors.New("table: table is closed")
)

// Options tunes a Table. The zero value is usable: OS filesystem, safe
// durability, out-of-order timestamps accepted, wall clock.
type Options struct {
	Fs         afero.Fs
	Durability storage.Durability
	// StrictOrder rejects batches whose timestamps go backwards. Without it
	// such rows are stored and range queries over them are unreliable.
	StrictOrder bool
	// Now stamps records written without a time field.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Durability == 0 {
		o.Durability = storage.DurabilitySafe
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Table owns one schema, one record log and one index log. It is not safe
// for concurrent use.
type Table struct {
	Name string

	files  storage.TableFiles
	opts   Options
	schema record.Schema
	data   *storage.RecordLog
	index  *storage.IndexLog

	// seek is the checkpoint currently persisted in the meta file.
	seek      map[string]int64
	lastStamp float64
	hasStamp  bool
	closed    bool

	written  prometheus.Counter
	scanned  prometheus.Counter
	rollback prometheus.Counter
	grown    prometheus.Counter
}

// Open opens or creates the table name under dir and runs startup recovery.
func Open(dir, name string, opts Options) (*Table, error) {
	opts = opts.withDefaults()
	if err := opts.Fs.MkdirAll(dir, storage.FileMode0755); err != nil {
		return nil, err
	}

	files := storage.TableFiles{Dir: dir, Base: name}
	meta, _, err := readMeta(opts.Fs, files.SpecPath())
	if err != nil {
		return nil, err
	}

	data, err := storage.OpenRecordLog(opts.Fs, files.DataPath())
	if err != nil {
		return nil, err
	}
	index, err := storage.OpenIndexLog(opts.Fs, files.IndexPath())
	if err != nil {
		_ = data.Close()
		return nil, err
	}

	t := &Table{
		Name:     name,
		files:    files,
		opts:     opts,
		schema:   meta.Schema,
		seek:     meta.FilesSeek,
		data:     data,
		index:    index,
		written:  metrics.RowsWritten.WithLabelValues(name),
		scanned:  metrics.RowsScanned.WithLabelValues(name),
		rollback: metrics.BatchesRolledBack.WithLabelValues(name),
		grown:    metrics.SchemaFieldsAdded.WithLabelValues(name),
	}

	if err := t.recover(meta.FilesSeek); err != nil {
		_ = multierr.Append(data.Close(), index.Close())
		return nil, fmt.Errorf("recover table %s: %w", name, err)
	}
	if t.seek != nil {
		t.seek = t.checkpoint()
	}
	return t, nil
}

// Schema returns a copy of the current schema.
func (t *Table) Schema() record.Schema { return t.schema.Clone() }

// Len is the number of committed records.
func (t *Table) Len() int { return t.index.Count() }

// Define replaces the schema wholesale and persists it.
func (t *Table) Define(s record.Schema) error {
	if t.closed {
		return ErrClosed
	}
	next, err := record.NewSchema(s.Locked, s.Fields...)
	if err != nil {
		return err
	}
	prev := t.schema
	t.schema = next
	if err := t.saveMeta(t.seek, t.opts.Durability == storage.DurabilitySafe); err != nil {
		t.schema = prev
		return err
	}
	return nil
}

// Write appends a single record. A nil error means exactly one row was
// committed; use WriteBatch for the count form.
func (t *Table) Write(r record.Record) error {
	_, err := t.WriteBatch([]record.Record{r})
	return err
}

// WriteBatch appends records in order. Either every record is committed and
// len(rs) is returned, or both logs are rolled back and an error wrapping
// ErrWriteFailed is returned.
func (t *Table) WriteBatch(rs []record.Record) (int, error) {
	if t.closed {
		return 0, ErrClosed
	}
	if len(rs) == 0 {
		return 0, nil
	}

	plan, err := t.plan(rs)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	// The schema version the rows were encoded against is persisted before
	// the first row that needs it is appended.
	if plan.schemaChanged {
		prev := t.schema
		t.schema = plan.schema
		if err := t.saveMeta(t.seek, t.opts.Durability == storage.DurabilitySafe); err != nil {
			t.schema = prev
			return 0, fmt.Errorf("%w: persist schema: %w", ErrWriteFailed, err)
		}
		if len(plan.added) > 0 {
			t.grown.Add(float64(len(plan.added)))
			slog.Debug("table:: schema grown", "table", t.Name, "fields", plan.added)
		}
	}

	if err := t.appendRows(plan); err != nil {
		rerr := multierr.Append(t.data.Rollback(), t.index.Rollback())
		t.rollback.Inc()
		slog.Error("table:: batch rolled back", "table", t.Name, "rows", len(rs), "err", err)
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, multierr.Append(err, rerr))
	}

	t.lastStamp, t.hasStamp = plan.stamps[len(plan.stamps)-1], true
	t.written.Add(float64(len(rs)))
	return len(rs), nil
}

type batchPlan struct {
	schema        record.Schema
	schemaChanged bool
	added         []string
	rows          [][]byte
	stamps        []float64
}

// plan resolves timestamps, computes the schema delta and encodes every row.
// It does no I/O, so an encoding error leaves the table untouched.
func (t *Table) plan(rs []record.Record) (*batchPlan, error) {
	p := &batchPlan{stamps: make([]float64, len(rs))}

	prev, hasPrev := t.lastStamp, t.hasStamp
	known := make(map[string]struct{}, len(t.schema.Fields))
	for _, f := range t.schema.Fields {
		known[f.Name] = struct{}{}
	}

	for i, r := range rs {
		stamp, ok, err := r.Time()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if !ok {
			stamp, _ = record.NormalizeTime(t.opts.Now())
		}
		if t.opts.StrictOrder && hasPrev && stamp < prev {
			return nil, fmt.Errorf("%w: record %d at %v after %v", ErrOutOfOrder, i, stamp, prev)
		}
		prev, hasPrev = stamp, true
		p.stamps[i] = stamp

		var extra []string
		for k := range r {
			if _, ok := known[k]; !ok && k != record.TimeField {
				extra = append(extra, k)
			}
		}
		if len(extra) == 0 {
			continue
		}
		slices.Sort(extra)
		if t.schema.Locked {
			slog.Debug("table:: schema locked, dropping fields", "table", t.Name, "fields", extra)
			continue
		}
		for _, k := range extra {
			known[k] = struct{}{}
		}
		p.added = append(p.added, extra...)
	}

	p.schema = t.schema
	if len(p.added) > 0 || len(t.schema.Fields) == 0 {
		next, err := t.schema.Extend(p.added...)
		if err != nil {
			return nil, err
		}
		p.schema, p.schemaChanged = next, true
	}

	p.rows = make([][]byte, len(rs))
	for i, r := range rs {
		nr := maps.Clone(r)
		if nr == nil {
			nr = record.Record{}
		}
		nr[record.TimeField] = p.stamps[i]
		row, err := record.EncodeRow(p.schema, nr)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		p.rows[i] = row
	}
	return p, nil
}

func (t *Table) appendRows(p *batchPlan) error {
	for i, row := range p.rows {
		off, err := t.data.Append(row)
		if err != nil {
			return err
		}
		if _, err := t.index.Append(off, p.stamps[i]); err != nil {
			return err
		}
	}
	return t.flush()
}

// flush makes the appended rows the new committed state. In safe mode both
// logs are synced and the checkpoint is persisted first.
func (t *Table) flush() error {
	if t.opts.Durability == storage.DurabilitySafe {
		if err := t.data.Sync(); err != nil {
			return err
		}
		if err := t.index.Sync(); err != nil {
			return err
		}
		seek := map[string]int64{
			storage.DataSuffix:  t.data.Size(),
			storage.IndexSuffix: t.index.Size(),
		}
		if err := t.saveMeta(seek, true); err != nil {
			return fmt.Errorf("persist checkpoint: %w", err)
		}
	}
	t.data.Commit()
	t.index.Commit()
	return nil
}

// Read decodes the record at line.
func (t *Table) Read(line int) (record.Record, error) {
	if t.closed {
		return nil, ErrClosed
	}
	e, err := t.index.Read(line)
	if err != nil {
		return nil, err
	}
	raw, err := t.data.ReadLine(int64(e.Offset))
	if err != nil {
		return nil, err
	}
	r, err := record.DecodeRow(t.schema, raw)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}
	return r, nil
}

// Query returns a cursor over [start, end]. Nil bounds are open; eq, when
// not empty, keeps only records whose fields equal the given values.
func (t *Table) Query(start, end *float64, eq map[string]any) *Cursor {
	if len(eq) == 0 {
		eq = nil
	}
	return &Cursor{t: t, start: start, end: end, eq: eq}
}

// Commit syncs both logs and persists schema and checkpoint.
func (t *Table) Commit() error {
	if t.closed {
		return ErrClosed
	}
	if err := multierr.Append(t.data.Sync(), t.index.Sync()); err != nil {
		return err
	}
	return t.saveMeta(t.checkpoint(), true)
}

// Close commits and releases both logs.
func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	err := t.Commit()
	t.closed = true
	return multierr.Combine(err, t.data.Close(), t.index.Close())
}

// Remove releases the table and deletes its three files.
func (t *Table) Remove() error {
	t.closed = true
	err := multierr.Append(t.data.Close(), t.index.Close())
	return multierr.Append(err, t.files.RemoveAll(t.opts.Fs))
}

func (t *Table) checkpoint() map[string]int64 {
	return map[string]int64{
		storage.DataSuffix:  t.data.Committed(),
		storage.IndexSuffix: t.index.Committed(),
	}
}

// saveMeta persists the schema together with seek as the checkpoint.
func (t *Table) saveMeta(seek map[string]int64, sync bool) error {
	meta := &tableMeta{Schema: t.schema, FilesSeek: seek}
	if err := writeMeta(t.opts.Fs, t.files.SpecPath(), meta, sync); err != nil {
		return err
	}
	t.seek = seek
	return nil
}

// Bound is a convenience for building optional query bounds.
func Bound(v float64) *float64 { return &v }
