package table

import (
	"errors"
	"log/slog"

	"github.com/tuannm99/novats/internal/metrics"
	"github.com/tuannm99/novats/internal/storage"
)

// recover undoes bytes written after the last commit of a previous process.
// Each log is first cut to its persisted checkpoint. The logs are then
// reconciled with each other, which also covers tables opened without a
// checkpoint: partial index entries, entries pointing past the record log
// and record bytes after the last indexed row are dropped.
func (t *Table) recover(seek map[string]int64) error {
	if n, ok := seek[storage.DataSuffix]; ok {
		if err := t.cut(t.data.LogFile, storage.DataSuffix, n); err != nil {
			return err
		}
	}
	if n, ok := seek[storage.IndexSuffix]; ok {
		if err := t.cut(t.index.LogFile, storage.IndexSuffix, n); err != nil {
			return err
		}
	}

	if !t.index.Aligned() {
		n := int64(t.index.Count()) * storage.IndexEntrySize
		if err := t.cut(t.index.LogFile, storage.IndexSuffix, n); err != nil {
			return err
		}
	}

	count := t.index.Count()
	var end int64
	for count > 0 {
		e, err := t.index.Read(count - 1)
		if err != nil {
			return err
		}
		line, err := t.data.ReadLine(int64(e.Offset))
		if err == nil {
			end = int64(e.Offset) + int64(len(line))
			t.lastStamp, t.hasStamp = e.Stamp, true
			break
		}
		if !errors.Is(err, storage.ErrOffsetOutOfRange) && !errors.Is(err, storage.ErrTornRow) {
			return err
		}
		count--
	}

	if err := t.cut(t.index.LogFile, storage.IndexSuffix, int64(count)*storage.IndexEntrySize); err != nil {
		return err
	}
	return t.cut(t.data.LogFile, storage.DataSuffix, end)
}

func (t *Table) cut(lf *storage.LogFile, file string, n int64) error {
	before := lf.Size()
	if err := lf.TruncateTo(n); err != nil {
		return err
	}
	if dropped := before - lf.Size(); dropped > 0 {
		slog.Warn("table:: truncated uncommitted bytes",
			"table", t.Name,
			"file", file,
			"from", before,
			"to", lf.Size(),
		)
		metrics.RecoveredBytes.WithLabelValues(t.Name, file).Add(float64(dropped))
	}
	return nil
}
