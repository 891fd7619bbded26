package storage

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/afero"

	"github.com/tuannm99/novats/internal/alias/bx"
)

// IndexEntrySize is the fixed on-disk width of one entry:
// line u32 | stamp f64 | offset u32, little-endian.
const IndexEntrySize = 16

// IndexEntry maps a line number to the record's timestamp and the byte
// offset of its row in the RecordLog.
type IndexEntry struct {
	Line   uint32
	Stamp  float64
	Offset uint32
}

func (e IndexEntry) encode() [IndexEntrySize]byte {
	var b [IndexEntrySize]byte
	bx.PutU32At(b[:], 0, e.Line)
	bx.PutF64At(b[:], 4, e.Stamp)
	bx.PutU32At(b[:], 12, e.Offset)
	return b
}

func decodeIndexEntry(b []byte) IndexEntry {
	return IndexEntry{
		Line:   bx.U32At(b, 0),
		Stamp:  bx.F64At(b, 4),
		Offset: bx.U32At(b, 12),
	}
}

// IndexLog is the fixed-width binary companion of a RecordLog. Entry n lives
// at [n*16, n*16+16), so lookups by line never scan.
type IndexLog struct {
	*LogFile
}

func OpenIndexLog(fs afero.Fs, path string) (*IndexLog, error) {
	lf, err := OpenLogFile(fs, path)
	if err != nil {
		return nil, err
	}
	return &IndexLog{LogFile: lf}, nil
}

// Count returns the number of whole entries in the log.
func (x *IndexLog) Count() int {
	return int(x.Size() / IndexEntrySize)
}

// Aligned reports whether the log length is a whole number of entries.
func (x *IndexLog) Aligned() bool {
	return x.Size()%IndexEntrySize == 0
}

// Append writes the entry for the next line.
func (x *IndexLog) Append(offset int64, stamp float64) (IndexEntry, error) {
	line := x.Count()
	if offset < 0 || offset > math.MaxUint32 || line >= math.MaxUint32 {
		return IndexEntry{}, fmt.Errorf("%w: line %d offset %d", ErrLogTooLarge, line, offset)
	}
	e := IndexEntry{Line: uint32(line), Stamp: stamp, Offset: uint32(offset)}
	b := e.encode()
	if _, err := x.LogFile.Append(b[:]); err != nil {
		return IndexEntry{}, err
	}
	return e, nil
}

// Read returns the entry at line.
func (x *IndexLog) Read(line int) (IndexEntry, error) {
	if line < 0 || line >= x.Count() {
		return IndexEntry{}, fmt.Errorf("%w: %d (count %d)", ErrLineOutOfRange, line, x.Count())
	}
	var b [IndexEntrySize]byte
	if _, err := x.ReadAt(b[:], int64(line)*IndexEntrySize); err != nil && err != io.EOF {
		return IndexEntry{}, fmt.Errorf("%w: read %s: %v", ErrStorageIO, x.Path(), err)
	}
	e := decodeIndexEntry(b[:])
	if int(e.Line) != line {
		return IndexEntry{}, fmt.Errorf("%w: line %d holds entry for line %d", ErrCorruptIndex, line, e.Line)
	}
	return e, nil
}

// Stamp returns the timestamp of line.
func (x *IndexLog) Stamp(line int) (float64, error) {
	e, err := x.Read(line)
	if err != nil {
		return 0, err
	}
	return e.Stamp, nil
}
