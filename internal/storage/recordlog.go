package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// RecordLog holds encoded rows, one '\n'-terminated line per record,
// addressed by the byte offset the line starts at.
type RecordLog struct {
	*LogFile
}

func OpenRecordLog(fs afero.Fs, path string) (*RecordLog, error) {
	lf, err := OpenLogFile(fs, path)
	if err != nil {
		return nil, err
	}
	return &RecordLog{LogFile: lf}, nil
}

// ReadLine returns the row starting at offset, including its '\n'.
func (r *RecordLog) ReadLine(offset int64) ([]byte, error) {
	if offset < 0 || offset >= r.Size() {
		return nil, fmt.Errorf("%w: %d (size %d)", ErrOffsetOutOfRange, offset, r.Size())
	}
	sec := io.NewSectionReader(r, offset, r.Size()-offset)
	line, err := bufio.NewReaderSize(sec, 512).ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return line, fmt.Errorf("%w: at offset %d", ErrTornRow, offset)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageIO, r.Path(), err)
	}
	return line, nil
}
