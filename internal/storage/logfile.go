package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// LogFile is an append-only file that remembers the length it had at the
// last commit. Rollback cuts everything after that point.
type LogFile struct {
	fs        afero.Fs
	path      string
	f         afero.File
	size      int64
	committed int64
}

// OpenLogFile opens or creates path. The current length counts as committed
// until the caller restores an older checkpoint with TruncateTo.
func OpenLogFile(fs afero.Fs, path string) (*LogFile, error) {
	// RDWR | CREATE (no truncate, no O_APPEND: writes go through WriteAt)
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat log %s: %w", path, err)
	}
	return &LogFile{
		fs:        fs,
		path:      path,
		f:         f,
		size:      info.Size(),
		committed: info.Size(),
	}, nil
}

func (l *LogFile) Path() string { return l.path }

// Size is the current end of the log, including uncommitted bytes.
func (l *LogFile) Size() int64 { return l.size }

// Committed is the length recorded by the last Commit.
func (l *LogFile) Committed() int64 { return l.committed }

// Append writes p at the end of the log and returns the offset it starts at.
func (l *LogFile) Append(p []byte) (int64, error) {
	if l.f == nil {
		return 0, ErrClosed
	}
	off := l.size
	n, err := l.f.WriteAt(p, off)
	l.size += int64(n)
	if err != nil {
		return off, fmt.Errorf("%w: append %s: %v", ErrStorageIO, l.path, err)
	}
	if n != len(p) {
		return off, fmt.Errorf("%w: append %s: %v", ErrStorageIO, l.path, io.ErrShortWrite)
	}
	return off, nil
}

func (l *LogFile) ReadAt(p []byte, off int64) (int, error) {
	if l.f == nil {
		return 0, ErrClosed
	}
	return l.f.ReadAt(p, off)
}

// Sync flushes the file contents to stable storage.
func (l *LogFile) Sync() error {
	if l.f == nil {
		return ErrClosed
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrStorageIO, l.path, err)
	}
	return nil
}

// Commit marks the current end as the rollback point.
func (l *LogFile) Commit() { l.committed = l.size }

// Rollback discards everything written after the last Commit.
func (l *LogFile) Rollback() error {
	return l.TruncateTo(l.committed)
}

// TruncateTo cuts the log to n bytes and makes n the committed length.
// Truncating to a length past the end is a no-op.
func (l *LogFile) TruncateTo(n int64) error {
	if l.f == nil {
		return ErrClosed
	}
	if n < 0 {
		n = 0
	}
	if n > l.size {
		l.committed = l.size
		return nil
	}
	if err := l.f.Truncate(n); err != nil {
		return fmt.Errorf("%w: truncate %s to %d: %v", ErrStorageIO, l.path, n, err)
	}
	l.size = n
	l.committed = n
	return nil
}

func (l *LogFile) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Remove closes and deletes the file.
func (l *LogFile) Remove() error {
	if err := l.Close(); err != nil {
		return err
	}
	if err := l.fs.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
