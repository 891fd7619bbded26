package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/internal/storage"
)

// tableMeta is the content of <table>-spec.json.
type tableMeta struct {
	record.Schema
	// FilesSeek is the committed length per log, keyed by file suffix.
	FilesSeek map[string]int64 `json:"files_seek,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// readMeta loads the meta file. A missing file yields an empty meta.
func readMeta(fs afero.Fs, path string) (*tableMeta, bool, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &tableMeta{}, false, nil
		}
		return nil, false, err
	}

	var meta tableMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, true, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := meta.Schema.Validate(); err != nil {
		return nil, true, fmt.Errorf("schema in %s: %w", path, err)
	}
	return &meta, true, nil
}

// writeMeta replaces the meta file through a temp file and rename, so a crash
// leaves either the old or the new version on disk.
func writeMeta(fs afero.Fs, path string, meta *tableMeta, sync bool) error {
	meta.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, storage.FileMode0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if sync {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := fs.Rename(tmp, path); err != nil {
		return err
	}
	if sync {
		return syncDir(fs, filepath.Dir(path))
	}
	return nil
}

// syncDir makes the rename durable on filesystems backed by the OS.
func syncDir(fs afero.Fs, dir string) error {
	if _, ok := fs.(*afero.OsFs); !ok {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open directory: %v", err)
	}
	err = d.Sync()
	_ = d.Close()
	return err
}
