package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Per-table file suffixes. They double as the keys of the checkpoint map.
const (
	DataSuffix  = "db.csv"
	IndexSuffix = "index.bin"
	SpecSuffix  = "spec.json"
)

// TableFiles names the three files of one table: <Dir>/<Base>-db.csv,
// <Dir>/<Base>-index.bin and <Dir>/<Base>-spec.json.
type TableFiles struct {
	Dir  string
	Base string
}

func (tf TableFiles) path(suffix string) string {
	return filepath.Join(tf.Dir, fmt.Sprintf("%s-%s", tf.Base, suffix))
}

func (tf TableFiles) DataPath() string  { return tf.path(DataSuffix) }
func (tf TableFiles) IndexPath() string { return tf.path(IndexSuffix) }
func (tf TableFiles) SpecPath() string  { return tf.path(SpecSuffix) }

// RemoveAll deletes every file of the table; missing files are fine.
func (tf TableFiles) RemoveAll(fs afero.Fs) error {
	for _, p := range []string{tf.DataPath(), tf.IndexPath(), tf.SpecPath()} {
		if err := fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ListTables scans dir and returns the table names that own a record log.
func ListTables(fs afero.Fs, dir string) ([]string, error) {
	ents, err := afero.ReadDir(fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	suffix := "-" + DataSuffix
	names := make([]string, 0)
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		if base := strings.TrimSuffix(name, suffix); base != "" {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	return names, nil
}
