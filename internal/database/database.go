// Package database persists DataFrames below a database directory. Each DUT
// owns a sub-database named <dutName>_<dutHash>; inside it, frames are keyed
// the way DUT data maps are keyed ("<sweepKey>/iv", "T300.00K/..."). Frames
// are stored gzip-compressed in the dataframe binary format.
package database

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/smxlab/dmkit/pkg/dataframe"
)

const frameExt = ".df.gz"

// ErrNoResult is returned when a requested frame is not in the database.
var ErrNoResult = errors.New("database: no such frame")

// Manager reads and writes frame databases below a root directory.
type Manager struct {
	root string
}

// New returns a manager rooted at dir.
func New(dir string) *Manager {
	return &Manager{root: dir}
}

// Root returns the database root directory.
func (m *Manager) Root() string { return m.root }

func (m *Manager) framePath(db, key string) string {
	return filepath.Join(m.root, db, filepath.FromSlash(key)+frameExt)
}

// SaveFrame writes one frame under db with the given key. Key segments
// separated by '/' become subdirectories.
func (m *Manager) SaveFrame(db, key string, df *dataframe.DataFrame) error {
	path := m.framePath(db, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	if err := df.Encode(zw); err != nil {
		return fmt.Errorf("database: save %s/%s: %w", db, key, err)
	}
	if err := zw.Close(); err != nil {
		return err
	}
	log.Debug().Str("db", db).Str("key", key).Int("rows", df.NRows()).Msg("Saved frame")
	return file.Close()
}

// LoadFrame reads one frame back.
func (m *Manager) LoadFrame(db, key string) (*dataframe.DataFrame, error) {
	file, err := os.Open(m.framePath(db, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNoResult, db, key)
		}
		return nil, err
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("database: load %s/%s: %w", db, key, err)
	}
	defer zr.Close()

	df, err := dataframe.Decode(zr)
	if err != nil {
		return nil, fmt.Errorf("database: load %s/%s: %w", db, key, err)
	}
	return df, nil
}

// HasFrame reports whether a frame exists without reading it.
func (m *Manager) HasFrame(db, key string) bool {
	_, err := os.Stat(m.framePath(db, key))
	return err == nil
}

// SaveDB writes a whole data map.
func (m *Manager) SaveDB(db string, data map[string]*dataframe.DataFrame) error {
	for key, df := range data {
		if err := m.SaveFrame(db, key, df); err != nil {
			return err
		}
	}
	return nil
}

// LoadDB reads all frames of a database back into a data map.
func (m *Manager) LoadDB(db string) (map[string]*dataframe.DataFrame, error) {
	keys, err := m.Keys(db)
	if err != nil {
		return nil, err
	}
	data := make(map[string]*dataframe.DataFrame, len(keys))
	for _, key := range keys {
		df, err := m.LoadFrame(db, key)
		if err != nil {
			return nil, err
		}
		data[key] = df
	}
	return data, nil
}

// Keys lists the sorted frame keys of a database. A missing database is an
// empty one.
func (m *Manager) Keys(db string) ([]string, error) {
	root := filepath.Join(m.root, db)
	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, frameExt) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		keys = append(keys, strings.TrimSuffix(filepath.ToSlash(rel), frameExt))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteDB removes a database and everything in it.
func (m *Manager) DeleteDB(db string) error {
	return os.RemoveAll(filepath.Join(m.root, db))
}

// DeleteFrame removes one frame. Deleting a missing frame is a no-op.
func (m *Manager) DeleteFrame(db, key string) error {
	err := os.Remove(m.framePath(db, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
