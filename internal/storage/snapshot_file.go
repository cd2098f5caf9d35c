package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// SnapshotFile holds one JSON document on disk. Writers replace the whole
// document, so readers only ever see a complete snapshot.
type SnapshotFile struct {
	mu   sync.Mutex
	path string
}

func OpenSnapshotFile(dir, name string) (*SnapshotFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &SnapshotFile{path: filepath.Join(dir, name)}, nil
}

func (f *SnapshotFile) Path() string { return f.path }

// Load decodes the snapshot into v. Before the first Save there is nothing
// to read and v keeps its zero state.
func (f *SnapshotFile) Load(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(f.path), err)
	}
	return nil
}

// Save writes v next to the snapshot and renames it into place once it is
// flushed.
func (f *SnapshotFile) Save(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(f.path), err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	_, err = tmp.Write(raw)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
