package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBackend stores each key as a JSON file in one directory. Writes go to a
// temp file that is renamed over the target.
type FileBackend struct {
	mu  sync.Mutex
	dir string
	// name overrides the file name for StorageKey when the configured path
	// names a file rather than a directory.
	name string
}

// NewFileBackend returns a backend rooted at path. A path ending in .json is
// used directly as the file for StorageKey; anything else is a directory.
func NewFileBackend(path string) (*FileBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("state path is required")
	}
	b := &FileBackend{dir: path}
	if filepath.Ext(path) == ".json" {
		b.dir, b.name = filepath.Dir(path), filepath.Base(path)
	}
	if err := os.MkdirAll(b.dir, 0o700); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *FileBackend) path(key string) string {
	if key == StorageKey && b.name != "" {
		return filepath.Join(b.dir, b.name)
	}
	return filepath.Join(b.dir, key+".json")
}

// Load implements Backend.
func (b *FileBackend) Load(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save implements Backend.
func (b *FileBackend) Save(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	path := b.path(key)
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error { return nil }
