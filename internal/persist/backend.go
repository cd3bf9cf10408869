// Package persist keeps the canvas state across process restarts.
//
// The canvas is stored as one JSON blob under a fixed key. A Backend holds
// the blob; a Persister restores it into a canvas.Store at startup and writes
// it back after every durable mutation.
package persist

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// StorageKey is the key the canvas blob is stored under.
const StorageKey = "tabz-canvas-state"

var logger *log.Logger

func init() {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "persist",
	})
}

// SetLogLevel sets the logging level for the persist package.
func SetLogLevel(level log.Level) {
	logger.SetLevel(level)
}

// Backend is a key/value store for serialized state.
type Backend interface {
	// Load returns the value stored under key. A missing key is not an
	// error: it returns (nil, false, nil).
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Open returns the backend for driver. path is ignored by the memory driver.
func Open(driver, path string) (Backend, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(path)
	case "file":
		return NewFileBackend(path)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
