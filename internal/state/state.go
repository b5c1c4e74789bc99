// Package state is the keyed persistence layer behind the record store and
// the toggle machine. Values are JSON documents addressed by a string key.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists JSON-encodable values by key.
type Store interface {
	// Get decodes the value stored under key into dst. It reports false,
	// and leaves dst untouched, when nothing is stored.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Update replaces the value stored under key.
	Update(ctx context.Context, key string, value any) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the store for backend rooted at dir. An empty dir resolves
// to DataDir().
func Open(backend, dir string) (Store, error) {
	if backend == BackendMemory {
		return NewMemoryStore(), nil
	}
	if dir == "" {
		d, err := DataDir()
		if err != nil {
			return nil, fmt.Errorf("resolving data directory: %w", err)
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	switch backend {
	case "", BackendFile:
		return NewFileStore(filepath.Join(dir, "state.json")), nil
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "state.db"))
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

// DataDir returns the ilovelie XDG data directory:
// $XDG_DATA_HOME/ilovelie or ~/.local/share/ilovelie.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "ilovelie"), nil
}
