// Package kv defines the key-value storage contract notes and preferences persist
// through, with in-memory, file and SQLite backends.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Backends accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Store is an asynchronous get/set map. There are no transactions and no atomic
// read-modify-write: callers read, mutate and write whole values.
type Store interface {
	// Get returns the values of the keys that exist. Absent keys are omitted.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	// Set writes every entry. Keys not named are left untouched.
	Set(ctx context.Context, entries map[string]json.RawMessage) error
	// Close releases the backend.
	Close() error
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

func validKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("kv: invalid key %q", key)
	}
	return nil
}

// Open returns the backend named by backend. path is a directory for the file
// backend and a database file for sqlite; memory ignores it.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("kv: create dir: %w", err)
		}
		return NewFS(path)
	case BackendSQLite, "":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", backend)
	}
}
