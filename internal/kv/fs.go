package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const fileExt = ".json"

// FS is a Store that keeps each key in its own JSON file under a root directory.
// Each key is written atomically; a multi-key Set is not atomic across keys.
type FS struct {
	root string // absolute path to the store directory
}

// NewFS creates a new FS store rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("kv: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("kv: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kv: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute store directory.
func (f *FS) Root() string { return f.root }

// Path returns the file that holds key.
func (f *FS) Path(key string) string {
	return filepath.Join(f.root, key+fileExt)
}

// Get implements Store.
func (f *FS) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := validKey(k); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f.Path(k))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("kv: read %s: %w", k, err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("kv: key %s holds invalid JSON", k)
		}
		out[k] = data
	}
	return out, nil
}

// Set implements Store. Keys are written in sorted order.
func (f *FS) Set(ctx context.Context, entries map[string]json.RawMessage) error {
	keys := make([]string, 0, len(entries))
	for k, v := range entries {
		if err := validKey(k); err != nil {
			return err
		}
		if !json.Valid(v) {
			return fmt.Errorf("kv: value for %q is not valid JSON", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.write(f.Path(k), entries[k]); err != nil {
			return err
		}
	}
	return nil
}

// write atomically replaces abs: tmp file → fsync → rename.
func (f *FS) write(abs string, content []byte) error {
	tmp, err := os.CreateTemp(f.root, ".keepnotes-tmp-*")
	if err != nil {
		return fmt.Errorf("kv: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("kv: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kv: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("kv: rename: %w", err)
	}
	success = true
	return nil
}

// Close implements Store.
func (f *FS) Close() error { return nil }
