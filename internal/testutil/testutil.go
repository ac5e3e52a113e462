// Package testutil provides shared test helpers for stores, clocks and loggers.
package testutil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/keepnotes/internal/kv"
)

// Logger returns a logger that discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// SQLiteStore creates a temporary SQLite store that is closed on cleanup.
func SQLiteStore(t *testing.T) *kv.SQLite {
	t.Helper()
	s, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "keepnotes-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// FileStore creates a file store in a temporary directory.
func FileStore(t *testing.T) *kv.FS {
	t.Helper()
	s, err := kv.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// FlakyStore wraps a Store and fails reads or writes on demand.
type FlakyStore struct {
	kv.Store

	mu     sync.Mutex
	getErr error
	setErr error
	sets   int
}

// NewFlakyStore wraps an in-memory store.
func NewFlakyStore() *FlakyStore {
	return &FlakyStore{Store: kv.NewMemory()}
}

// FailGets makes every Get return err until Heal is called.
func (f *FlakyStore) FailGets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailSets makes every Set return err until Heal is called.
func (f *FlakyStore) FailSets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

// Heal clears injected failures.
func (f *FlakyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr, f.setErr = nil, nil
}

// Sets returns the number of successful Set calls.
func (f *FlakyStore) Sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

// Get implements kv.Store.
func (f *FlakyStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, keys...)
}

// Set implements kv.Store.
func (f *FlakyStore) Set(ctx context.Context, entries map[string]json.RawMessage) error {
	f.mu.Lock()
	err := f.setErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if err := f.Store.Set(ctx, entries); err != nil {
		return err
	}
	f.mu.Lock()
	f.sets++
	f.mu.Unlock()
	return nil
}

// Clock is a deterministic clock that advances by Step on every call.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewClock starts at a fixed instant and advances one second per reading.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), Step: time.Second}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}
