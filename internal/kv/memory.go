package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// Memory is a process-local Store. Values are copied in and out.
type Memory struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]json.RawMessage)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = slices.Clone(v)
		}
	}
	return out, nil
}

// Set implements Store.
func (m *Memory) Set(ctx context.Context, entries map[string]json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range entries {
		if err := validKey(k); err != nil {
			return err
		}
		if !json.Valid(v) {
			return fmt.Errorf("kv: value for %q is not valid JSON", k)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.data[k] = slices.Clone(v)
	}
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
