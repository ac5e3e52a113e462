// Package theme stores the light/dark display preference.
package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/keepnotes/internal/apperr"
	"github.com/starford/keepnotes/internal/kv"
)

// StorageKey holds the preference. It is independent of the notes key.
const StorageKey = "keepNoteTheme"

// Mode is a display theme.
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// Parse validates s as a Mode.
func Parse(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Light, Dark:
		return m, nil
	default:
		return "", fmt.Errorf("theme: %q: %w", s, apperr.ErrInvalidTheme)
	}
}

// Preference caches the stored theme.
type Preference struct {
	store  kv.Store
	logger *slog.Logger
	mode   Mode
}

// New returns a Preference that starts light until Load.
func New(store kv.Store, logger *slog.Logger) *Preference {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preference{store: store, logger: logger, mode: Light}
}

// Current returns the cached theme.
func (p *Preference) Current() Mode { return p.mode }

// Load reads the stored theme. A missing or unreadable value leaves light in
// place; a read failure is logged and keeps the current theme.
func (p *Preference) Load(ctx context.Context) (Mode, error) {
	vals, err := p.store.Get(ctx, StorageKey)
	if err != nil {
		err = fmt.Errorf("theme: %w: %w", apperr.ErrStorageRead, err)
		p.logger.Error("theme: load failed", slog.String("error", err.Error()))
		return p.mode, err
	}
	raw, ok := vals[StorageKey]
	if !ok {
		p.mode = Light
		return p.mode, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		p.logger.Warn("theme: stored value is not a string", slog.String("value", string(raw)))
		p.mode = Light
		return p.mode, nil
	}
	m, err := Parse(s)
	if err != nil {
		p.logger.Warn("theme: unknown stored theme", slog.String("value", s))
		m = Light
	}
	p.mode = m
	return p.mode, nil
}

// Set persists m. The cache changes only after the write succeeds.
func (p *Preference) Set(ctx context.Context, m Mode) error {
	if _, err := Parse(string(m)); err != nil {
		return err
	}
	raw, _ := json.Marshal(string(m))
	if err := p.store.Set(ctx, map[string]json.RawMessage{StorageKey: raw}); err != nil {
		err = fmt.Errorf("theme: %w: %w", apperr.ErrStorageWrite, err)
		p.logger.Error("theme: save failed", slog.String("error", err.Error()))
		return err
	}
	p.mode = m
	return nil
}

// Toggle flips between light and dark.
func (p *Preference) Toggle(ctx context.Context) (Mode, error) {
	next := Dark
	if p.mode == Dark {
		next = Light
	}
	if err := p.Set(ctx, next); err != nil {
		return p.mode, err
	}
	return next, nil
}
