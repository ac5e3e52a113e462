// Package notes owns the canonical note collection and keeps it in step with the
// key-value store.
//
// Every mutation reads the full persisted sequence, mutates a copy, writes the
// whole sequence back and only then commits the copy to the in-memory cache.
// There is no version check: a second process writing the same key wins if it
// writes last.
package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/keepnotes/internal/apperr"
	"github.com/starford/keepnotes/internal/checksum"
	"github.com/starford/keepnotes/internal/kv"
	"github.com/starford/keepnotes/internal/models"
)

// StorageKey is the store key holding the ordered note sequence.
const StorageKey = "keepNotes"

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for storage failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithClock replaces time.Now for id and timestamp assignment.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// Repository is the only writer of StorageKey. It is not safe for concurrent
// use; callers serialize access (see package dispatch).
type Repository struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time

	notes  []models.Note
	lastID int64

	revision string // checksum of the payload last read or written
	synced   bool
}

// NewRepository creates a repository over store. Call Init before use.
func NewRepository(store kv.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		notes:  []models.Note{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init performs the initial load.
func (r *Repository) Init(ctx context.Context) error {
	_, err := r.Load(ctx)
	return err
}

// Load replaces the cache with the persisted sequence. On a storage error the
// last known sequence is returned along with the error.
func (r *Repository) Load(ctx context.Context) ([]models.Note, error) {
	current, err := r.read(ctx)
	if err != nil {
		r.logger.Error("notes: load failed", slog.String("error", err.Error()))
		return r.List(), err
	}
	r.notes = current
	r.logger.Debug("notes: loaded", slog.Int("count", len(current)))
	return r.List(), nil
}

// List returns a copy of the cached sequence.
func (r *Repository) List() []models.Note {
	return slices.Clone(r.notes)
}

// Len returns the number of cached notes.
func (r *Repository) Len() int {
	return len(r.notes)
}

// Get looks id up in the cache.
func (r *Repository) Get(id int64) (models.Note, bool) {
	i := indexOf(r.notes, id)
	if i < 0 {
		return models.Note{}, false
	}
	return r.notes[i], true
}

// Revision identifies the payload last read from or written to the store.
func (r *Repository) Revision() string {
	return r.revision
}

// Create prepends a new note and persists the sequence.
func (r *Repository) Create(ctx context.Context, title, content, color string) (models.Note, error) {
	current, err := r.read(ctx)
	if err != nil {
		r.logger.Error("notes: create failed", slog.String("error", err.Error()))
		return models.Note{}, err
	}
	r.notes = current

	now := r.timestamp()
	note := models.Note{
		ID:        r.nextID(current, now),
		Title:     titleOrDefault(title),
		Content:   content,
		Color:     colorOr(color, models.DefaultColor),
		CreatedAt: now,
		UpdatedAt: now,
	}

	next := make([]models.Note, 0, len(current)+1)
	next = append(next, note)
	next = append(next, current...)
	if err := r.write(ctx, next); err != nil {
		r.logger.Error("notes: create failed", slog.Int64("id", note.ID), slog.String("error", err.Error()))
		return models.Note{}, err
	}
	r.logger.Debug("notes: created", slog.Int64("id", note.ID))
	return note, nil
}

// Update replaces the fields of note id in place. An empty color keeps the
// note's current color.
func (r *Repository) Update(ctx context.Context, id int64, title, content, color string) (models.Note, error) {
	current, err := r.read(ctx)
	if err != nil {
		r.logger.Error("notes: update failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return models.Note{}, err
	}
	r.notes = current

	i := indexOf(current, id)
	if i < 0 {
		r.logger.Warn("notes: update of unknown note", slog.Int64("id", id))
		return models.Note{}, fmt.Errorf("notes: update %d: %w", id, apperr.ErrNotFound)
	}

	next := slices.Clone(current)
	note := next[i]
	note.Title = titleOrDefault(title)
	note.Content = content
	note.Color = colorOr(color, note.Color)
	note.UpdatedAt = r.timestamp()
	if !note.UpdatedAt.After(current[i].UpdatedAt) {
		note.UpdatedAt = current[i].UpdatedAt.Add(time.Millisecond)
	}
	next[i] = note

	if err := r.write(ctx, next); err != nil {
		r.logger.Error("notes: update failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return models.Note{}, err
	}
	r.logger.Debug("notes: updated", slog.Int64("id", id))
	return note, nil
}

// Delete removes note id, preserving the order of the rest.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	current, err := r.read(ctx)
	if err != nil {
		r.logger.Error("notes: delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return err
	}
	r.notes = current

	next := make([]models.Note, 0, len(current))
	for _, n := range current {
		if n.ID != id {
			next = append(next, n)
		}
	}
	if len(next) == len(current) {
		r.logger.Warn("notes: delete of unknown note", slog.Int64("id", id))
		return fmt.Errorf("notes: delete %d: %w", id, apperr.ErrNotFound)
	}

	if err := r.write(ctx, next); err != nil {
		r.logger.Error("notes: delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return err
	}
	r.logger.Debug("notes: deleted", slog.Int64("id", id))
	return nil
}

func (r *Repository) read(ctx context.Context) ([]models.Note, error) {
	vals, err := r.store.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("notes: %w: %w", apperr.ErrStorageRead, err)
	}
	raw, ok := vals[StorageKey]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		r.observe(nil)
		return []models.Note{}, nil
	}
	var out []models.Note
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("notes: %w: decode %s: %w", apperr.ErrStorageRead, StorageKey, err)
	}
	r.observe(raw)
	return out, nil
}

func (r *Repository) write(ctx context.Context, next []models.Note) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("notes: %w: encode: %w", apperr.ErrStorageWrite, err)
	}
	if err := r.store.Set(ctx, map[string]json.RawMessage{StorageKey: raw}); err != nil {
		return fmt.Errorf("notes: %w: %w", apperr.ErrStorageWrite, err)
	}
	r.revision, r.synced = checksum.Sum(raw), true
	r.notes = next
	return nil
}

// observe records the payload just read and warns when it differs from what
// this process last saw.
func (r *Repository) observe(raw []byte) {
	sum := checksum.Sum(raw)
	if r.synced && sum != r.revision {
		r.logger.Warn("notes: collection changed by another writer",
			slog.String("previous", r.revision),
			slog.String("current", sum))
	}
	r.revision, r.synced = sum, true
}

func (r *Repository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

// nextID derives an id from the creation instant, moving past the last id this
// process issued and any id already in use.
func (r *Repository) nextID(existing []models.Note, at time.Time) int64 {
	id := at.UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	for indexOf(existing, id) >= 0 {
		id++
	}
	r.lastID = id
	return id
}

func indexOf(notes []models.Note, id int64) int {
	return slices.IndexFunc(notes, func(n models.Note) bool { return n.ID == id })
}

func titleOrDefault(title string) string {
	if strings.TrimSpace(title) == "" {
		return models.UntitledTitle
	}
	return title
}

func colorOr(color, fallback string) string {
	if color == "" {
		return fallback
	}
	return color
}
