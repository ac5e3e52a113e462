// Package editor implements the state machine that decides which note, if any,
// is being composed. The editor owns only the draft; it never writes the store
// itself and asks the repository to create, update or delete instead.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/keepnotes/internal/apperr"
	"github.com/starford/keepnotes/internal/models"
)

// Mode is the editor state.
type Mode int

const (
	Closed Mode = iota
	Creating
	Editing
)

func (m Mode) String() string {
	switch m {
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	default:
		return "closed"
	}
}

// DeletePrompt is shown to the Confirmer before a delete.
const DeletePrompt = "Delete this note?"

// Draft is the unsaved working copy of a note's fields.
type Draft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Color   string `json:"color"`
}

func emptyDraft() Draft {
	return Draft{Color: models.DefaultColor}
}

// Notes is the part of the repository the editor drives.
type Notes interface {
	Get(id int64) (models.Note, bool)
	Create(ctx context.Context, title, content, color string) (models.Note, error)
	Update(ctx context.Context, id int64, title, content, color string) (models.Note, error)
	Delete(ctx context.Context, id int64) error
}

// Confirmer asks the user to agree to a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Snapshot is a read-only view of the editor.
type Snapshot struct {
	Mode    string `json:"mode"`
	NoteID  int64  `json:"note_id,omitempty"`
	Heading string `json:"heading,omitempty"`
	Draft   *Draft `json:"draft,omitempty"`
}

// State is the editor. The zero value is not usable; call New.
type State struct {
	notes  Notes
	logger *slog.Logger

	mode   Mode
	noteID int64
	draft  Draft
}

// New returns a closed editor over notes.
func New(notes Notes, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{notes: notes, logger: logger}
}

// Mode returns the current state.
func (s *State) Mode() Mode { return s.mode }

// NoteID returns the id being edited, if any.
func (s *State) NoteID() (int64, bool) {
	return s.noteID, s.mode == Editing
}

// Draft returns a copy of the working fields.
func (s *State) Draft() Draft { return s.draft }

// Heading is the breadcrumb label for the open editor.
func (s *State) Heading() string {
	switch s.mode {
	case Creating:
		return "New Note"
	case Editing:
		if strings.TrimSpace(s.draft.Title) == "" {
			return models.UntitledTitle
		}
		return s.draft.Title
	default:
		return ""
	}
}

// Snapshot describes the editor for presenters.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{Mode: s.mode.String(), Heading: s.Heading()}
	if s.mode == Closed {
		return snap
	}
	d := s.draft
	snap.Draft = &d
	if s.mode == Editing {
		snap.NoteID = s.noteID
	}
	return snap
}

// NewNote opens an empty draft. Any open draft is discarded.
func (s *State) NewNote() {
	s.mode = Creating
	s.noteID = 0
	s.draft = emptyDraft()
}

// Open starts editing note id. An id that does not resolve opens a new draft.
func (s *State) Open(id int64) {
	n, ok := s.notes.Get(id)
	if !ok {
		s.logger.Warn("editor: note not found, starting a new one", slog.Int64("id", id))
		s.NewNote()
		return
	}
	s.mode = Editing
	s.noteID = id
	s.draft = Draft{Title: n.Title, Content: n.Content, Color: n.Color}
}

// SetTitle changes the draft title.
func (s *State) SetTitle(v string) error {
	if s.mode == Closed {
		return fmt.Errorf("editor: set title: %w", apperr.ErrInvalidState)
	}
	s.draft.Title = v
	return nil
}

// SetContent changes the draft content.
func (s *State) SetContent(v string) error {
	if s.mode == Closed {
		return fmt.Errorf("editor: set content: %w", apperr.ErrInvalidState)
	}
	s.draft.Content = v
	return nil
}

// SetColor picks a palette color for the draft.
func (s *State) SetColor(v string) error {
	if s.mode == Closed {
		return fmt.Errorf("editor: set color: %w", apperr.ErrInvalidState)
	}
	if !models.IsPaletteColor(v) {
		return fmt.Errorf("editor: %q: %w", v, apperr.ErrInvalidColor)
	}
	s.draft.Color = v
	return nil
}

// Save persists the draft and closes the editor. A draft whose title and content
// are both blank is not saved and the editor stays open (ErrEmptyDraft). On a
// storage failure the editor also stays open so the draft is not lost.
func (s *State) Save(ctx context.Context) (models.Note, error) {
	if s.mode == Closed {
		return models.Note{}, fmt.Errorf("editor: save: %w", apperr.ErrInvalidState)
	}
	title := strings.TrimSpace(s.draft.Title)
	content := strings.TrimSpace(s.draft.Content)
	if title == "" && content == "" {
		return models.Note{}, apperr.ErrEmptyDraft
	}

	var (
		n   models.Note
		err error
	)
	if s.mode == Editing {
		n, err = s.notes.Update(ctx, s.noteID, title, content, s.draft.Color)
	} else {
		n, err = s.notes.Create(ctx, title, content, s.draft.Color)
	}
	if err == nil || errors.Is(err, apperr.ErrNotFound) {
		s.close()
	}
	return n, err
}

// Cancel discards the draft.
func (s *State) Cancel() {
	s.close()
}

// Delete removes the note being edited once confirm agrees.
func (s *State) Delete(ctx context.Context, confirm Confirmer) error {
	if s.mode != Editing {
		return fmt.Errorf("editor: delete: %w", apperr.ErrInvalidState)
	}
	if confirm == nil || !confirm.Confirm(DeletePrompt) {
		return apperr.ErrNotConfirmed
	}
	err := s.notes.Delete(ctx, s.noteID)
	if err == nil || errors.Is(err, apperr.ErrNotFound) {
		s.close()
	}
	return err
}

func (s *State) close() {
	s.mode = Closed
	s.noteID = 0
	s.draft = Draft{}
}
