package api

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/keepnotes/internal/editor"
	"github.com/starford/keepnotes/internal/models"
	"github.com/starford/keepnotes/internal/theme"
)

// Field limits for note input.
const (
	MaxTitleLength   = 200
	MaxContentLength = 100_000
)

var paletteRule = validation.In(toAny(models.Palette)...).Error("must be a palette color")

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// NoteRequest is the request body for creating or updating a note.
type NoteRequest struct {
	Title   string `json:"title" example:"Groceries"`
	Content string `json:"content" example:"Milk, eggs"`
	Color   string `json:"color,omitempty" example:"#2196f3"`
}

// Validate implements validation.Validatable.
func (r NoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.RuneLength(0, MaxTitleLength)),
		validation.Field(&r.Content, validation.RuneLength(0, MaxContentLength)),
		validation.Field(&r.Color, paletteRule),
	)
}

// NoteListResponse wraps the visible notes.
type NoteListResponse struct {
	Notes []models.Note `json:"notes"`
	Total int           `json:"total"`
	Query string        `json:"query,omitempty"`
}

// ThemeRequest sets the theme.
type ThemeRequest struct {
	Theme string `json:"theme" example:"dark"`
}

// Validate implements validation.Validatable.
func (r ThemeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Theme, validation.Required, validation.In(string(theme.Light), string(theme.Dark))),
	)
}

// ThemeResponse reports the current theme.
type ThemeResponse struct {
	Theme theme.Mode `json:"theme"`
}

// Editor command types.
const (
	CmdNew     = "new"
	CmdOpen    = "open"
	CmdTitle   = "title"
	CmdContent = "content"
	CmdColor   = "color"
	CmdSave    = "save"
	CmdCancel  = "cancel"
	CmdDelete  = "delete"
)

// EditorCommand drives the editor state machine.
type EditorCommand struct {
	Type    string `json:"type" example:"open"`
	ID      int64  `json:"id,omitempty" example:"1709283600000"`
	Value   string `json:"value,omitempty"`
	Confirm bool   `json:"confirm,omitempty"`
}

// Validate implements validation.Validatable.
func (c EditorCommand) Validate() error {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required,
			validation.In(CmdNew, CmdOpen, CmdTitle, CmdContent, CmdColor, CmdSave, CmdCancel, CmdDelete)),
		validation.Field(&c.ID, validation.When(c.Type == CmdOpen, validation.Required)),
		validation.Field(&c.Value,
			validation.When(c.Type == CmdTitle, validation.RuneLength(0, MaxTitleLength)),
			validation.When(c.Type == CmdContent, validation.RuneLength(0, MaxContentLength)),
			validation.When(c.Type == CmdColor, validation.Required, paletteRule),
		),
	)
}

// EditorResponse is returned by editor endpoints.
type EditorResponse struct {
	Editor editor.Snapshot `json:"editor"`
	Note   *models.Note    `json:"note,omitempty"`
}
