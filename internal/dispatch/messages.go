package dispatch

import (
	"github.com/starford/keepnotes/internal/editor"
	"github.com/starford/keepnotes/internal/theme"
)

// Msg is a discrete user action.
type Msg interface {
	name() string
}

// Editor actions.
type (
	NewNote      struct{}
	OpenNote     struct{ ID int64 }
	SetTitle     struct{ Title string }
	SetContent   struct{ Content string }
	SetColor     struct{ Color string }
	Save         struct{}
	Cancel       struct{}
	EditorStatus struct{}
)

// DeleteCurrent deletes the note open in the editor once Confirm agrees.
type DeleteCurrent struct {
	Confirm editor.Confirmer
}

// Collection actions.
type (
	Search     struct{ Query string }
	ListNotes  struct{}
	GetNote    struct{ ID int64 }
	Reload     struct{}
	CreateNote struct{ Title, Content, Color string }
	DeleteNote struct{ ID int64 }
)

// UpdateNote replaces the fields of note ID. An empty Color keeps the current one.
type UpdateNote struct {
	ID                    int64
	Title, Content, Color string
}

// Theme actions.
type (
	SetTheme    struct{ Mode theme.Mode }
	ToggleTheme struct{}
)

func (NewNote) name() string       { return "new_note" }
func (OpenNote) name() string      { return "open_note" }
func (SetTitle) name() string      { return "set_title" }
func (SetContent) name() string    { return "set_content" }
func (SetColor) name() string      { return "set_color" }
func (Save) name() string          { return "save" }
func (Cancel) name() string        { return "cancel" }
func (DeleteCurrent) name() string { return "delete_current" }
func (EditorStatus) name() string  { return "editor_status" }
func (Search) name() string        { return "search" }
func (ListNotes) name() string     { return "list_notes" }
func (GetNote) name() string       { return "get_note" }
func (Reload) name() string        { return "reload" }
func (CreateNote) name() string    { return "create_note" }
func (UpdateNote) name() string    { return "update_note" }
func (DeleteNote) name() string    { return "delete_note" }
func (SetTheme) name() string      { return "set_theme" }
func (ToggleTheme) name() string   { return "toggle_theme" }
