package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keepnotes/internal/dispatch"
	"github.com/starford/keepnotes/internal/editor"
	"github.com/starford/keepnotes/internal/theme"
)

// Handler holds API route handlers.
type Handler struct {
	d *dispatch.Dispatcher
}

// NewHandler creates a new Handler.
func NewHandler(d *dispatch.Dispatcher) *Handler {
	return &Handler{d: d}
}

func (h *Handler) send(ctx context.Context, w http.ResponseWriter, msg dispatch.Msg) (dispatch.Result, bool) {
	res, err := h.d.Send(ctx, msg)
	if res.Revision != "" {
		w.Header().Set("ETag", strconv.Quote(res.Revision))
	}
	if err != nil {
		writeError(w, err)
		return res, false
	}
	return res, true
}

func noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return 0, false
	}
	return id, true
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, newest first; q sets the active search query
//	@Tags			notes
//	@Produce		json
//	@Param			q	query		string	false	"Case-insensitive substring of title or content"
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	var msg dispatch.Msg = dispatch.ListNotes{}
	query := r.URL.Query()
	if query.Has("q") {
		msg = dispatch.Search{Query: query.Get("q")}
	}
	res, ok := h.send(r.Context(), w, msg)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{
		Notes: res.Notes,
		Total: res.Total,
		Query: query.Get("q"),
	})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decode(w, r, &req) {
		return
	}
	res, ok := h.send(r.Context(), w, dispatch.CreateNote{Title: req.Title, Content: req.Content, Color: req.Color})
	if !ok {
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/notes/%d", res.Note.ID))
	writeJSON(w, http.StatusCreated, res.Note)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	res, ok := h.send(r.Context(), w, dispatch.GetNote{ID: id})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res.Note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Replace a note's title, content and color
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int			true	"Note id"
//	@Param			body	body		NoteRequest	true	"Updated fields; empty color keeps the current one"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var req NoteRequest
	if !decode(w, r, &req) {
		return
	}
	res, ok := h.send(r.Context(), w, dispatch.UpdateNote{ID: id, Title: req.Title, Content: req.Content, Color: req.Color})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res.Note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	int	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	if _, ok := h.send(r.Context(), w, dispatch.DeleteNote{ID: id}); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload handles POST /api/notes/reload.
//
//	@Summary		Re-read notes and theme from the store
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	res, ok := h.send(r.Context(), w, dispatch.Reload{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: res.Notes, Total: res.Total})
}

// Editor handles GET /api/editor.
//
//	@Summary		Current editor state
//	@Tags			editor
//	@Produce		json
//	@Success		200	{object}	EditorResponse
//	@Security		BearerAuth
//	@Router			/editor [get]
func (h *Handler) Editor(w http.ResponseWriter, r *http.Request) {
	res, ok := h.send(r.Context(), w, dispatch.EditorStatus{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, EditorResponse{Editor: res.Editor})
}

// EditorCommand handles POST /api/editor/commands.
//
//	@Summary		Apply one editor transition
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EditorCommand	true	"Command"
//	@Success		200		{object}	EditorResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		412		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/editor/commands [post]
func (h *Handler) EditorCommand(w http.ResponseWriter, r *http.Request) {
	var cmd EditorCommand
	if !decode(w, r, &cmd) {
		return
	}
	res, ok := h.send(r.Context(), w, commandMsg(cmd))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, EditorResponse{Editor: res.Editor, Note: res.Note})
}

func commandMsg(cmd EditorCommand) dispatch.Msg {
	switch strings.ToLower(strings.TrimSpace(cmd.Type)) {
	case CmdNew:
		return dispatch.NewNote{}
	case CmdOpen:
		return dispatch.OpenNote{ID: cmd.ID}
	case CmdTitle:
		return dispatch.SetTitle{Title: cmd.Value}
	case CmdContent:
		return dispatch.SetContent{Content: cmd.Value}
	case CmdColor:
		return dispatch.SetColor{Color: cmd.Value}
	case CmdSave:
		return dispatch.Save{}
	case CmdDelete:
		confirmed := cmd.Confirm
		return dispatch.DeleteCurrent{Confirm: editor.ConfirmFunc(func(string) bool { return confirmed })}
	default:
		return dispatch.Cancel{}
	}
}

// Theme handles GET /api/theme.
//
//	@Summary		Current theme
//	@Tags			theme
//	@Produce		json
//	@Success		200	{object}	ThemeResponse
//	@Security		BearerAuth
//	@Router			/theme [get]
func (h *Handler) Theme(w http.ResponseWriter, r *http.Request) {
	// Every result reports the theme; EditorStatus has no side effects.
	res, ok := h.send(r.Context(), w, dispatch.EditorStatus{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: res.Theme})
}

// SetTheme handles PUT /api/theme.
//
//	@Summary		Set the theme
//	@Tags			theme
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ThemeRequest	true	"light or dark"
//	@Success		200		{object}	ThemeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/theme [put]
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decode(w, r, &req) {
		return
	}
	res, ok := h.send(r.Context(), w, dispatch.SetTheme{Mode: theme.Mode(req.Theme)})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: res.Theme})
}

// ToggleTheme handles POST /api/theme/toggle.
//
//	@Summary		Flip between light and dark
//	@Tags			theme
//	@Produce		json
//	@Success		200	{object}	ThemeResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/theme/toggle [post]
func (h *Handler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	res, ok := h.send(r.Context(), w, dispatch.ToggleTheme{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: res.Theme})
}
