package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keepnotes/internal/dispatch"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(d *dispatch.Dispatcher, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes collection.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/reload", h.Reload)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Editor state machine.
	r.Get("/editor", h.Editor)
	r.Post("/editor/commands", h.EditorCommand)

	// Theme preference.
	r.Get("/theme", h.Theme)
	r.Put("/theme", h.SetTheme)
	r.Post("/theme/toggle", h.ToggleTheme)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
