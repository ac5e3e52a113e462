package notes

import (
	"strings"

	"github.com/starford/keepnotes/internal/models"
)

// Search filters the cache by query. See Filter.
func (r *Repository) Search(query string) []models.Note {
	return Filter(r.notes, query)
}

// Filter returns the notes whose title or content contains query, ignoring case
// and surrounding whitespace. A blank query matches everything. Order is kept.
func Filter(notes []models.Note, query string) []models.Note {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if q == "" ||
			strings.Contains(strings.ToLower(n.Title), q) ||
			strings.Contains(strings.ToLower(n.Content), q) {
			out = append(out, n)
		}
	}
	return out
}
