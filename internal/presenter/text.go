// Package presenter renders note views for terminals.
package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/starford/keepnotes/internal/dispatch"
	"github.com/starford/keepnotes/internal/models"
)

// PreviewWidth is the number of terminal cells kept from a note's content.
const PreviewWidth = 80

// EmptyMessage is printed when there are no notes at all.
const EmptyMessage = `No notes yet. Run "keepnotes add" to start!`

// NoMatchMessage is printed when notes exist but none match the query.
const NoMatchMessage = "No notes match your search."

// Text writes note cards to w, newest first.
type Text struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
	err      error
}

var _ dispatch.Presenter = (*Text)(nil)

// NewText creates a text presenter. Colors are only emitted when w is a
// terminal that supports them.
func NewText(w io.Writer) *Text {
	return &Text{w: w, renderer: lipgloss.NewRenderer(w)}
}

// Present implements dispatch.Presenter.
func (t *Text) Present(v dispatch.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.w, t.render(v)); err != nil && t.err == nil {
		t.err = err
	}
}

// Err returns the first write error, if any.
func (t *Text) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Text) render(v dispatch.View) string {
	var b strings.Builder
	switch {
	case v.Total == 0:
		b.WriteString(EmptyMessage)
		b.WriteByte('\n')
	case len(v.Notes) == 0:
		b.WriteString(NoMatchMessage)
		b.WriteByte('\n')
	default:
		for i, n := range v.Notes {
			if i > 0 {
				b.WriteByte('\n')
			}
			t.card(&b, n)
		}
	}
	return b.String()
}

func (t *Text) card(b *strings.Builder, n models.Note) {
	dot := t.renderer.NewStyle().Foreground(lipgloss.Color(n.Color)).Render("●")
	title := n.Title
	if strings.TrimSpace(title) == "" {
		title = models.UntitledTitle
	}
	fmt.Fprintf(b, "%s [%d] %s\n", dot, n.ID, title)
	if p := Preview(n.Content); p != "" {
		fmt.Fprintf(b, "    %s\n", p)
	}
	fmt.Fprintf(b, "    %s\n", n.UpdatedAt.Local().Format("2006-01-02 15:04"))
}

// Preview flattens content onto one line. Longer lines keep their first
// PreviewWidth cells followed by "...".
func Preview(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	if runewidth.StringWidth(flat) <= PreviewWidth {
		return flat
	}
	return runewidth.Truncate(flat, PreviewWidth, "") + "..."
}
