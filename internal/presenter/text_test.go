package presenter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/starford/keepnotes/internal/dispatch"
	"github.com/starford/keepnotes/internal/models"
)

func TestPresent_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewText(&buf).Present(dispatch.View{})
	if got := strings.TrimSpace(buf.String()); got != EmptyMessage {
		t.Errorf("got %q", got)
	}
}

func TestPresent_NoMatch(t *testing.T) {
	var buf bytes.Buffer
	NewText(&buf).Present(dispatch.View{Query: "zzz", Total: 3})
	if got := strings.TrimSpace(buf.String()); got != NoMatchMessage {
		t.Errorf("got %q", got)
	}
}

func TestPresent_Cards(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	v := dispatch.View{
		Total: 2,
		Notes: []models.Note{
			{ID: 2, Title: "Todo", Content: "Call\nmom", Color: models.ColorRed, UpdatedAt: at},
			{ID: 1, Title: "", Content: "", Color: models.ColorIndigo, UpdatedAt: at},
		},
	}
	var buf bytes.Buffer
	p := NewText(&buf)
	p.Present(v)
	if err := p.Err(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"[2] Todo", "    Call mom", "[1] Untitled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "[2]") > strings.Index(out, "[1]") {
		t.Errorf("cards out of order:\n%s", out)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", ""},
		{"short", "Milk, eggs", "Milk, eggs"},
		{"whitespace", "  a\n\tb  ", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.content); got != tt.want {
				t.Errorf("Preview(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestPreview_Truncates(t *testing.T) {
	exact := strings.Repeat("x", PreviewWidth)
	if got := Preview(exact); got != exact {
		t.Errorf("%d cells changed to %q", PreviewWidth, got)
	}
	if got, want := Preview(exact+"y"), exact+"..."; got != want {
		t.Errorf("Preview(81 cells) = %q, want %q", got, want)
	}

	got := Preview(strings.Repeat("日本", 60))
	head, ok := strings.CutSuffix(got, "...")
	if !ok {
		t.Fatalf("missing ellipsis: %q", got)
	}
	if w := runewidth.StringWidth(head); w > PreviewWidth || w < PreviewWidth-1 {
		t.Errorf("kept width = %d, want %d", w, PreviewWidth)
	}
}
