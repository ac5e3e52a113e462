// Package models defines the domain types for keepnotes.
package models

import (
	"slices"
	"time"
)

// Palette colors a note can be tagged with.
const (
	ColorRed    = "#f44336"
	ColorIndigo = "#3f51b5"
	ColorBlue   = "#2196f3"
	ColorGreen  = "#4caf50"
	ColorAmber  = "#ffc107"
	ColorPurple = "#9c27b0"
)

// DefaultColor is used when a note is saved without a color.
const DefaultColor = ColorIndigo

// UntitledTitle replaces an empty title at save time.
const UntitledTitle = "Untitled"

// Palette lists the selectable colors in picker order.
var Palette = []string{ColorRed, ColorIndigo, ColorBlue, ColorGreen, ColorAmber, ColorPurple}

// IsPaletteColor reports whether c is one of the palette colors.
func IsPaletteColor(c string) bool {
	return slices.Contains(Palette, c)
}

// Note is a single user-authored record. ID is the sole lookup key.
type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
