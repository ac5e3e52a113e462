// Package apperr holds the sentinel errors shared across keepnotes packages.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrStorageRead  = errors.New("storage read failed")
	ErrStorageWrite = errors.New("storage write failed")

	// ErrEmptyDraft marks a save skipped because title and content are blank.
	// It is a guarded no-op, not a failure.
	ErrEmptyDraft = errors.New("draft is empty")

	ErrNotConfirmed = errors.New("not confirmed")
	ErrInvalidState = errors.New("invalid editor state")
	ErrInvalidColor = errors.New("color is not in the palette")
	ErrInvalidTheme = errors.New("unknown theme")
)

// IsStorage reports whether err came from the key-value store.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageRead) || errors.Is(err, ErrStorageWrite)
}
