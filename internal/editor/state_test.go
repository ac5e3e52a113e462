package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/keepnotes/internal/apperr"
	"github.com/starford/keepnotes/internal/models"
	"github.com/starford/keepnotes/internal/notes"
	"github.com/starford/keepnotes/internal/testutil"
)

var (
	yes = ConfirmFunc(func(string) bool { return true })
	no  = ConfirmFunc(func(string) bool { return false })
)

func setup(t *testing.T) (*State, *notes.Repository, *testutil.FlakyStore) {
	t.Helper()
	store := testutil.NewFlakyStore()
	repo := notes.NewRepository(store, notes.WithLogger(testutil.Logger()), notes.WithClock(testutil.NewClock().Now))
	require.NoError(t, repo.Init(context.Background()))
	return New(repo, testutil.Logger()), repo, store
}

func TestInitialStateClosed(t *testing.T) {
	s, _, _ := setup(t)
	assert.Equal(t, Closed, s.Mode())
	assert.Equal(t, "closed", s.Snapshot().Mode)
	assert.Nil(t, s.Snapshot().Draft)
}

func TestNewNote_ResetsDraft(t *testing.T) {
	s, _, _ := setup(t)
	s.NewNote()
	require.NoError(t, s.SetTitle("scratch"))
	s.NewNote()

	assert.Equal(t, Creating, s.Mode())
	assert.Equal(t, Draft{Color: models.DefaultColor}, s.Draft())
	assert.Equal(t, "New Note", s.Heading())
}

func TestOpen_CopiesNote(t *testing.T) {
	s, repo, _ := setup(t)
	n, err := repo.Create(context.Background(), "Groceries", "Milk", models.ColorBlue)
	require.NoError(t, err)

	s.Open(n.ID)
	assert.Equal(t, Editing, s.Mode())
	id, ok := s.NoteID()
	assert.True(t, ok)
	assert.Equal(t, n.ID, id)
	assert.Equal(t, Draft{Title: "Groceries", Content: "Milk", Color: models.ColorBlue}, s.Draft())
	assert.Equal(t, "Groceries", s.Heading())
}

func TestOpen_UnknownIDCreates(t *testing.T) {
	s, _, _ := setup(t)
	s.Open(12345)
	assert.Equal(t, Creating, s.Mode())
	_, ok := s.NoteID()
	assert.False(t, ok)
}

func TestSetters_RequireOpenEditor(t *testing.T) {
	s, _, _ := setup(t)
	assert.ErrorIs(t, s.SetTitle("x"), apperr.ErrInvalidState)
	assert.ErrorIs(t, s.SetContent("x"), apperr.ErrInvalidState)
	assert.ErrorIs(t, s.SetColor(models.ColorRed), apperr.ErrInvalidState)
}

func TestSetColor_RejectsUnknown(t *testing.T) {
	s, _, _ := setup(t)
	s.NewNote()
	assert.ErrorIs(t, s.SetColor("#000000"), apperr.ErrInvalidColor)
	assert.Equal(t, models.DefaultColor, s.Draft().Color)
	require.NoError(t, s.SetColor(models.ColorGreen))
	assert.Equal(t, models.ColorGreen, s.Draft().Color)
}

func TestSave_CreatesAndCloses(t *testing.T) {
	s, repo, _ := setup(t)
	s.NewNote()
	require.NoError(t, s.SetTitle("  Todo  "))
	require.NoError(t, s.SetContent("Call mom\n"))
	require.NoError(t, s.SetColor(models.ColorRed))

	n, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Todo", n.Title)
	assert.Equal(t, "Call mom", n.Content)
	assert.Equal(t, models.ColorRed, n.Color)
	assert.Equal(t, Closed, s.Mode())
	assert.Len(t, repo.List(), 1)
}

func TestSave_ContentOnlyIsUntitled(t *testing.T) {
	s, _, _ := setup(t)
	s.NewNote()
	require.NoError(t, s.SetContent("just a body"))
	n, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.UntitledTitle, n.Title)
}

func TestSave_EmptyDraftIsSkipped(t *testing.T) {
	s, repo, store := setup(t)
	s.NewNote()
	require.NoError(t, s.SetTitle("   "))
	require.NoError(t, s.SetContent("\n\t"))

	_, err := s.Save(context.Background())
	assert.ErrorIs(t, err, apperr.ErrEmptyDraft)
	assert.Equal(t, Creating, s.Mode())
	assert.Empty(t, repo.List())
	assert.Zero(t, store.Sets())
}

func TestSave_UpdatesExisting(t *testing.T) {
	s, repo, _ := setup(t)
	ctx := context.Background()
	a, _ := repo.Create(ctx, "A", "one", models.ColorBlue)
	b, _ := repo.Create(ctx, "B", "two", models.ColorRed)

	s.Open(a.ID)
	require.NoError(t, s.SetContent("uno"))
	n, err := s.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, n.ID)
	assert.Equal(t, "uno", n.Content)
	assert.Equal(t, Closed, s.Mode())

	list := repo.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestSave_StorageErrorKeepsDraft(t *testing.T) {
	s, _, store := setup(t)
	s.NewNote()
	require.NoError(t, s.SetTitle("keep me"))
	store.FailSets(errors.New("quota"))

	_, err := s.Save(context.Background())
	assert.ErrorIs(t, err, apperr.ErrStorageWrite)
	assert.Equal(t, Creating, s.Mode())
	assert.Equal(t, "keep me", s.Draft().Title)

	store.Heal()
	_, err = s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Closed, s.Mode())
}

func TestSave_VanishedNoteCloses(t *testing.T) {
	s, repo, _ := setup(t)
	ctx := context.Background()
	a, _ := repo.Create(ctx, "A", "", "")
	s.Open(a.ID)
	require.NoError(t, repo.Delete(ctx, a.ID))

	require.NoError(t, s.SetContent("late edit"))
	_, err := s.Save(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, Closed, s.Mode())
	assert.Empty(t, repo.List())
}

func TestSave_Closed(t *testing.T) {
	s, _, _ := setup(t)
	_, err := s.Save(context.Background())
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCancel_DiscardsDraft(t *testing.T) {
	s, repo, store := setup(t)
	s.NewNote()
	require.NoError(t, s.SetTitle("draft"))
	s.Cancel()

	assert.Equal(t, Closed, s.Mode())
	assert.Equal(t, Draft{}, s.Draft())
	assert.Empty(t, repo.List())
	assert.Zero(t, store.Sets())
}

func TestDelete(t *testing.T) {
	s, repo, _ := setup(t)
	ctx := context.Background()
	a, _ := repo.Create(ctx, "A", "", "")

	s.Open(a.ID)
	var prompt string
	err := s.Delete(ctx, ConfirmFunc(func(p string) bool { prompt = p; return true }))
	require.NoError(t, err)
	assert.Equal(t, DeletePrompt, prompt)
	assert.Equal(t, Closed, s.Mode())
	assert.Empty(t, repo.List())
}

func TestDelete_Declined(t *testing.T) {
	s, repo, _ := setup(t)
	ctx := context.Background()
	a, _ := repo.Create(ctx, "A", "", "")

	s.Open(a.ID)
	assert.ErrorIs(t, s.Delete(ctx, no), apperr.ErrNotConfirmed)
	assert.ErrorIs(t, s.Delete(ctx, nil), apperr.ErrNotConfirmed)
	assert.Equal(t, Editing, s.Mode())
	assert.Len(t, repo.List(), 1)
}

func TestDelete_OnlyWhileEditing(t *testing.T) {
	s, _, _ := setup(t)
	assert.ErrorIs(t, s.Delete(context.Background(), yes), apperr.ErrInvalidState)
	s.NewNote()
	assert.ErrorIs(t, s.Delete(context.Background(), yes), apperr.ErrInvalidState)
	assert.Equal(t, Creating, s.Mode())
}

func TestDelete_StorageErrorStaysOpen(t *testing.T) {
	s, repo, store := setup(t)
	ctx := context.Background()
	a, _ := repo.Create(ctx, "A", "", "")
	s.Open(a.ID)

	store.FailGets(errors.New("locked"))
	assert.ErrorIs(t, s.Delete(ctx, yes), apperr.ErrStorageRead)
	assert.Equal(t, Editing, s.Mode())
}

func TestDelete_AlreadyGoneCloses(t *testing.T) {
	s, repo, _ := setup(t)
	ctx := context.Background()
	a, _ := repo.Create(ctx, "A", "", "")
	s.Open(a.ID)
	require.NoError(t, repo.Delete(ctx, a.ID))

	assert.ErrorIs(t, s.Delete(ctx, yes), apperr.ErrNotFound)
	assert.Equal(t, Closed, s.Mode())
}
