package notes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/starford/keepnotes/internal/apperr"
	"github.com/starford/keepnotes/internal/kv"
	"github.com/starford/keepnotes/internal/models"
	"github.com/starford/keepnotes/internal/testutil"
)

func testRepo(t *testing.T, store kv.Store) *Repository {
	t.Helper()
	r := NewRepository(store, WithLogger(testutil.Logger()), WithClock(testutil.NewClock().Now))
	if err := r.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func ids(notes []models.Note) []int64 {
	out := make([]int64, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func sameNotes(t *testing.T, got, want []models.Note) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (got ids %v, want %v)", len(got), len(want), ids(got), ids(want))
	}
	for i := range got {
		g, w := got[i], want[i]
		if g.ID != w.ID || g.Title != w.Title || g.Content != w.Content || g.Color != w.Color ||
			!g.CreatedAt.Equal(w.CreatedAt) || !g.UpdatedAt.Equal(w.UpdatedAt) {
			t.Errorf("note %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestLoad_AbsentKeyIsEmpty(t *testing.T) {
	r := testRepo(t, kv.NewMemory())
	if got := r.List(); len(got) != 0 {
		t.Errorf("List = %v, want empty", got)
	}
}

func TestLoad_ReadsPersistedSequence(t *testing.T) {
	store := kv.NewMemory()
	raw := `[{"id":2,"title":"B","content":"","color":"#f44336","createdAt":"2024-01-02T00:00:00.000Z","updatedAt":"2024-01-02T00:00:00.000Z"},
	         {"id":1,"title":"A","content":"x","color":"#3f51b5","createdAt":"2024-01-01T00:00:00.000Z","updatedAt":"2024-01-01T00:00:00.000Z"}]`
	if err := store.Set(context.Background(), map[string]json.RawMessage{StorageKey: json.RawMessage(raw)}); err != nil {
		t.Fatal(err)
	}
	r := testRepo(t, store)
	got := r.List()
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("List ids = %v, want [2 1]", ids(got))
	}
	if !got[1].CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("createdAt = %v", got[1].CreatedAt)
	}
}

func TestLoad_StorageErrorKeepsLastKnown(t *testing.T) {
	store := testutil.NewFlakyStore()
	r := testRepo(t, store)
	a, err := r.Create(context.Background(), "A", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	store.FailGets(errors.New("disk gone"))
	got, err := r.Load(context.Background())
	if !errors.Is(err, apperr.ErrStorageRead) {
		t.Fatalf("err = %v, want ErrStorageRead", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("Load returned %v, want last known [%d]", ids(got), a.ID)
	}
}

func TestCreate_DefaultsAndTimestamps(t *testing.T) {
	r := testRepo(t, kv.NewMemory())
	n, err := r.Create(context.Background(), "", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.Title != models.UntitledTitle {
		t.Errorf("title = %q, want %q", n.Title, models.UntitledTitle)
	}
	if n.Content != "" {
		t.Errorf("content = %q, want empty", n.Content)
	}
	if n.Color != models.DefaultColor {
		t.Errorf("color = %q, want default", n.Color)
	}
	if !n.CreatedAt.Equal(n.UpdatedAt) {
		t.Errorf("createdAt %v != updatedAt %v", n.CreatedAt, n.UpdatedAt)
	}
	if n.ID != n.CreatedAt.UnixMilli() {
		t.Errorf("id = %d, want creation millis %d", n.ID, n.CreatedAt.UnixMilli())
	}
}

func TestCreate_WhitespaceTitleIsUntitled(t *testing.T) {
	r := testRepo(t, kv.NewMemory())
	n, _ := r.Create(context.Background(), "   ", "body", models.ColorGreen)
	if n.Title != models.UntitledTitle {
		t.Errorf("title = %q", n.Title)
	}
}

func TestCreate_SameInstantGetsDistinctIDs(t *testing.T) {
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRepository(kv.NewMemory(), WithLogger(testutil.Logger()), WithClock(func() time.Time { return frozen }))
	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		n, err := r.Create(context.Background(), "t", "", "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[n.ID] {
			t.Fatalf("duplicate id %d", n.ID)
		}
		seen[n.ID] = true
	}
}

func TestCreate_WriteFailureLeavesCache(t *testing.T) {
	store := testutil.NewFlakyStore()
	r := testRepo(t, store)
	a, _ := r.Create(context.Background(), "A", "", "")

	store.FailSets(errors.New("quota exceeded"))
	_, err := r.Create(context.Background(), "B", "", "")
	if !errors.Is(err, apperr.ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	if got := ids(r.List()); len(got) != 1 || got[0] != a.ID {
		t.Errorf("List = %v, want [%d]", got, a.ID)
	}

	store.Heal()
	persisted, err := r.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted) != 1 {
		t.Errorf("store holds %d notes, want 1", len(persisted))
	}
}

func TestCreate_ReadFailureDoesNotWrite(t *testing.T) {
	store := testutil.NewFlakyStore()
	r := testRepo(t, store)
	store.FailGets(errors.New("locked"))

	if _, err := r.Create(context.Background(), "A", "", ""); !errors.Is(err, apperr.ErrStorageRead) {
		t.Fatalf("err = %v, want ErrStorageRead", err)
	}
	if store.Sets() != 0 {
		t.Errorf("store written %d times, want 0", store.Sets())
	}
}

func TestMutations_FreshReadWinsOverStaleCache(t *testing.T) {
	store := kv.NewMemory()
	r1 := testRepo(t, store)
	r2 := testRepo(t, store)

	a, _ := r1.Create(context.Background(), "from r1", "", "")
	b, err := r2.Create(context.Background(), "from r2", "", "")
	if err != nil {
		t.Fatal(err)
	}
	got := ids(r2.List())
	if len(got) != 2 || got[0] != b.ID || got[1] != a.ID {
		t.Errorf("List = %v, want [%d %d]", got, b.ID, a.ID)
	}
}

func TestUpdate_InPlace(t *testing.T) {
	r := testRepo(t, kv.NewMemory())
	ctx := context.Background()
	a, _ := r.Create(ctx, "A", "one", models.ColorBlue)
	b, _ := r.Create(ctx, "B", "two", models.ColorRed)

	a2, err := r.Update(ctx, a.ID, "A2", "uno", "")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if a2.Color != models.ColorBlue {
		t.Errorf("color = %q, want kept %q", a2.Color, models.ColorBlue)
	}
	if !a2.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", a.CreatedAt, a2.CreatedAt)
	}
	if !a2.UpdatedAt.After(a.UpdatedAt) {
		t.Errorf("updatedAt %v not after %v", a2.UpdatedAt, a.UpdatedAt)
	}
	got := ids(r.List())
	if got[0] != b.ID || got[1] != a.ID {
		t.Errorf("order = %v, want [%d %d]", got, b.ID, a.ID)
	}
}

func TestUpdate_UpdatedAtStrictlyIncreasesOnFrozenClock(t *testing.T) {
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRepository(kv.NewMemory(), WithLogger(testutil.Logger()), WithClock(func() time.Time { return frozen }))
	a, _ := r.Create(context.Background(), "A", "", "")
	a2, err := r.Update(context.Background(), a.ID, "A", "x", "")
	if err != nil {
		t.Fatal(err)
	}
	if !a2.UpdatedAt.After(a.UpdatedAt) {
		t.Errorf("updatedAt %v not after %v", a2.UpdatedAt, a.UpdatedAt)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	store := testutil.NewFlakyStore()
	r := testRepo(t, store)
	_, _ = r.Create(context.Background(), "A", "", "")
	before := store.Sets()

	_, err := r.Update(context.Background(), 42, "x", "y", "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if store.Sets() != before {
		t.Error("NotFound update should not write")
	}
}

func TestDelete_NotFoundIsNoop(t *testing.T) {
	store := testutil.NewFlakyStore()
	r := testRepo(t, store)
	_, _ = r.Create(context.Background(), "A", "", "")
	before := store.Sets()

	if err := r.Delete(context.Background(), 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if store.Sets() != before {
		t.Error("NotFound delete should not write")
	}
	if len(r.List()) != 1 {
		t.Error("list changed")
	}
}

func TestDelete_WriteFailureKeepsNote(t *testing.T) {
	store := testutil.NewFlakyStore()
	r := testRepo(t, store)
	a, _ := r.Create(context.Background(), "A", "", "")

	store.FailSets(errors.New("io"))
	if err := r.Delete(context.Background(), a.ID); !errors.Is(err, apperr.ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	if _, ok := r.Get(a.ID); !ok {
		t.Error("note dropped from cache after failed delete")
	}
}

func TestDelete_EmptiedCollectionPersistsAsArray(t *testing.T) {
	store := kv.NewMemory()
	r := testRepo(t, store)
	a, _ := r.Create(context.Background(), "A", "", "")
	if err := r.Delete(context.Background(), a.ID); err != nil {
		t.Fatal(err)
	}
	vals, _ := store.Get(context.Background(), StorageKey)
	if string(vals[StorageKey]) != "[]" {
		t.Errorf("persisted = %s, want []", vals[StorageKey])
	}
}

func TestRevision_TracksWrites(t *testing.T) {
	r := testRepo(t, kv.NewMemory())
	rev0 := r.Revision()
	_, _ = r.Create(context.Background(), "A", "", "")
	rev1 := r.Revision()
	if rev0 == rev1 {
		t.Error("revision unchanged after create")
	}
	_, _ = r.Load(context.Background())
	if r.Revision() != rev1 {
		t.Error("reload of own write changed revision")
	}
}

func TestThemeKeyUntouched(t *testing.T) {
	store := kv.NewMemory()
	ctx := context.Background()
	_ = store.Set(ctx, map[string]json.RawMessage{"keepNoteTheme": json.RawMessage(`"dark"`)})
	r := testRepo(t, store)
	a, _ := r.Create(ctx, "A", "", "")
	_ = r.Delete(ctx, a.ID)

	vals, _ := store.Get(ctx, "keepNoteTheme")
	if string(vals["keepNoteTheme"]) != `"dark"` {
		t.Errorf("theme = %s", vals["keepNoteTheme"])
	}
}

// The walkthrough: create A and B, edit A, delete B twice, search.
func TestScenario(t *testing.T) {
	r := testRepo(t, kv.NewMemory())
	ctx := context.Background()

	a, err := r.Create(ctx, "Groceries", "Milk, eggs", models.ColorBlue)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Create(ctx, "Todo", "Call mom", models.ColorRed)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(r.List()); got[0] != b.ID || got[1] != a.ID {
		t.Fatalf("after creates = %v, want [B A]", got)
	}

	a2, err := r.Update(ctx, a.ID, a.Title, "Milk", a.Color)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(r.List()); got[0] != b.ID || got[1] != a.ID {
		t.Fatalf("after update = %v, want [B A']", got)
	}
	if !a2.UpdatedAt.After(a.UpdatedAt) {
		t.Error("A' updatedAt not later")
	}

	if hits := r.Search("milk"); len(hits) != 1 || hits[0].ID != a.ID {
		t.Errorf("search milk = %v, want [A']", ids(hits))
	}

	if err := r.Delete(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	sameNotes(t, r.List(), []models.Note{a2})

	if err := r.Delete(ctx, b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	sameNotes(t, r.List(), []models.Note{a2})

	loaded, err := r.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	sameNotes(t, loaded, []models.Note{a2})
}

func TestScenario_SQLite(t *testing.T) {
	r := testRepo(t, testutil.SQLiteStore(t))
	ctx := context.Background()
	a, _ := r.Create(ctx, "Groceries", "Milk, eggs", models.ColorBlue)
	b, _ := r.Create(ctx, "Todo", "Call mom", models.ColorRed)

	fresh := testRepo(t, r.store)
	sameNotes(t, fresh.List(), []models.Note{b, a})
}
