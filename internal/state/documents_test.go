// internal/state/documents_test.go
package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/casewatch/internal/types"
)

func sampleCases(t *testing.T) []*types.Case {
	t.Helper()
	raw := `[
		{"id":"c1","date":"2024-01-01","clientName":"王小明","plate":"ABC-123","status":"New",
		 "history":[],"itinerary":[{"time":"2024-02-01T10:00","event":"調解","notified":[]}],
		 "attachments":[],"insurer":"國泰"},
		{"id":"c2","date":"2024-01-05","clientName":"","plate":"","status":"",
		 "history":[],"itinerary":[],"attachments":[]}
	]`
	var cases []*types.Case
	if err := json.Unmarshal([]byte(raw), &cases); err != nil {
		t.Fatal(err)
	}
	return cases
}

// exerciseStore runs the same checks against any DocumentStore.
func exerciseStore(t *testing.T, store types.DocumentStore) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.LoadCases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no cases, got %d", len(empty))
	}

	if err := store.SaveCases(ctx, sampleCases(t)); err != nil {
		t.Fatal(err)
	}
	cases, err := store.LoadCases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].ID != "c1" || cases[1].ID != "c2" {
		t.Errorf("order not preserved: %s, %s", cases[0].ID, cases[1].ID)
	}
	if string(cases[0].Extra["insurer"]) != `"國泰"` {
		t.Errorf("unknown field lost: %v", cases[0].Extra)
	}

	// wholesale replace
	if err := store.SaveCases(ctx, cases[1:]); err != nil {
		t.Fatal(err)
	}
	cases, _ = store.LoadCases(ctx)
	if len(cases) != 1 || cases[0].ID != "c2" {
		t.Fatalf("expected only c2 after replace, got %d cases", len(cases))
	}

	reminders := []*types.Reminder{{CaseTitle: "回電", Time: "2024-01-02T09:00", CaseID: "c1"}}
	if err := store.SaveReminders(ctx, reminders); err != nil {
		t.Fatal(err)
	}
	loaded, err := store.LoadReminders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].CaseTitle != "回電" {
		t.Errorf("unexpected reminders: %+v", loaded)
	}

	settings := &types.Settings{TelegramChatID: "-100", Users: []types.User{{Username: "a", Password: "b"}}}
	if err := store.SaveSettings(ctx, settings); err != nil {
		t.Fatal(err)
	}
	got, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.TelegramChatID != "-100" || len(got.Users) != 1 {
		t.Errorf("unexpected settings: %+v", got)
	}
}

func TestFileStore(t *testing.T) {
	store := NewFileStore(t.TempDir())
	exerciseStore(t, store)
}

func TestFileStoreCaseRows(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	if err := store.SaveCases(context.Background(), sampleCases(t)); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "cases.json"))
	if err != nil {
		t.Fatal(err)
	}
	var rows []CaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatal(err)
	}
	if rows[0].Name != "王小明" || rows[0].Plate != "ABC-123" || rows[0].Status != "New" {
		t.Errorf("unexpected index columns: %+v", rows[0])
	}
	if rows[1].Status != "Waiting" {
		t.Errorf("expected empty status indexed as Waiting, got %q", rows[1].Status)
	}
	if rows[0].UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}
}

func TestFileStoreCorruptBlobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cases.json", "reminders.json", "settings.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store := NewFileStore(dir)
	ctx := context.Background()

	cases, err := store.LoadCases(ctx)
	if err != nil || len(cases) != 0 {
		t.Errorf("expected empty cases, got %v %v", cases, err)
	}
	reminders, err := store.LoadReminders(ctx)
	if err != nil || len(reminders) != 0 {
		t.Errorf("expected empty reminders, got %v %v", reminders, err)
	}
	settings, err := store.LoadSettings(ctx)
	if err != nil || settings == nil {
		t.Errorf("expected empty settings, got %v %v", settings, err)
	}
}

func TestSQLStoreSQLite(t *testing.T) {
	store := NewSQLStore("sqlite", filepath.Join(t.TempDir(), "casewatch.db"))
	defer store.Close()
	exerciseStore(t, store)
}

func TestSQLBind(t *testing.T) {
	pg := newSQLCore("postgres", "postgres://x", nil)
	if got := pg.bind("SELECT ? , ?"); got != "SELECT $1 , $2" {
		t.Errorf("unexpected postgres binding %q", got)
	}
	lite := newSQLCore("sqlite", "x.db", nil)
	if got := lite.bind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("unexpected sqlite binding %q", got)
	}
}
