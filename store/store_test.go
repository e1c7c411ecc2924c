package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/convocap/dbopen"
	"github.com/hazyhaar/convocap/store"
	"github.com/hazyhaar/convocap/turn"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewWithDB(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	return s
}

func testPayload(title string) *turn.Payload {
	return &turn.Payload{
		Source:  turn.SourceChatGPT,
		PageURL: "https://chatgpt.com/c/abc",
		Title:   title,
		Turns: []turn.Turn{
			{Role: turn.RoleUser, ContentMarkdown: "hello"},
			{Role: turn.RoleAssistant, ContentMarkdown: "hi"},
		},
		CapturedAt: time.Now().UTC(),
		Version:    turn.SchemaVersion,
	}
}

// WHAT: a saved payload round-trips byte-for-byte through Get.
func TestStore_SaveGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := testPayload("greeting")
	if err := s.Save(ctx, "01RUN", p, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(ctx, "01RUN")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "greeting" || len(got.Turns) != 2 || got.Version != turn.SchemaVersion {
		t.Errorf("got = %+v", got)
	}
	if got.Turns[1].ContentMarkdown != "hi" {
		t.Errorf("turn content = %q", got.Turns[1].ContentMarkdown)
	}
}

// WHAT: payloads are immutable — a second Save under the same run ID
// fails.
func TestStore_SaveTwiceFails(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, "01RUN", testPayload("a"), ""); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "01RUN", testPayload("b"), ""); err == nil {
		t.Fatal("second Save succeeded, want error")
	}
}

// WHAT: Get and Delete on unknown run IDs report ErrNotFound.
func TestStore_NotFound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
}

// WHAT: List returns metadata newest first and carries the warning.
func TestStore_List(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	older := testPayload("older")
	older.CapturedAt = time.Now().Add(-time.Hour).UTC()
	if err := s.Save(ctx, "01AAA", older, ""); err != nil {
		t.Fatal(err)
	}
	newer := testPayload("newer")
	if err := s.Save(ctx, "01BBB", newer, "1 attachment(s) could not be downloaded: x.pdf"); err != nil {
		t.Fatal(err)
	}

	metas, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("metas = %d, want 2", len(metas))
	}
	if metas[0].Title != "newer" || metas[1].Title != "older" {
		t.Errorf("order = %q, %q", metas[0].Title, metas[1].Title)
	}
	if metas[0].Warning == "" {
		t.Error("warning lost in listing")
	}
	if metas[0].TurnCount != 2 {
		t.Errorf("turn_count = %d", metas[0].TurnCount)
	}

	if err := s.Delete(ctx, "01AAA"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	metas, _ = s.List(ctx, 10)
	if len(metas) != 1 {
		t.Errorf("after delete metas = %d, want 1", len(metas))
	}
}
