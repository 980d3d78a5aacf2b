package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"vhxdl/internal/history"
)

func openStore(t *testing.T) (*history.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestRecordAndList(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []history.Entry{
		{Path: "/dest/Show/S01E01 - Pilot.mkv", VideoID: "101", Kind: "episode", Series: "Show", Title: "Pilot", Season: 1, Episode: 1, RunID: "r1", Bytes: 10, CompletedAt: base},
		{Path: "/dest/Trailer.mkv", VideoID: "900", Kind: "video", Title: "Trailer", RunID: "r1", Bytes: 5, CompletedAt: base.Add(time.Minute)},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []history.Entry{entries[1], entries[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}

	limited, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 1 || limited[0].VideoID != "900" {
		t.Fatalf("unexpected limited list: %+v", limited)
	}
}

func TestRecordUpsertsByPath(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	first := history.Entry{Path: "/dest/a.mkv", VideoID: "1", RunID: "r1", CompletedAt: time.Unix(100, 0).UTC()}
	second := history.Entry{Path: "/dest/a.mkv", VideoID: "1", RunID: "r2", Bytes: 42, CompletedAt: time.Unix(200, 0).UTC()}
	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("Record first: %v", err)
	}
	if err := store.Record(ctx, second); err != nil {
		t.Fatalf("Record second: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
	got, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got[0].RunID != "r2" || got[0].Bytes != 42 {
		t.Fatalf("expected second entry to win, got %+v", got[0])
	}
}

func TestRecordRequiresPath(t *testing.T) {
	store, _ := openStore(t)
	if err := store.Record(context.Background(), history.Entry{VideoID: "1"}); err == nil {
		t.Fatal("expected error for entry without path")
	}
}

func TestReopenKeepsRows(t *testing.T) {
	store, path := openStore(t)
	if err := store.Record(context.Background(), history.Entry{Path: "/dest/a.mkv", VideoID: "1"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	count, err := reopened.Count(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("Count after reopen = %d, %v", count, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	store, path := openStore(t)
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := history.Open(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
