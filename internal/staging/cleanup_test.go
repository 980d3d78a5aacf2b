package staging

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"vhxdl/internal/logging"
)

const prefix = ".vhxdl-partial-"

func mkdirAged(t *testing.T, path string, age time.Duration, now time.Time) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	stamp := now.Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, prefix, time.Hour, time.Now(), logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldPartials(t *testing.T) {
	root := t.TempDir()
	now := time.Now()

	rootPartial := filepath.Join(root, prefix+"a")
	seriesPartial := filepath.Join(root, "Game Changer", prefix+"b")
	recent := filepath.Join(root, "Game Changer", prefix+"c")
	unrelated := filepath.Join(root, "Game Changer", "extras")

	mkdirAged(t, unrelated, 48*time.Hour, now)
	mkdirAged(t, seriesPartial, 48*time.Hour, now)
	if err := os.WriteFile(filepath.Join(seriesPartial, "S01E01 - Pilot.f137.mp4.part"), make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	mkdirAged(t, seriesPartial, 48*time.Hour, now)
	mkdirAged(t, rootPartial, 30*time.Hour, now)
	mkdirAged(t, recent, time.Minute, now)

	result := CleanStale(context.Background(), root, prefix, 24*time.Hour, now, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	got := append([]string(nil), result.Removed...)
	sort.Strings(got)
	want := []string{rootPartial, seriesPartial}
	sort.Strings(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("removed mismatch (-want +got):\n%s", diff)
	}
	if result.Bytes != 10 {
		t.Fatalf("bytes = %d, want 10", result.Bytes)
	}
	for _, keep := range []string{recent, unrelated} {
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("%s should still exist: %v", keep, err)
		}
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, prefix+"file")
	if err := os.WriteFile(file, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(file, old, old); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), root, prefix, time.Hour, time.Now(), logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
}
