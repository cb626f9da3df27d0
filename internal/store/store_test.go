package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/prreview/internal/gitctx"
	"github.com/dshills/prreview/internal/review"
)

func sampleRecord(workspace string) Record {
	return Record{
		RunID:     "run-1",
		Workspace: workspace,
		Branch:    "feature-x",
		Base:      "main",
		Provider:  "openai",
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Result: review.Result{
			RiskLevel:      review.RiskHigh,
			Summary:        "adds auth bypass",
			BlockingIssues: []review.Issue{{File: "auth.ts", Line: 10, Description: "missing check"}},
			Suggestions:    []review.Issue{},
			Notes:          []review.Issue{},
		},
		Files: []gitctx.ChangedFile{{Path: "auth.ts", Status: gitctx.StatusModified}},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	if _, ok, err := s.Load("/repo"); ok || err != nil {
		t.Fatalf("Load before Save = %v, %v; want miss", ok, err)
	}

	rec := sampleRecord("/repo")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, ok, err := s.Load("/repo")
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if d := cmp.Diff(rec, got); d != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", d)
	}
	if _, ok, _ := s.Load("/repo/"); !ok {
		t.Error("Load should normalise the workspace path")
	}
	if _, ok, _ := s.Load("/other"); ok {
		t.Error("records must be per workspace")
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	s, _ := Open(t.TempDir())
	rec := sampleRecord("/repo")
	s.Save(rec)
	rec.RunID = "run-2"
	s.Save(rec)

	got, _, _ := s.Load("/repo")
	if got.RunID != "run-2" {
		t.Errorf("RunID = %q, want the latest record", got.RunID)
	}
	stats, _ := s.Stats()
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
}

func TestStore_SaveRequiresWorkspace(t *testing.T) {
	s, _ := Open(t.TempDir())
	if err := s.Save(Record{}); err == nil {
		t.Error("expected error for empty workspace")
	}
}

func TestStore_CorruptRecord(t *testing.T) {
	s, _ := Open(t.TempDir())
	os.WriteFile(s.path("/repo"), []byte("{not json"), 0o644)
	if _, _, err := s.Load("/repo"); err == nil {
		t.Error("expected decode error")
	}
}

func TestStore_DeleteClearStats(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)
	s.Save(sampleRecord("/a"))
	s.Save(sampleRecord("/b"))
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.Entries != 2 || stats.TotalBytes == 0 || stats.Dir != dir {
		t.Errorf("Stats = %+v", stats)
	}

	if err := s.Delete("/a"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := s.Delete("/a"); err != nil {
		t.Errorf("Delete of missing record should be a no-op, got %v", err)
	}

	n, err := s.Clear()
	if err != nil || n != 1 {
		t.Errorf("Clear = %d, %v; want 1", n, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("Clear should only remove .json files")
	}
}

func TestHashKey(t *testing.T) {
	if HashKey("ab", "c") == HashKey("a", "bc") {
		t.Error("HashKey must separate parts")
	}
	if len(HashKey("x")) != 64 {
		t.Errorf("HashKey length = %d, want 64", len(HashKey("x")))
	}
}

func TestDefaultDir_XDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := DefaultDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg", "prreview") {
		t.Errorf("DefaultDir = %q", dir)
	}
}
