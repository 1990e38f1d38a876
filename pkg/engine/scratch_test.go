package engine

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScratchPathsLiveUnderRunDir(t *testing.T) {
	base := t.TempDir()
	scratch, err := newScratch(base, "run-42")
	if err != nil {
		t.Fatalf("newScratch: %v", err)
	}

	p1 := scratch.Path(".csv")
	p2 := scratch.Path(".csv")
	if p1 == p2 {
		t.Fatalf("expected unique paths, got %s twice", p1)
	}
	if !strings.HasSuffix(p1, ".csv") {
		t.Fatalf("expected .csv suffix, got %s", p1)
	}
	wantDir := filepath.Join(base, "loom-run-run-42")
	if filepath.Dir(p1) != wantDir {
		t.Fatalf("expected path under %s, got %s", wantDir, p1)
	}
	if _, err := os.Stat(wantDir); err != nil {
		t.Fatalf("run dir should exist: %v", err)
	}
}

func TestScratchTrackAndResolve(t *testing.T) {
	scratch, err := newScratch(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("newScratch: %v", err)
	}

	scratch.Track("a", "/scratch/a.csv")
	scratch.Track("b", "/scratch/b.csv")
	scratch.Track("silent", "") // nodes without output are not tracked

	got := scratch.Resolve([]string{"b", "silent", "a", "missing"})
	want := []string{"/scratch/b.csv", "/scratch/a.csv"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestScratchCleanupRemovesEverything(t *testing.T) {
	base := t.TempDir()
	scratch, err := newScratch(base, "run-9")
	if err != nil {
		t.Fatalf("newScratch: %v", err)
	}

	tracked := scratch.Path(".csv")
	if err := os.WriteFile(tracked, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	scratch.Track("keep", tracked)

	// A tracked file a handler already consumed must not break cleanup.
	scratch.Track("gone", filepath.Join(base, "never-created.csv"))

	// Untracked debris inside the run dir goes with the directory.
	debris := scratch.Path(".json")
	if err := os.WriteFile(debris, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	scratch.Cleanup(discardLogger())

	if _, err := os.Stat(tracked); !os.IsNotExist(err) {
		t.Fatalf("tracked output should be deleted, stat err: %v", err)
	}
	runDir := filepath.Join(base, "loom-run-run-9")
	if _, err := os.Stat(runDir); !os.IsNotExist(err) {
		t.Fatalf("run dir should be deleted, stat err: %v", err)
	}
	if got := scratch.Resolve([]string{"keep"}); len(got) != 0 {
		t.Fatalf("outputs should be cleared after cleanup, got %v", got)
	}
}
