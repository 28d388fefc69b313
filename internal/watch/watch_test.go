package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startWatcher runs w until the test ends and returns after Run has
// observably started.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop after cancel")
		}
	})
	time.Sleep(20 * time.Millisecond)
}

func TestWatcher_WriteTriggersCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	if err := os.WriteFile(path, []byte("rev: 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	changes := make(chan string, 10)
	w, err := New([]string{path}, 30*time.Millisecond, func(p string) { changes <- p }, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("rev: 1\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case p := <-changes:
		if p != path {
			t.Errorf("path: got %q, want %q", p, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change callback within deadline")
	}
}

func TestWatcher_RenameReplaceTriggersCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	if err := os.WriteFile(path, []byte("rev: 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	changes := make(chan string, 10)
	w, err := New([]string{path}, 30*time.Millisecond, func(p string) { changes <- p }, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	startWatcher(t, w)

	// Replace the file the way an atomic writer does.
	tmp := filepath.Join(dir, ".tmp-tasks.yaml")
	if err := os.WriteFile(tmp, []byte("rev: 1\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	select {
	case p := <-changes:
		if p != path {
			t.Errorf("path: got %q, want %q", p, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change callback after rename replace")
	}
}

func TestWatcher_DebounceCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	if err := os.WriteFile(path, []byte("rev: 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	changes := make(chan string, 10)
	w, err := New([]string{path}, 100*time.Millisecond, func(p string) { changes <- p }, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	startWatcher(t, w)

	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(path, []byte(fmt.Sprintf("rev: %d\n", i)), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change callback within deadline")
	}

	select {
	case p := <-changes:
		t.Errorf("burst produced a second callback for %s", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresUnwatchedSiblings(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "tasks.yaml")
	sibling := filepath.Join(dir, "notes.yaml")
	if err := os.WriteFile(watched, []byte("rev: 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	changes := make(chan string, 10)
	w, err := New([]string{watched}, 30*time.Millisecond, func(p string) { changes <- p }, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	startWatcher(t, w)

	if err := os.WriteFile(sibling, []byte("rev: 1\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case p := <-changes:
		t.Errorf("unexpected callback for %s", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_MultipleFilesOneWindow(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	pathA := filepath.Join(dirA, "tasks.yaml")
	pathB := filepath.Join(dirB, "context.yaml")
	for _, p := range []string{pathA, pathB} {
		if err := os.WriteFile(p, []byte("rev: 0\n"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	changes := make(chan string, 10)
	w, err := New([]string{pathA, pathB}, 50*time.Millisecond, func(p string) { changes <- p }, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	startWatcher(t, w)

	if err := os.WriteFile(pathA, []byte("rev: 1\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(pathB, []byte("rev: 1\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case p := <-changes:
			got[p] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of 2 callbacks before deadline", len(got))
		}
	}

	if !got[pathA] || !got[pathB] {
		t.Errorf("changed paths: got %v", got)
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "tasks.yaml")
	if _, err := New([]string{path}, 0, func(string) {}, nil); err == nil {
		t.Error("expected error for missing parent directory")
	}
}

func TestNew_NilCallback(t *testing.T) {
	if _, err := New(nil, 0, nil, nil); err == nil {
		t.Error("expected error for nil callback")
	}
}
