package watchfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchDeliversEvents(t *testing.T) {
	events := make(chan string, 16)
	w, err := NewWatcher(func(path, op string) {
		events <- path
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	file := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(file, []byte("hi"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case path := <-events:
		if path != file {
			t.Errorf("Expected event for %s, got %s", file, path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("No event delivered for file creation")
	}
}

func TestWatchListUnwatch(t *testing.T) {
	w, err := NewWatcher(func(path, op string) {})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	dir := t.TempDir()
	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if err := w.Watch(dir); err == nil {
		t.Error("Watching the same path twice should fail")
	}

	paths := w.List()
	if len(paths) != 1 || paths[0] != dir {
		t.Errorf("Unexpected list: %v", paths)
	}

	if !w.Unwatch(dir) {
		t.Error("Unwatch should return true for a watched path")
	}
	if w.Unwatch(dir) {
		t.Error("Unwatch should return false the second time")
	}
	if len(w.List()) != 0 {
		t.Error("Expected empty list after unwatch")
	}
}
