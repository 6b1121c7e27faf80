package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nselway/toolbridge/internal/rpc"
)

func TestAppendAndRecent(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "notifications.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer log.Close()

	base := time.Now()
	for i, status := range []string{"first", "second", "third"} {
		n := rpc.Notification{
			Time:   base.Add(time.Duration(i) * time.Second),
			Method: "notifications/status",
			Params: map[string]any{"status": status},
		}
		if err := log.Append(n); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := log.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	// Most recent first
	if entries[0].Status != "third" || entries[1].Status != "second" {
		t.Errorf("Unexpected order: %q, %q", entries[0].Status, entries[1].Status)
	}
	if entries[0].Method != "notifications/status" {
		t.Errorf("Unexpected method: %q", entries[0].Method)
	}
}

func TestRecentEmpty(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "notifications.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer log.Close()

	entries, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}
