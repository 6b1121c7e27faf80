package bridge

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
name: reminder
command: reminder-server
args: ["-v"]
env:
  STATE_PATH: /tmp/state
reconnect_delay: 2s
default_timeout: 30s
watch_worker: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "reminder" || cfg.Command != "reminder-server" {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if len(cfg.Args) != 1 || cfg.Args[0] != "-v" {
		t.Errorf("Unexpected args: %v", cfg.Args)
	}
	if cfg.Env["STATE_PATH"] != "/tmp/state" {
		t.Errorf("Unexpected env: %v", cfg.Env)
	}
	if cfg.ReconnectDelay != 2*time.Second || cfg.DefaultTimeout != 30*time.Second {
		t.Errorf("Unexpected durations: %v / %v", cfg.ReconnectDelay, cfg.DefaultTimeout)
	}
	if !cfg.WatchWorker {
		t.Error("Expected watch_worker true")
	}
}

func TestLoadConfigRequiresCommand(t *testing.T) {
	path := writeConfig(t, "name: broken\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for missing command")
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "command: x\nreconnect_delay: soon\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for bad reconnect_delay")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Config{Command: "x"}.withDefaults()
	if cfg.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("Expected %v reconnect delay, got %v", DefaultReconnectDelay, cfg.ReconnectDelay)
	}
	if cfg.DefaultTimeout != DefaultTimeout {
		t.Errorf("Expected %v default timeout, got %v", DefaultTimeout, cfg.DefaultTimeout)
	}
	if cfg.Name != "bridge" {
		t.Errorf("Expected default name, got %q", cfg.Name)
	}
}
