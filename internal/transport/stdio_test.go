package transport

import (
	"bufio"
	"fmt"
	"runtime"
	"testing"
)

func TestSpawnEcho(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs cat")
	}

	proc, err := Spawn(Config{Command: "cat"})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer proc.Close()

	if proc.Pid() <= 0 {
		t.Errorf("Expected positive pid, got %d", proc.Pid())
	}

	if _, err := fmt.Fprintln(proc, "hello"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	line, err := bufio.NewReader(proc).ReadString('\n')
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if line != "hello\n" {
		t.Errorf("Expected echo, got %q", line)
	}
}
