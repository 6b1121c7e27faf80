// Package transport spawns tool-server workers and exposes their stdio as a
// duplex byte stream.
package transport

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Config describes a worker process to spawn.
type Config struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Proc is a running worker. Reads come from its stdout, writes go to its
// stdin; stderr is passed through so worker logs stay visible.
type Proc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	closeOnce sync.Once
}

// Spawn starts the worker process.
func Spawn(cfg Config) (*Proc, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)

	// Inherit parent environment, then override/add specified vars
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	return &Proc{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// Pid returns the worker's process id.
func (p *Proc) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *Proc) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *Proc) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Close stops the worker process. Safe to call more than once.
func (p *Proc) Close() error {
	p.closeOnce.Do(func() {
		p.stdin.Close()
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		p.cmd.Wait()
	})
	return nil
}
