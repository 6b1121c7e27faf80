// Package procwatch samples a worker process's CPU and memory while its
// session is up, so a runaway or wedged tool server shows up in the logs
// before the protocol notices.
package procwatch

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/nselway/toolbridge/internal/logging"
)

const (
	defaultPollInterval = 10 * time.Second

	// rssWarnBytes is the resident-set size above which we warn.
	rssWarnBytes = 512 << 20
)

// Sample is one CPU/memory observation of the worker.
type Sample struct {
	Taken time.Time
	CPU   float64 // percent
	RSS   uint64  // bytes
}

// Watcher polls one worker process until stopped.
type Watcher struct {
	name string
	pid  int32

	pollInterval time.Duration

	mu   sync.Mutex
	last Sample

	stopChan chan struct{}
	running  bool
}

// New creates a watcher for the given worker pid. The name is a log tag.
func New(name string, pid int) *Watcher {
	return &Watcher{
		name:         name,
		pid:          int32(pid),
		pollInterval: defaultPollInterval,
		stopChan:     make(chan struct{}),
	}
}

// Start begins sampling in the background.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.mu.Unlock()

	go w.watchLoop()
	logging.Debug("procwatch", "%s: watching worker pid=%d (poll=%v)", w.name, w.pid, w.pollInterval)
}

// Stop stops sampling.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopChan)
		w.running = false
	}
}

// Last returns the most recent sample (zero value before the first poll).
func (w *Watcher) Last() Sample {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Watcher) watchLoop() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	proc, err := process.NewProcess(w.pid)
	if err != nil {
		// Worker exited; the session teardown handles the rest.
		logging.Debug("procwatch", "%s: worker pid=%d gone", w.name, w.pid)
		return
	}

	sample := Sample{Taken: time.Now()}
	if cpu, err := proc.CPUPercent(); err == nil {
		sample.CPU = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		sample.RSS = mem.RSS
	}

	w.mu.Lock()
	w.last = sample
	w.mu.Unlock()

	logging.Debug("procwatch", "%s: pid=%d cpu=%.1f%% rss=%dMB",
		w.name, w.pid, sample.CPU, sample.RSS>>20)
	if sample.RSS > rssWarnBytes {
		logging.Warn("procwatch", "%s: worker pid=%d rss=%dMB", w.name, w.pid, sample.RSS>>20)
	}
}
