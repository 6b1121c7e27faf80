// Package watchfs implements the file-watcher tool server: clients register
// paths and receive a push notification for every filesystem event under
// them.
package watchfs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/nselway/toolbridge/internal/logging"
)

// Watcher wraps one fsnotify watcher and fans its events out through notify.
type Watcher struct {
	notify func(path, op string)

	mu    sync.Mutex
	fsw   *fsnotify.Watcher
	paths map[string]bool

	done chan struct{}
}

// NewWatcher starts an event loop that publishes every event on a watched
// path through notify. Publication is best-effort.
func NewWatcher(notify func(path, op string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		notify: notify,
		fsw:    fsw,
		paths:  make(map[string]bool),
		done:   make(chan struct{}),
	}
	go w.eventLoop()
	return w, nil
}

func (w *Watcher) eventLoop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			logging.Debug("watchfs", "%s %s", ev.Op, ev.Name)
			w.notify(ev.Name, ev.Op.String())
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("watchfs", "watch error: %v", err)
		}
	}
}

// Watch registers a path. Watching the same path twice is an error.
func (w *Watcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paths[path] {
		return fmt.Errorf("already watching %s", path)
	}
	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	w.paths[path] = true
	logging.Info("watchfs", "watching %s", path)
	return nil
}

// Unwatch removes a path. Returns false if it was not being watched.
func (w *Watcher) Unwatch(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.paths[path] {
		return false
	}
	delete(w.paths, path)
	if err := w.fsw.Remove(path); err != nil {
		logging.Warn("watchfs", "unwatch %s: %v", path, err)
	}
	return true
}

// List returns the watched paths, sorted.
func (w *Watcher) List() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
