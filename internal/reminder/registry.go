// Package reminder implements the reminder tool server: a registry of
// delayed one-shot notifications that can be listed and cancelled until the
// moment they fire.
package reminder

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nselway/toolbridge/internal/logging"
)

var (
	// ErrInvalidDelay is returned for non-positive delays.
	ErrInvalidDelay = errors.New("reminder: delay must be positive")

	// ErrEmptyMessage is returned for reminders with nothing to say.
	ErrEmptyMessage = errors.New("reminder: message must not be empty")
)

// Entry is one active reminder as reported by List.
type Entry struct {
	ID        string
	Message   string
	Remaining time.Duration // clamped to zero, never negative
}

type task struct {
	id      string
	message string
	fireAt  time.Time
	timer   *time.Timer
}

// Registry tracks active reminders. Each reminder has exactly one timer and
// fires at most once; ids are monotonically assigned and never reused.
type Registry struct {
	notify func(message string)

	mu    sync.Mutex
	seq   int64
	tasks map[string]*task
}

// NewRegistry creates a registry that publishes fired reminders through
// notify. Publication is best-effort: notify must not block for long and
// must swallow delivery failures itself (reminders are not durable).
func NewRegistry(notify func(message string)) *Registry {
	return &Registry{
		notify: notify,
		tasks:  make(map[string]*task),
	}
}

// Add schedules a reminder to fire after delay and returns its id
// immediately.
func (r *Registry) Add(delay time.Duration, message string) (string, error) {
	if delay <= 0 {
		return "", ErrInvalidDelay
	}
	if message == "" {
		return "", ErrEmptyMessage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	id := fmt.Sprintf("reminder-%d", r.seq)
	t := &task{
		id:      id,
		message: message,
		fireAt:  time.Now().Add(delay),
	}
	t.timer = time.AfterFunc(delay, func() { r.fire(id) })
	r.tasks[id] = t

	logging.Debug("reminder", "scheduled %s in %v: %s", id, delay, logging.Truncate(message, 60))
	return id, nil
}

// Cancel stops a reminder. Returns false if the id is unknown — already
// fired, already cancelled, or never existed. A reminder whose timer has won
// the race and begun firing cannot be cancelled anymore.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(r.tasks, id)
	logging.Debug("reminder", "cancelled %s", id)
	return true
}

// List reports all active reminders, soonest first.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entries := make([]Entry, 0, len(r.tasks))
	for _, t := range r.tasks {
		remaining := t.fireAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		entries = append(entries, Entry{ID: t.id, Message: t.message, Remaining: remaining})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Remaining < entries[j].Remaining
	})
	return entries
}

// Count returns the number of active reminders.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// StopAll cancels every active reminder (for shutdown).
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tasks {
		t.timer.Stop()
		delete(r.tasks, id)
	}
}

// fire runs on the timer goroutine. The registry lookup decides the race
// against Cancel: whoever takes the task out of the map first wins.
func (r *Registry) fire(id string) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
	}
	r.mu.Unlock()

	if !ok {
		return // cancelled
	}

	logging.Info("reminder", "fired %s: %s", id, logging.Truncate(t.message, 60))
	r.notify(t.message)
}
