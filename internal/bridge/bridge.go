// Package bridge gives synchronous callers (a prompt loop, a chat handler) a
// long-lived connection to a stdio tool-server worker. One goroutine per
// Bridge owns the connection: it establishes the session, relays push
// notifications, dispatches requests, and reconnects after failures forever.
// Callers only ever touch Request, IsReady and the notification sink.
package bridge

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/nselway/toolbridge/internal/logging"
	"github.com/nselway/toolbridge/internal/procwatch"
	"github.com/nselway/toolbridge/internal/rpc"
	"github.com/nselway/toolbridge/internal/transport"
)

const (
	// DefaultReconnectDelay is the fixed pause between connection attempts.
	// The supervisor never gives up; it retries at this interval for the
	// lifetime of the process.
	DefaultReconnectDelay = 5 * time.Second

	// DefaultTimeout bounds a Request when the caller passes no timeout.
	// Payload-heavy calls (screenshots, large file reads) should pass a
	// larger budget at the call site, typically 30s.
	DefaultTimeout = 10 * time.Second

	// sinkBuffer is how many relayed notifications can queue before the
	// relay blocks waiting for the consumer.
	sinkBuffer = 256
)

var (
	// ErrNotReady means the worker connection is not established.
	ErrNotReady = errors.New("bridge: not connected to worker")

	// ErrTimeout means the caller's wait exceeded its budget. The call may
	// still complete inside the worker; its result is discarded.
	ErrTimeout = errors.New("bridge: request timed out")

	// ErrStopped means the Bridge was shut down.
	ErrStopped = errors.New("bridge: stopped")
)

type outcome struct {
	result *rpc.Result
	err    error
}

// pendingRequest is the cross-thread handoff unit. The result channel is
// buffered so the dispatching goroutine can always complete the one-shot
// write, even after the caller abandoned the wait.
type pendingRequest struct {
	name   string
	args   map[string]any
	result chan outcome
}

// Bridge owns one worker connection and survives its failures.
type Bridge struct {
	cfg Config

	reqCh  chan *pendingRequest
	notifs chan rpc.Notification
	stop   chan struct{}
	done   chan struct{}

	readyFlag atomic.Bool

	// dial is swapped out by tests to avoid spawning real processes.
	dial func() (*rpc.Session, int, error)
}

// New creates a Bridge for the worker described by cfg. Call Start to begin
// connecting.
func New(cfg Config) *Bridge {
	cfg = cfg.withDefaults()
	b := &Bridge{
		cfg:    cfg,
		reqCh:  make(chan *pendingRequest),
		notifs: make(chan rpc.Notification, sinkBuffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	b.dial = b.spawnWorker
	return b
}

func (b *Bridge) spawnWorker() (*rpc.Session, int, error) {
	proc, err := transport.Spawn(transport.Config{
		Command: b.cfg.Command,
		Args:    b.cfg.Args,
		Env:     b.cfg.Env,
	})
	if err != nil {
		return nil, 0, err
	}
	session, err := rpc.Open(b.cfg.Name, proc)
	if err != nil {
		proc.Close()
		return nil, 0, err
	}
	return session, proc.Pid(), nil
}

// Start launches the supervisor goroutine. Call once.
func (b *Bridge) Start() {
	go b.run()
}

// Stop shuts the Bridge down and waits for the supervisor to exit.
func (b *Bridge) Stop() {
	close(b.stop)
	<-b.done
}

// IsReady reports whether a worker session is currently established.
func (b *Bridge) IsReady() bool {
	return b.readyFlag.Load()
}

// Notifications is the relayed push feed. Delivery preserves arrival order
// within one session; notifications in flight at disconnect time are lost.
// The channel is closed by Stop.
func (b *Bridge) Notifications() <-chan rpc.Notification {
	return b.notifs
}

// Request issues a tool call against the current session and blocks until a
// result arrives or timeout elapses. It fails immediately with ErrNotReady
// while disconnected. A timeout abandons the wait, not the remote operation;
// duplicate or late remote side effects are a documented risk the caller
// accepts. timeout <= 0 means DefaultTimeout.
func (b *Bridge) Request(name string, args map[string]any, timeout time.Duration) (*rpc.Result, error) {
	if !b.IsReady() {
		return nil, ErrNotReady
	}
	if timeout <= 0 {
		timeout = b.cfg.DefaultTimeout
	}

	p := &pendingRequest{
		name:   name,
		args:   args,
		result: make(chan outcome, 1),
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b.reqCh <- p:
	case <-timer.C:
		return nil, ErrTimeout
	case <-b.stop:
		return nil, ErrStopped
	}

	select {
	case o := <-p.result:
		return o.result, o.err
	case <-timer.C:
		return nil, ErrTimeout
	case <-b.stop:
		return nil, ErrStopped
	}
}

// run is the supervisor loop: connect, serve until failure, back off, repeat.
// Connection failures never escape this loop.
func (b *Bridge) run() {
	defer close(b.done)
	defer close(b.notifs)

	for {
		session, pid, err := b.dial()
		if err != nil {
			logging.Info(b.cfg.Name, "connect failed: %v (retrying in %v)", err, b.cfg.ReconnectDelay)
			if !b.sleep(b.cfg.ReconnectDelay) {
				return
			}
			continue
		}

		logging.Info(b.cfg.Name, "connected (pid=%d)", pid)
		var watcher *procwatch.Watcher
		if b.cfg.WatchWorker && pid > 0 {
			watcher = procwatch.New(b.cfg.Name, pid)
			watcher.Start()
		}

		b.readyFlag.Store(true)
		b.serve(session)
		b.readyFlag.Store(false)

		if watcher != nil {
			watcher.Stop()
		}
		session.Close()

		select {
		case <-b.stop:
			return
		default:
		}

		if err := session.Err(); err != nil && !errors.Is(err, rpc.ErrClosed) {
			logging.Info(b.cfg.Name, "session lost: %v (reconnecting in %v)", err, b.cfg.ReconnectDelay)
		} else {
			logging.Info(b.cfg.Name, "session closed (reconnecting in %v)", b.cfg.ReconnectDelay)
		}
		if !b.sleep(b.cfg.ReconnectDelay) {
			return
		}
	}
}

// serve runs one connected session: it relays notifications to the sink and
// hands accepted requests to dispatch goroutines bound to this session.
// Returns when the session dies or the Bridge stops.
func (b *Bridge) serve(session *rpc.Session) {
	feed := session.Notifications()
	for {
		select {
		case <-b.stop:
			return
		case n, ok := <-feed:
			if !ok {
				return
			}
			select {
			case b.notifs <- n:
			case <-b.stop:
				return
			}
		case p := <-b.reqCh:
			// The call is bound to this session; if the supervisor
			// replaces it mid-flight the call fails with a
			// connection error rather than silently retrying.
			go func(p *pendingRequest) {
				result, err := session.CallTool(p.name, p.args)
				p.result <- outcome{result: result, err: err}
			}(p)
		}
	}
}

// sleep pauses for the backoff delay; returns false if the Bridge stopped.
func (b *Bridge) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-b.stop:
		return false
	}
}
