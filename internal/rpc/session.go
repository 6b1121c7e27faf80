// Package rpc frames JSON-RPC 2.0 requests, responses and notifications over
// a duplex byte stream to a tool-server worker. One Session wraps one live
// connection; when the stream fails the Session is dead and must be replaced.
package rpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nselway/toolbridge/internal/logging"
)

const protocolVersion = "2024-11-05"

// notifBuffer is how many undelivered notifications a Session holds before
// it starts dropping (with a warning). A draining relay never gets close.
const notifBuffer = 64

// ErrClosed is returned for calls issued on (or interrupted by) a dead Session.
var ErrClosed = errors.New("rpc: session closed")

// RemoteError is an application-level failure reported by the worker.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
	}
	return "remote error: " + e.Message
}

// Notification is an unsolicited push message from the worker.
type Notification struct {
	Time   time.Time
	Method string
	Params map[string]any
}

// Status returns the free-form status string most tool servers attach.
func (n Notification) Status() string {
	if s, ok := n.Params["status"].(string); ok {
		return s
	}
	return ""
}

// Content is one block of a tool call result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"`
}

// Result is the payload of a successful tools/call.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Text returns the first text block, or "".
func (r *Result) Text() string {
	for _, c := range r.Content {
		if c.Text != "" {
			return c.Text
		}
	}
	return ""
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope covers every inbound frame: responses carry an ID, notifications
// carry a method and no ID.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

// Session is a live logical connection to a worker. Safe for concurrent use:
// writes are serialized and responses are correlated back by request id.
type Session struct {
	name string
	conn io.ReadWriteCloser
	r    *bufio.Reader

	wmu    sync.Mutex // serializes writes to the worker
	nextID int64

	pmu     sync.Mutex
	pending map[int64]chan *envelope

	notifs chan Notification
	done   chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Open wraps conn in a Session and performs the MCP initialization handshake.
// The name is only used as a log tag.
func Open(name string, conn io.ReadWriteCloser) (*Session, error) {
	s := &Session{
		name:    name,
		conn:    conn,
		r:       bufio.NewReader(conn),
		pending: make(map[int64]chan *envelope),
		notifs:  make(chan Notification, notifBuffer),
		done:    make(chan struct{}),
	}
	go s.readLoop()

	if err := s.initialize(); err != nil {
		s.fail(err)
		return nil, fmt.Errorf("initialize %s: %w", name, err)
	}
	return s, nil
}

func (s *Session) initialize() error {
	_, err := s.roundTrip("initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo": map[string]string{
			"name":    "toolbridge",
			"version": "0.1.0",
		},
		"capabilities": map[string]any{},
	})
	if err != nil {
		return err
	}
	return s.writeNotification("notifications/initialized", nil)
}

// CallTool invokes a named tool on the worker and waits for the response.
// Multiple calls may be in flight at once; responses are matched by id.
func (s *Session) CallTool(name string, args map[string]any) (*Result, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := s.roundTrip("tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse call result: %w", err)
	}
	if result.IsError {
		msg := result.Text()
		if msg == "" {
			msg = "tool returned error"
		}
		return nil, &RemoteError{Message: msg}
	}
	return &result, nil
}

// ListTools returns the names of tools the worker advertises.
func (s *Session) ListTools() ([]string, error) {
	raw, err := s.roundTrip("tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse tools list: %w", err)
	}
	names := make([]string, 0, len(list.Tools))
	for _, t := range list.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// roundTrip sends one request and blocks until its response arrives or the
// Session dies. The write lock is held only for the send.
func (s *Session) roundTrip(method string, params any) (json.RawMessage, error) {
	select {
	case <-s.done:
		return nil, ErrClosed
	default:
	}

	s.pmu.Lock()
	s.nextID++
	id := s.nextID
	ch := make(chan *envelope, 1)
	s.pending[id] = ch
	s.pmu.Unlock()

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	if err := s.writeFrame(req); err != nil {
		s.pmu.Lock()
		delete(s.pending, id)
		s.pmu.Unlock()
		s.fail(err)
		return nil, fmt.Errorf("write to %s: %w", s.name, err)
	}

	select {
	case env := <-ch:
		if env == nil {
			return nil, ErrClosed
		}
		if env.Error != nil {
			return nil, &RemoteError{Code: env.Error.Code, Message: env.Error.Message}
		}
		return env.Result, nil
	case <-s.done:
		return nil, ErrClosed
	}
}

func (s *Session) writeNotification(method string, params any) error {
	notif := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		notif["params"] = params
	}
	return s.writeFrame(notif)
}

func (s *Session) writeFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err = fmt.Fprintf(s.conn, "%s\n", data)
	return err
}

// readLoop demultiplexes inbound frames: responses go to the waiting call,
// notifications go to the feed. Runs until the stream fails.
func (s *Session) readLoop() {
	// The read loop is the only sender on notifs, so it alone may close it.
	defer close(s.notifs)
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			s.fail(fmt.Errorf("read from %s: %w", s.name, err))
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			// Not valid JSON-RPC — skip (could be startup logs)
			logging.Debug("rpc", "%s: skipping non-JSON line: %.80s", s.name, line)
			continue
		}

		if env.ID == nil {
			if env.Method != "" {
				s.deliverNotification(&env)
			}
			continue
		}

		s.pmu.Lock()
		ch, ok := s.pending[*env.ID]
		if ok {
			delete(s.pending, *env.ID)
		}
		s.pmu.Unlock()
		if !ok {
			// Caller already abandoned this id, or the worker invented one.
			logging.Debug("rpc", "%s: response for unknown id %d", s.name, *env.ID)
			continue
		}
		ch <- &env
	}
}

func (s *Session) deliverNotification(env *envelope) {
	var params map[string]any
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, &params); err != nil {
			logging.Warn("rpc", "%s: bad notification params: %v", s.name, err)
			return
		}
	}
	n := Notification{Time: time.Now(), Method: env.Method, Params: params}
	select {
	case s.notifs <- n:
	default:
		logging.Warn("rpc", "%s: notification buffer full, dropping %s", s.name, env.Method)
	}
}

// Notifications is the Session's push feed. It preserves arrival order and is
// closed when the Session dies; it is not restartable.
func (s *Session) Notifications() <-chan Notification {
	return s.notifs
}

// Done is closed when the Session dies.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the Session died (nil while alive).
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close tears the Session down. In-flight calls fail with ErrClosed.
func (s *Session) Close() error {
	s.fail(ErrClosed)
	return nil
}

// fail marks the Session dead exactly once: the connection is closed, every
// pending call is released, and the notification feed ends.
func (s *Session) fail(err error) {
	s.closeOnce.Do(func() {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()

		s.conn.Close()
		close(s.done)

		s.pmu.Lock()
		for id, ch := range s.pending {
			delete(s.pending, id)
			ch <- nil
		}
		s.pmu.Unlock()

		if !errors.Is(err, ErrClosed) {
			logging.Info("rpc", "%s: session failed: %v", s.name, err)
		}
	})
}
