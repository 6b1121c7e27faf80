package rpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

// pipeConn is one end of an in-process duplex stream.
type pipeConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (c *pipeConn) Read(b []byte) (int, error)  { return c.r.Read(b) }
func (c *pipeConn) Write(b []byte) (int, error) { return c.w.Write(b) }
func (c *pipeConn) Close() error {
	c.r.Close()
	return c.w.Close()
}

func pipePair() (client, server *pipeConn) {
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	return &pipeConn{r: cr, w: cw}, &pipeConn{r: sr, w: sw}
}

// fakeWorker speaks just enough JSON-RPC to stand in for a tool server.
type fakeWorker struct {
	conn *pipeConn
	// onCall decides the tools/call response text; returning isError true
	// produces a tool-level error result. A nil onCall never responds.
	onCall func(name string, args map[string]any) (text string, isError bool)
}

func startFakeWorker(conn *pipeConn, onCall func(string, map[string]any) (string, bool)) *fakeWorker {
	w := &fakeWorker{conn: conn, onCall: onCall}
	go w.serve()
	return w
}

func (w *fakeWorker) serve() {
	r := bufio.NewReader(w.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		var req struct {
			ID     *int64 `json:"id"`
			Method string `json:"method"`
			Params struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			} `json:"params"`
		}
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			continue
		}
		if req.ID == nil {
			continue // client notification, e.g. notifications/initialized
		}

		switch req.Method {
		case "initialize":
			w.respond(*req.ID, map[string]any{
				"protocolVersion": "2024-11-05",
				"serverInfo":      map[string]any{"name": "fake", "version": "0.0.0"},
				"capabilities":    map[string]any{},
			})
		case "tools/call":
			if w.onCall == nil {
				continue // never responds; the caller must time out
			}
			text, isError := w.onCall(req.Params.Name, req.Params.Arguments)
			w.respond(*req.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": text}},
				"isError": isError,
			})
		}
	}
}

func (w *fakeWorker) respond(id int64, result any) {
	data, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
	fmt.Fprintf(w.conn, "%s\n", data)
}

func (w *fakeWorker) notify(method string, params map[string]any) {
	data, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": method, "params": params})
	fmt.Fprintf(w.conn, "%s\n", data)
}

func openTestSession(t *testing.T, onCall func(string, map[string]any) (string, bool)) (*Session, *fakeWorker) {
	t.Helper()
	client, server := pipePair()
	worker := startFakeWorker(server, onCall)

	session, err := Open("test", client)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session, worker
}

func TestCallTool(t *testing.T) {
	session, _ := openTestSession(t, func(name string, args map[string]any) (string, bool) {
		return fmt.Sprintf("called %s with %v", name, args["x"]), false
	})

	result, err := session.CallTool("echo", map[string]any{"x": "hello"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if got := result.Text(); got != "called echo with hello" {
		t.Errorf("Unexpected result text: %q", got)
	}
}

func TestCallToolRemoteError(t *testing.T) {
	session, _ := openTestSession(t, func(name string, args map[string]any) (string, bool) {
		return "no such reminder", true
	})

	_, err := session.CallTool("cancel_reminder", map[string]any{"task_id": "nope"})
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remote.Message != "no such reminder" {
		t.Errorf("Unexpected message: %q", remote.Message)
	}
}

func TestNotificationsInterleaveWithCalls(t *testing.T) {
	session, worker := openTestSession(t, func(name string, args map[string]any) (string, bool) {
		return "ok", false
	})

	// Push notifications around a request/response round trip.
	worker.notify("notifications/status", map[string]any{"status": "first"})
	if _, err := session.CallTool("x", nil); err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	worker.notify("notifications/status", map[string]any{"status": "second"})

	for _, want := range []string{"first", "second"} {
		select {
		case n := <-session.Notifications():
			if n.Status() != want {
				t.Errorf("Expected status %q, got %q", want, n.Status())
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for notification %q", want)
		}
	}
}

func TestSessionFailureReleasesInFlightCall(t *testing.T) {
	// Worker that never answers tools/call
	session, worker := openTestSession(t, nil)

	callErr := make(chan error, 1)
	go func() {
		_, err := session.CallTool("slow", nil)
		callErr <- err
	}()

	// Let the call get in flight, then kill the connection.
	time.Sleep(50 * time.Millisecond)
	worker.conn.Close()

	select {
	case err := <-callErr:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("In-flight call not released on session failure")
	}

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed on session failure")
	}

	// The notification feed must end too.
	select {
	case _, ok := <-session.Notifications():
		if ok {
			t.Error("Expected closed notification feed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Notification feed not closed on session failure")
	}
}

func TestCallAfterCloseFails(t *testing.T) {
	session, _ := openTestSession(t, func(string, map[string]any) (string, bool) { return "ok", false })
	session.Close()

	if _, err := session.CallTool("x", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
