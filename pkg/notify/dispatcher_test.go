package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

func recordingServer(t *testing.T, status int) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{method: r.Method, path: r.URL.EscapedPath(), body: string(body)})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedRequest, len(reqs))
		copy(out, reqs)
		return out
	}
}

func TestNotifyRoomPostsToNotifyAction(t *testing.T) {
	ts, requests := recordingServer(t, http.StatusOK)
	d := NewDispatcher(ts.URL, discardLogger())

	d.NotifyRoom(context.Background(), "abc123")

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("relay received %d requests, want 1", len(reqs))
	}
	if reqs[0].method != http.MethodPost || reqs[0].path != "/abc123/notify" {
		t.Errorf("request = %s %s, want POST /abc123/notify", reqs[0].method, reqs[0].path)
	}
	if reqs[0].body != "" {
		t.Errorf("notify body = %q, want empty", reqs[0].body)
	}
}

func TestNotifyChatPostsMessageVerbatim(t *testing.T) {
	ts, requests := recordingServer(t, http.StatusOK)
	d := NewDispatcher(ts.URL+"/", discardLogger())

	msg := json.RawMessage(`{"id":"m1","content":"hi"}`)
	d.NotifyChat(context.Background(), "wl-42", msg)

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("relay received %d requests, want 1", len(reqs))
	}
	if reqs[0].path != "/wl-42/chat-broadcast" {
		t.Errorf("path = %s, want /wl-42/chat-broadcast", reqs[0].path)
	}
	if reqs[0].body != string(msg) {
		t.Errorf("body = %s, want %s", reqs[0].body, msg)
	}
}

func TestDispatcherSwallowsUnreachableRelay(t *testing.T) {
	// nothing listens here; the call must simply return
	d := NewDispatcher("http://127.0.0.1:1", discardLogger())
	d.NotifyRoom(context.Background(), "abc123")
	d.NotifyChat(context.Background(), "wl-42", json.RawMessage(`{}`))
}

func TestDispatcherSwallowsErrorStatus(t *testing.T) {
	ts, requests := recordingServer(t, http.StatusInternalServerError)
	d := NewDispatcher(ts.URL, discardLogger())

	d.NotifyRoom(context.Background(), "abc123")

	if len(requests()) != 1 {
		t.Error("request was not sent")
	}
}

func TestDispatcherWithoutBaseURLIsNoop(t *testing.T) {
	d := NewDispatcher("", discardLogger())
	d.NotifyRoom(context.Background(), "abc123")

	var nilDispatcher *Dispatcher
	nilDispatcher.NotifyRoom(context.Background(), "abc123")
}

func TestDispatcherEscapesRoomKey(t *testing.T) {
	ts, requests := recordingServer(t, http.StatusOK)
	d := NewDispatcher(ts.URL, discardLogger())

	d.NotifyRoom(context.Background(), "a/b c")

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("relay received %d requests, want 1", len(reqs))
	}
	if want := "/a%2Fb%20c/notify"; reqs[0].path != want {
		t.Errorf("path = %s, want %s", reqs[0].path, want)
	}
}
