// Package notify is the trigger surface the wishlist API uses after a
// mutation: tell the relay a room changed, or hand it a freshly persisted
// chat message to fan out. Realtime delivery is an enhancement, never a
// correctness dependency — every failure here is swallowed after a log line
// and the calling mutation proceeds as if nothing happened. Clients have a
// polling backstop for exactly that case.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Dispatcher struct {
	baseURL string
	hc      *http.Client
	log     *slog.Logger
}

// NewDispatcher builds a dispatcher against the relay's base URL. An empty
// baseURL yields a dispatcher whose methods do nothing, for deployments
// without the realtime layer provisioned.
func NewDispatcher(baseURL string, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

// NotifyRoom asks the relay to broadcast an invalidate event to the room
// identified by the wishlist's public share token.
func (d *Dispatcher) NotifyRoom(ctx context.Context, key string) {
	d.post(ctx, key, "notify", nil)
}

// NotifyChat hands the relay a fully-formed, already-persisted chat message
// for the room identified by the wishlist's internal id. The message goes
// over the wire verbatim so clients can append it without a re-fetch.
func (d *Dispatcher) NotifyChat(ctx context.Context, internalID string, message json.RawMessage) {
	d.post(ctx, internalID, "chat-broadcast", message)
}

func (d *Dispatcher) post(ctx context.Context, key, action string, body []byte) {
	if d == nil || d.baseURL == "" || key == "" {
		return
	}
	endpoint := d.baseURL + "/" + url.PathEscape(key) + "/" + action

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, rd)
	if err != nil {
		d.log.WarnContext(ctx, "notify - post - building request failed", "action", action, "err", err)
		return
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.hc.Do(req)
	if err != nil {
		d.log.WarnContext(ctx, "notify - post - relay unreachable", "action", action, "err", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		d.log.WarnContext(ctx, "notify - post - relay rejected request", "action", action, "status", resp.StatusCode)
	}
}
