package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/schwenzfeuer/wunschkiste-sub000/internal/app/server/ws"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/services"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/platform/logger"
)

// maxChatPayload caps the chat-broadcast request body. Messages are small;
// anything bigger is not a chat message.
const maxChatPayload = 64 * 1024

// RelayHandler is the HTTP face of one relay process: the websocket action
// attaches connections to rooms, notify and chat-broadcast trigger fan-out,
// stats reports occupancy. Room keys are opaque, untrusted path segments.
type RelayHandler struct {
	relay services.IRelayService
}

func NewRelayHandler(relay services.IRelayService) *RelayHandler {
	return &RelayHandler{relay: relay}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers enforce nothing here; the CORS allow-list covers the
	// credentialed surface and room keys carry no authority.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Websocket upgrades the request and parks it in the room until the peer
// goes away. Reconnection is entirely the client's job; nothing here retries.
func (h *RelayHandler) Websocket(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	key := r.PathValue("key")
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("room_key", key))

	if !websocket.IsWebSocketUpgrade(r) {
		log.InfoContext(r.Context(), "relay handler - websocket - missing upgrade header", "room_key", key)
		http.Error(w, "Upgrade Required", http.StatusUpgradeRequired)
		return
	}

	// The connection outlives the HTTP request; detach its lifetime from
	// the request context.
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "relay handler - websocket - upgrade failed", "room_key", key, "err", err)
		cancel()
		return
	}
	conn.SetCloseHandler(func(code int, text string) error {
		log.DebugContext(ctx, "relay handler - websocket - peer closed", "room_key", key, "code", code)
		cancel()
		return nil
	})
	socket := ws.NewWebSocket(ctx, conn)
	client := ws.NewClient(ctx, socket, key)

	h.relay.HandleConnect(ctx, key, client)
	defer h.relay.HandleDisconnect(sessionCtx, key, client)
	defer cancel()

	go h.relay.HandleHeartbeat(ctx, key, client.ID())

	// Receive-only channel from the application's point of view; the read
	// loop only answers keepalive pings and discards the rest.
	socket.ReadLoop(nil)
}

// Notify broadcasts an invalidate event to the room. The caller gets a 200
// as soon as fan-out is dispatched; per-client delivery is nobody's promise.
func (h *RelayHandler) Notify(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	h.relay.HandleNotify(r.Context(), key)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ChatBroadcast relays an already-persisted chat message to the room. The
// body is passed through verbatim so clients append it without a re-fetch.
func (h *RelayHandler) ChatBroadcast(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	key := r.PathValue("key")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxChatPayload))
	if err != nil {
		log.ErrorContext(r.Context(), "relay handler - chat broadcast - body read failed", "room_key", key, "err", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := h.relay.HandleChatBroadcast(r.Context(), key, json.RawMessage(body)); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Stats serves the room occupancy snapshot consumed by the admin views.
func (h *RelayHandler) Stats(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	stats := h.relay.Stats(r.Context(), key)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
