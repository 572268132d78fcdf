package ws

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/schwenzfeuer/wunschkiste-sub000/pkg/protocol"
)

type WebSocket struct {
	*websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	writeMu sync.Mutex
}

func NewWebSocket(parent context.Context, conn *websocket.Conn) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{Conn: conn, ctx: ctx, cancel: cancel}
}

// WriteMessage is safe for concurrent use; the client write pump and the
// keepalive echo share the same socket.
func (w *WebSocket) WriteMessage(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

// ReadLoop pumps inbound frames until the peer goes away. A bare "ping"
// keepalive frame is answered with "pong" right here, so the common
// keepalive case never wakes application logic. Everything else goes to
// onMsg; the relay channel is receive-only for the application, so onMsg
// is typically a discard.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	// Ensure cleanup happens when the loop breaks
	defer func() {
		w.Close()
	}()

	// Configure Read Limits (Protects against memory exhaustion)
	w.Conn.SetReadLimit(64 * 1024) // 64KB max message size

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			// Check if it's a clean closure or an error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Debug("ws - read loop - unexpected close", "err", err)
			}
			break // Exit the loop
		}

		if bytes.Equal(bytes.TrimSpace(data), protocol.PingFrame) {
			_ = w.WriteMessage(protocol.PongFrame)
			continue
		}

		if len(data) > 0 && onMsg != nil {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Close() {
	w.cancel()
	_ = w.Conn.Close()
}
