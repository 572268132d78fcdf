package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/domain"
)

// RuntimeClient is one live connection owned by exactly one Room. Writes are
// funneled through a buffered channel and a single write pump; Send never
// blocks on a slow peer, it fails instead so the Room drops the connection.
type RuntimeClient struct {
	ctx     context.Context
	cancel  context.CancelFunc
	ws      *WebSocket
	id      string
	roomKey string
	out     chan []byte
	once    sync.Once
}

func NewClient(parent context.Context, ws *WebSocket, roomKey string) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:     ctx,
		cancel:  cancel,
		ws:      ws,
		id:      uuid.NewString(),
		roomKey: roomKey,
		out:     make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string      { return c.id }
func (c *RuntimeClient) RoomKey() string { return c.roomKey }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return domain.ErrClientClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return domain.ErrClientClosed
	default:
		return domain.ErrSendBufferFull
	}
}

// Close is idempotent and safe to race with Send; the out channel is left
// for the GC so a late Send can never panic on it.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		}
	}
}
