package registry

import (
	"context"
	"sync"

	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/contracts"
	"github.com/schwenzfeuer/wunschkiste-sub000/internal/platform/logger"
	"github.com/schwenzfeuer/wunschkiste-sub000/pkg/protocol"
)

// Room owns the set of live connections for one key. The set is mutated only
// by Add/Remove and read by Broadcast; the mutex makes that safe under the
// net/http goroutine-per-request model.
type Room struct {
	key   string
	mu    sync.RWMutex
	conns map[string]contracts.Client
}

func newRoom(key string) *Room {
	return &Room{
		key:   key,
		conns: make(map[string]contracts.Client),
	}
}

func (r *Room) Key() string { return r.key }

func (r *Room) Add(c contracts.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Remove drops a connection from the live set. Idempotent: removing an
// already-removed connection is a no-op.
func (r *Room) Remove(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		return false
	}
	delete(r.conns, connID)
	return true
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Broadcast fans the event out to every live connection. The set is
// snapshotted first so a send failure may close and remove the offending
// connection without invalidating the iteration. One bad connection never
// blocks delivery to the rest.
func (r *Room) Broadcast(ctx context.Context, ev protocol.Event) {
	log := logger.FromContext(ctx)
	data, err := ev.Encode()
	if err != nil {
		log.ErrorContext(ctx, "room - broadcast - encode failed", "room_key", r.key, "event_type", ev.Type, "err", err)
		return
	}
	r.mu.RLock()
	snapshot := make([]contracts.Client, 0, len(r.conns))
	for _, c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()
	for _, c := range snapshot {
		if err := c.Send(ctx, data); err != nil {
			log.WarnContext(ctx, "room - broadcast - send failed, dropping connection", "room_key", r.key, "conn_id", c.ID(), "err", err)
			r.Remove(c.ID())
			c.Close()
		}
	}
}
