package contracts

import (
	"context"

	"github.com/schwenzfeuer/wunschkiste-sub000/pkg/protocol"
)

// RoomRegistry defines the single owner of the key→Room mapping. Resolve is
// the only way to obtain a Room, so the same key always lands on the same
// instance for the lifetime of the process.
type RoomRegistry interface {
	// Resolve returns the Room for key, creating it atomically on first use.
	Resolve(key string) Room
	// Peek returns the Room for key without creating one.
	Peek(key string) (Room, bool)
	// Release drops the Room for key if it holds no connections; a no-op otherwise.
	Release(key string)
}

// Room is the in-memory fan-out unit for one key.
type Room interface {
	Key() string
	// Add registers a live connection in the room's set.
	Add(c Client)
	// Remove drops a connection by ID; idempotent, reports whether it was present.
	Remove(connID string) bool
	// Broadcast sends the event to every live connection. A failed send drops
	// that connection and never prevents delivery to the others.
	Broadcast(ctx context.Context, ev protocol.Event)
	// Len reports the number of live connections.
	Len() int
}

// Client represents the minimal interface the Room needs to talk to an
// individual WebSocket connection.
type Client interface {
	ID() string
	RoomKey() string
	Send(ctx context.Context, data []byte) error
	Close()
}
