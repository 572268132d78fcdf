package contracts

import (
	"context"
	"time"
)

// For each room, use ZSET to store presence info
type PresenceStore interface {
	// CheckIn refreshes the TTL-based membership of a connection in its room
	CheckIn(ctx context.Context, roomKey string, connID string, ttl time.Duration) error
	// OnlineConnections returns the connection IDs currently active in a room
	OnlineConnections(ctx context.Context, roomKey string) ([]string, error)
	// Manual clean up
	ClearRoom(ctx context.Context, roomKey string) error
}
