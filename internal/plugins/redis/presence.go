package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schwenzfeuer/wunschkiste-sub000/internal/core/domain"
)

// RedisPresenceStore tracks which connections are live per room in a TTL'd
// ZSET. It backs the stats action only; room membership itself stays in
// process memory.
type RedisPresenceStore struct {
	rdb *redis.Client
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
	}
}

// CheckIn adds/updates a connection in the room's ZSet with the current timestamp.
func (p *RedisPresenceStore) CheckIn(
	ctx context.Context,
	roomKey string,
	connID string,
	ttl time.Duration, // "inactivity threshold"
) error {
	key := "presence:" + roomKey
	now := time.Now().Unix()

	err := p.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(now),
		Member: connID,
	}).Err()
	if err != nil {
		return err
	}

	// Expire the whole ZSet so an abandoned room doesn't leak memory.
	return p.rdb.Expire(ctx, key, ttl*2).Err()
}

// OnlineConnections returns connections that checked in within the ttl window.
func (p *RedisPresenceStore) OnlineConnections(
	ctx context.Context,
	roomKey string,
) ([]string, error) {
	key := "presence:" + roomKey

	threshold := time.Now().Add(-domain.PresenceTTL).Unix()

	// Remove stale members first (Self-cleaning)
	p.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(threshold, 10))

	// Get all members remaining in the set
	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}

// ClearRoom deletes the entire ZSet for the room.
func (p *RedisPresenceStore) ClearRoom(ctx context.Context, roomKey string) error {
	key := "presence:" + roomKey
	return p.rdb.Del(ctx, key).Err()
}
