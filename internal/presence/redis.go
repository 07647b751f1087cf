package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:user:"

// RedisStore keeps one expiring key per online user. A heartbeat refreshes the TTL;
// a crashed node's users fall offline once their keys expire.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// MarkOnline sets or refreshes the user's presence key.
func (s *RedisStore) MarkOnline(ctx context.Context, userID string) error {
	return s.rdb.Set(ctx, keyPrefix+userID, time.Now().UTC().Unix(), s.ttl).Err()
}

// MarkOffline drops the user's presence key.
func (s *RedisStore) MarkOffline(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, keyPrefix+userID).Err()
}

// OnlineUsers reports which of userIDs currently hold a presence key.
func (s *RedisStore) OnlineUsers(ctx context.Context, userIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Exists(ctx, keyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	for i, id := range userIDs {
		out[id] = cmds[i].Val() > 0
	}
	return out, nil
}
