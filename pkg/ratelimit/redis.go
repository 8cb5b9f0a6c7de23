package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one sorted set per key, scored by hit time in
// microseconds, so several instances can share a window.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "signup:ratelimit",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit implements Store. The trim, insert and count run in one MULTI/EXEC.
func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	k := s.prefix + ":" + key
	nowMicro := now.UnixMicro()
	cutoff := nowMicro - window.Microseconds()

	var card *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(nowMicro), Member: uuid.NewString()})
		card = pipe.ZCard(ctx, k)
		pipe.PExpire(ctx, k, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("error recording rate limit hit: %w", err)
	}

	return int(card.Val()), nil
}
