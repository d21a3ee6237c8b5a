package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// RedisLimiter implements the sliding window over a redis sorted set keyed
// by identity, so the count is shared across instances. Each request is a
// member scored by its nanosecond timestamp; the member is added first and
// removed again on denial, which keeps the count at or below the limit even
// under concurrent admission checks.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, namespace string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: namespace + ":ratelimit:",
		limit:  limit,
		window: window,
	}
}

func (l *RedisLimiter) Admit(ctx context.Context, identity string) (Decision, error) {
	key := l.prefix + identity
	now := time.Now()
	cutoff := now.Add(-l.window).UnixNano()
	member := uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	cardCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.PExpire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := int(cardCmd.Val())
	resetAt := now.Add(l.window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.Unix(0, int64(oldest[0].Score)).Add(l.window)
	}

	if count > l.limit {
		// Over capacity: withdraw this request's member so denied
		// requests do not consume the window.
		l.client.ZRem(ctx, key, member)
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	return Decision{Allowed: true, Remaining: l.limit - count, ResetAt: resetAt}, nil
}
