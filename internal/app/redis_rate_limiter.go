package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultAttemptPrefix = "booking:rate_limit"

// AttemptLimiter counts attempts per scope and subject in a fixed window.
type AttemptLimiter interface {
	ConsumeAttempt(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// The first INCR of a window starts its expiry; PTTL reports what is left.
var consumeAttemptScript = redis.NewScript(`
local attempts = redis.call("INCR", KEYS[1])
if attempts == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local remaining = redis.call("PTTL", KEYS[1])
if remaining < 0 then
  remaining = tonumber(ARGV[1])
end
return {attempts, remaining}
`)

// RedisAttemptLimiter shares attempt counters between replicas through Redis.
type RedisAttemptLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisAttemptLimiter creates a limiter whose keys are
// "<prefix>:<scope>:<subject>".
func NewRedisAttemptLimiter(client redis.UniversalClient, prefix string) *RedisAttemptLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultAttemptPrefix
	}
	return &RedisAttemptLimiter{client: client, prefix: prefix}
}

func (r *RedisAttemptLimiter) key(scope, subject string) string {
	return r.prefix + ":" + scope + ":" + subject
}

// ConsumeAttempt increments the counter for scope and subject and reports the
// new count with the seconds left in the window. A zero limit or window, or a
// blank scope or subject, counts nothing.
func (r *RedisAttemptLimiter) ConsumeAttempt(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if r == nil || r.client == nil || limit <= 0 || window <= 0 || scope == "" || subject == "" {
		return 0, 0, nil
	}

	windowMs := max(window.Milliseconds(), 1000)
	reply, err := consumeAttemptScript.Run(ctx, r.client, []string{r.key(scope, subject)}, windowMs).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("consume attempt %s: %w", scope, err)
	}
	if len(reply) != 2 {
		return 0, 0, fmt.Errorf("consume attempt %s: unexpected reply length %d", scope, len(reply))
	}

	remainingMs := reply[1]
	if remainingMs < 0 {
		remainingMs = windowMs
	}
	return int(reply[0]), secondsCeil(remainingMs), nil
}

// secondsCeil rounds milliseconds up to whole seconds, never below one.
func secondsCeil(ms int64) int {
	return int(max((ms+999)/1000, 1))
}
