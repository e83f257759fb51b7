// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"notification-gateway/internal/common/logger"
	"notification-gateway/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// countScript increments the fixed-window counter and arms the window
// expiry on the first hit, in one atomic step.
var countScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter bounds requests per identifier per fixed time window. Window
// boundaries are not smoothed; a burst across a window edge is accepted.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger logger.Logger
}

// NewLimiter creates a fixed-window rate limiter.
func NewLimiter(client *redis.Client, limit int, window time.Duration, log logger.Logger) *Limiter {
	return &Limiter{
		client: client,
		limit:  limit,
		window: window,
		logger: log.WithFields(map[string]interface{}{"component": "rate-limiter"}),
	}
}

// Allow reports whether identifier may proceed in the current window.
// A backing-store failure fails open: the request is allowed and the
// outage is logged, so a limiter outage does not take the pipeline down.
func (l *Limiter) Allow(ctx context.Context, identifier string) bool {
	key := keyPrefix + identifier
	windowSeconds := int(l.window / time.Second)

	count, err := countScript.Run(ctx, l.client, []string{key}, windowSeconds).Int64()
	if err != nil {
		metrics.RateLimitFailOpen.Inc()
		l.logger.Error("rate limiter backend unavailable, failing open", map[string]interface{}{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return true
	}

	if count > int64(l.limit) {
		l.logger.Warn("rate limit exceeded", map[string]interface{}{
			"identifier": identifier,
			"count":      count,
			"limit":      l.limit,
			"window":     fmt.Sprintf("%ds", windowSeconds),
		})
		return false
	}

	return true
}
