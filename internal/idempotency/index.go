// internal/idempotency/index.go
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notification-gateway/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// reservedSentinel marks a key whose winner has reserved it but not yet
// committed a notification id.
const reservedSentinel = "__reserved__"

const keyPrefix = "idempotency:"

// ErrReservationInFlight is returned when another caller holds the
// reservation for the key but has not committed yet.
var ErrReservationInFlight = errors.New("IDEMPOTENCY_RESERVATION_IN_FLIGHT")

// releaseScript deletes the key only while it still holds the sentinel,
// so a release racing a commit never removes a committed mapping.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// State of a resolved key.
type State int

const (
	StateReserved State = iota
	StateExisting
)

// Resolution is the outcome of ResolveOrReserve.
type Resolution struct {
	State          State
	NotificationID string
}

// Index maps an idempotency key to a notification id with expiry. The
// reserve step is a single conditional SET NX so that, under concurrent
// callers presenting the same key, exactly one observes Reserved.
type Index struct {
	client     *redis.Client
	retention  time.Duration
	reserveTTL time.Duration
	logger     logger.Logger
}

// NewIndex creates an idempotency index. retention bounds how long a
// committed mapping lives; reserveTTL bounds how long an uncommitted
// reservation can stall retries after a winner crashes.
func NewIndex(client *redis.Client, retention, reserveTTL time.Duration, log logger.Logger) *Index {
	return &Index{
		client:     client,
		retention:  retention,
		reserveTTL: reserveTTL,
		logger:     log.WithFields(map[string]interface{}{"component": "idempotency-index"}),
	}
}

// ResolveOrReserve atomically resolves key to an existing notification id
// or reserves it for the caller. Exactly one concurrent caller gets
// StateReserved; callers that find an uncommitted reservation get
// ErrReservationInFlight; backend failures are surfaced, never treated
// as "new".
func (i *Index) ResolveOrReserve(ctx context.Context, key string) (Resolution, error) {
	ok, err := i.client.SetNX(ctx, keyPrefix+key, reservedSentinel, i.reserveTTL).Result()
	if err != nil {
		return Resolution{}, fmt.Errorf("idempotency reserve: %w", err)
	}
	if ok {
		return Resolution{State: StateReserved}, nil
	}

	val, err := i.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The previous holder released or expired between SetNX and
			// Get. Treat as in flight; the caller retries.
			return Resolution{}, ErrReservationInFlight
		}
		return Resolution{}, fmt.Errorf("idempotency lookup: %w", err)
	}
	if val == reservedSentinel {
		return Resolution{}, ErrReservationInFlight
	}

	return Resolution{State: StateExisting, NotificationID: val}, nil
}

// Commit points key at the created notification id for the retention
// window. Mappings are never updated after commit; they disappear on
// expiry only.
func (i *Index) Commit(ctx context.Context, key, notificationID string) error {
	if err := i.client.Set(ctx, keyPrefix+key, notificationID, i.retention).Err(); err != nil {
		return fmt.Errorf("idempotency commit: %w", err)
	}
	return nil
}

// Release drops an uncommitted reservation so a later retry with the
// same key can succeed. A committed mapping is left untouched.
func (i *Index) Release(ctx context.Context, key string) {
	if err := releaseScript.Run(ctx, i.client, []string{keyPrefix + key}, reservedSentinel).Err(); err != nil {
		// Worst case the reservation lives until reserveTTL expires.
		i.logger.Warn("failed to release idempotency reservation", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
