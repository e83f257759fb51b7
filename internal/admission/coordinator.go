// internal/admission/coordinator.go
package admission

import (
	"context"
	"errors"
	"time"

	apperrors "notification-gateway/internal/common/errors"
	"notification-gateway/internal/common/logger"
	"notification-gateway/internal/common/metrics"
	"notification-gateway/internal/idempotency"
	"notification-gateway/internal/notification"
)

// Index is the idempotency key -> notification id mapping.
type Index interface {
	ResolveOrReserve(ctx context.Context, key string) (idempotency.Resolution, error)
	Commit(ctx context.Context, key, notificationID string) error
	Release(ctx context.Context, key string)
}

// Limiter bounds requests per caller identity.
type Limiter interface {
	Allow(ctx context.Context, identifier string) bool
}

// Store is the durable notification record.
type Store interface {
	Create(ctx context.Context, spec notification.Spec) (*notification.Notification, error)
	Get(ctx context.Context, id string) (*notification.Notification, error)
	GetByRequestID(ctx context.Context, requestID string) (*notification.Notification, error)
	ApplyStatus(ctx context.Context, id string, status notification.Status, errMsg string) (*notification.Notification, error)
}

// Publisher hands a notification to the durable broker.
type Publisher interface {
	Publish(ctx context.Context, n *notification.Notification, correlationID string) error
}

// Request is one incoming admission request.
type Request struct {
	Spec          notification.Spec
	CallerID      string
	CorrelationID string
}

// Coordinator orchestrates rate limiting, idempotency, the store and the
// publisher into a single create-or-return-existing decision.
type Coordinator struct {
	index     Index
	limiter   Limiter
	store     Store
	publisher Publisher
	logger    logger.Logger
}

// NewCoordinator wires the admission pipeline.
func NewCoordinator(index Index, limiter Limiter, store Store, publisher Publisher, log logger.Logger) *Coordinator {
	return &Coordinator{
		index:     index,
		limiter:   limiter,
		store:     store,
		publisher: publisher,
		logger:    log.WithFields(map[string]interface{}{"component": "admission-coordinator"}),
	}
}

// Admit answers "create or return existing" for one request. The bool
// result reports an idempotent replay. For a single request_id at most
// one notification is ever created; every duplicate submission observes
// that record, and the outcome is never an ambiguous success.
func (c *Coordinator) Admit(ctx context.Context, req Request) (*notification.Notification, bool, error) {
	start := time.Now()
	result := metrics.ResultFailed
	defer func() {
		metrics.AdmissionsTotal.WithLabelValues(result).Inc()
		metrics.AdmissionDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	if err := req.Spec.Validate(); err != nil {
		return nil, false, apperrors.NewValidationFailedError(err.Error())
	}

	if !c.limiter.Allow(ctx, req.CallerID) {
		result = metrics.ResultThrottled
		return nil, false, apperrors.NewRateLimitExceededError(req.CallerID)
	}

	res, err := c.index.ResolveOrReserve(ctx, req.Spec.RequestID)
	if err != nil {
		if errors.Is(err, idempotency.ErrReservationInFlight) {
			return nil, false, apperrors.NewIdempotencyConflictError(req.Spec.RequestID)
		}
		return nil, false, apperrors.NewStoreUnavailableError("idempotency-index", err)
	}

	if res.State == idempotency.StateExisting {
		n, err := c.store.Get(ctx, res.NotificationID)
		if err != nil {
			if errors.Is(err, notification.ErrNotFound) {
				c.logger.Error("idempotency mapping points at missing record", map[string]interface{}{
					"requestId":      req.Spec.RequestID,
					"notificationId": res.NotificationID,
				})
			}
			return nil, false, apperrors.NewStoreUnavailableError("notification-store", err)
		}
		c.logger.Info("duplicate request detected", map[string]interface{}{
			"requestId":      req.Spec.RequestID,
			"notificationId": n.ID,
			"correlationId":  req.CorrelationID,
		})
		result = metrics.ResultReplayed
		return n, true, nil
	}

	n, err := c.createAndPublish(ctx, req)
	if err != nil {
		return nil, false, err
	}

	result = metrics.ResultCreated
	return n, false, nil
}

// Lookup fetches the current record for one notification id.
func (c *Coordinator) Lookup(ctx context.Context, id string) (*notification.Notification, error) {
	n, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return nil, apperrors.NewNotificationNotFoundError(id)
		}
		return nil, apperrors.NewStoreUnavailableError("notification-store", err)
	}
	return n, nil
}

// createAndPublish runs the winner's side of a reservation: store insert,
// broker publish with compensation, idempotency commit.
func (c *Coordinator) createAndPublish(ctx context.Context, req Request) (*notification.Notification, error) {
	n, err := c.store.Create(ctx, req.Spec)
	if err != nil {
		if errors.Is(err, notification.ErrDuplicateRequest) {
			// The row outlived an expired mapping. Re-point the mapping at
			// it and treat the request as a replay.
			existing, getErr := c.store.GetByRequestID(ctx, req.Spec.RequestID)
			if getErr != nil {
				c.index.Release(ctx, req.Spec.RequestID)
				return nil, apperrors.NewStoreUnavailableError("notification-store", getErr)
			}
			c.commitMapping(ctx, req.Spec.RequestID, existing.ID)
			return existing, nil
		}
		c.index.Release(ctx, req.Spec.RequestID)
		return nil, apperrors.NewStoreUnavailableError("notification-store", err)
	}

	if err := c.publisher.Publish(ctx, n, req.CorrelationID); err != nil {
		metrics.PublishFailures.Inc()
		c.logger.Error("publish failed, compensating", map[string]interface{}{
			"notificationId": n.ID,
			"correlationId":  req.CorrelationID,
			"error":          err.Error(),
		})

		// Compensation: never leave the record pending with no chance of
		// delivery. The mapping is still committed so retries observe the
		// failed record instead of creating a second one.
		failed, applyErr := c.store.ApplyStatus(ctx, n.ID, notification.StatusFailed,
			apperrors.NewPublishFailedError(n.ID, err).Error())
		if applyErr != nil {
			c.index.Release(ctx, req.Spec.RequestID)
			return nil, apperrors.NewStoreUnavailableError("notification-store", applyErr)
		}
		c.commitMapping(ctx, req.Spec.RequestID, n.ID)
		return failed, nil
	}

	c.commitMapping(ctx, req.Spec.RequestID, n.ID)

	c.logger.Info("notification queued", map[string]interface{}{
		"notificationId": n.ID,
		"requestId":      req.Spec.RequestID,
		"correlationId":  req.CorrelationID,
	})
	return n, nil
}

// commitMapping commits the request_id -> id mapping. A commit failure is
// survivable: the reservation expires and a retry lands on the duplicate
// row path, so it is logged rather than failing the admission.
func (c *Coordinator) commitMapping(ctx context.Context, requestID, notificationID string) {
	if err := c.index.Commit(ctx, requestID, notificationID); err != nil {
		c.logger.Warn("failed to commit idempotency mapping", map[string]interface{}{
			"requestId":      requestID,
			"notificationId": notificationID,
			"error":          err.Error(),
		})
	}
}
