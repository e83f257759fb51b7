// internal/admission/reporter.go
package admission

import (
	"context"
	"errors"

	apperrors "notification-gateway/internal/common/errors"
	"notification-gateway/internal/common/logger"
	"notification-gateway/internal/common/metrics"
	"notification-gateway/internal/notification"
)

// Reporter applies externally-reported delivery outcomes to notification
// records. Delivery workers call it once per attempt.
type Reporter struct {
	store  Store
	logger logger.Logger
}

// NewReporter creates a status reporter on top of the store.
func NewReporter(store Store, log logger.Logger) *Reporter {
	return &Reporter{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "status-reporter"}),
	}
}

// Report applies one delivery outcome. Terminal-to-terminal conflicts are
// late or duplicate reports: they are logged and rejected, never silently
// overwritten, and never fatal to the process.
func (r *Reporter) Report(ctx context.Context, notificationID string, status notification.Status, errMsg string) (*notification.Notification, error) {
	n, err := r.store.ApplyStatus(ctx, notificationID, status, errMsg)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return nil, apperrors.NewNotificationNotFoundError(notificationID)
		}
		if errors.Is(err, notification.ErrInvalidTransition) {
			from := "unknown"
			if current, getErr := r.store.Get(ctx, notificationID); getErr == nil {
				from = string(current.Status)
			}
			r.logger.Warn("late or duplicate status report rejected", map[string]interface{}{
				"notificationId": notificationID,
				"currentStatus":  from,
				"reportedStatus": string(status),
			})
			return nil, apperrors.NewInvalidStatusTransitionError(notificationID, from, string(status))
		}
		return nil, apperrors.NewStoreUnavailableError("notification-store", err)
	}

	metrics.StatusTransitions.WithLabelValues(string(status)).Inc()

	r.logger.Info("notification status updated", map[string]interface{}{
		"notificationId": notificationID,
		"status":         string(status),
		"attempts":       n.Attempts,
	})
	return n, nil
}
