// internal/admission/reporter_test.go
package admission

import (
	"context"
	"errors"
	"testing"

	apperrors "notification-gateway/internal/common/errors"
	"notification-gateway/internal/common/logger"
	"notification-gateway/internal/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPending(t *testing.T, store *memoryStore) *notification.Notification {
	t.Helper()
	n, err := store.Create(context.Background(), admissionRequest("req-001").Spec)
	require.NoError(t, err)
	return n
}

func TestReporter_Report_Delivered(t *testing.T) {
	store := newMemoryStore()
	created := seedPending(t, store)
	reporter := NewReporter(store, logger.NewTestLogger(t))

	n, err := reporter.Report(context.Background(), created.ID, notification.StatusDelivered, "")

	assert.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, notification.StatusDelivered, n.Status)
	assert.Equal(t, 1, n.Attempts)
	assert.Empty(t, n.ErrorMessage)
}

func TestReporter_Report_FailedCarriesErrorMessage(t *testing.T) {
	store := newMemoryStore()
	created := seedPending(t, store)
	reporter := NewReporter(store, logger.NewTestLogger(t))

	n, err := reporter.Report(context.Background(), created.ID, notification.StatusFailed, "smtp timeout")

	assert.NoError(t, err)
	assert.Equal(t, notification.StatusFailed, n.Status)
	assert.Equal(t, "smtp timeout", n.ErrorMessage)
}

func TestReporter_Report_RepeatTerminalAccepted(t *testing.T) {
	store := newMemoryStore()
	created := seedPending(t, store)
	reporter := NewReporter(store, logger.NewTestLogger(t))
	ctx := context.Background()

	_, err := reporter.Report(ctx, created.ID, notification.StatusDelivered, "")
	require.NoError(t, err)

	n, err := reporter.Report(ctx, created.ID, notification.StatusDelivered, "")
	assert.NoError(t, err)
	assert.Equal(t, 2, n.Attempts)
}

func TestReporter_Report_TerminalConflictRejected(t *testing.T) {
	store := newMemoryStore()
	created := seedPending(t, store)
	reporter := NewReporter(store, logger.NewTestLogger(t))
	ctx := context.Background()

	_, err := reporter.Report(ctx, created.ID, notification.StatusDelivered, "")
	require.NoError(t, err)

	n, err := reporter.Report(ctx, created.ID, notification.StatusFailed, "late worker report")
	assert.Nil(t, n)
	assert.Equal(t, apperrors.ErrCodeInvalidStatusTransition, apperrors.CodeOf(err))

	// The record is untouched by the rejected report.
	current, getErr := store.Get(ctx, created.ID)
	require.NoError(t, getErr)
	assert.Equal(t, notification.StatusDelivered, current.Status)
	assert.Equal(t, 1, current.Attempts)
}

func TestReporter_Report_NotFound(t *testing.T) {
	store := newMemoryStore()
	reporter := NewReporter(store, logger.NewTestLogger(t))

	n, err := reporter.Report(context.Background(), "ntf_missing", notification.StatusDelivered, "")
	assert.Nil(t, n)
	assert.Equal(t, apperrors.ErrCodeNotificationNotFound, apperrors.CodeOf(err))
}

func TestReporter_Report_StoreUnavailable(t *testing.T) {
	store := newMemoryStore()
	created := seedPending(t, store)
	store.applyErr = errors.New("connection refused")
	reporter := NewReporter(store, logger.NewTestLogger(t))

	n, err := reporter.Report(context.Background(), created.ID, notification.StatusDelivered, "")
	assert.Nil(t, n)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, apperrors.CodeOf(err))
}
