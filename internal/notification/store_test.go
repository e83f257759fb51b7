// internal/notification/store_test.go
package notification

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"notification-gateway/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestSpec() Spec {
	return Spec{
		Type:         TypeEmail,
		UserID:       "user-001",
		TemplateCode: "welcome",
		Variables:    Variables{Name: "John Doe", Link: "https://example.com/confirm"},
		RequestID:    "req-001",
		Priority:     1,
	}
}

func notificationRow(id string, status string, attempts int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "notification_type", "user_id", "template_code", "variables",
		"request_id", "priority", "custom_metadata", "status", "attempts",
		"error_message", "created_at", "updated_at",
	}).AddRow(
		id, "email", "user-001", "welcome",
		[]byte(`{"name":"John Doe","link":"https://example.com/confirm"}`),
		"req-001", 1, nil, status, attempts, nil, now, now,
	)
}

// ==========================
// Create
// ==========================

func TestStore_Create_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(
			sqlmock.AnyArg(), // generated id
			"email",
			"user-001",
			"welcome",
			sqlmock.AnyArg(), // variables JSON
			"req-001",
			1,
			sqlmock.AnyArg(), // metadata
		).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.Create(context.Background(), createTestSpec())

	assert.NoError(t, err)
	require.NotNil(t, n)
	assert.NotEmpty(t, n.ID)
	assert.Contains(t, n.ID, "ntf_")
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, 0, n.Attempts)
	assert.Equal(t, "req-001", n.RequestID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_DuplicateRequestID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO notifications`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "notifications_request_id_key"})

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.Create(context.Background(), createTestSpec())

	assert.Nil(t, n)
	assert.True(t, errors.Is(err, ErrDuplicateRequest))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Get
// ==========================

func TestStore_Get_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WithArgs("ntf_123").
		WillReturnRows(notificationRow("ntf_123", "pending", 0))

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.Get(context.Background(), "ntf_123")

	assert.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "ntf_123", n.ID)
	assert.Equal(t, TypeEmail, n.Type)
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, "John Doe", n.Variables.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WithArgs("ntf_missing").
		WillReturnError(sql.ErrNoRows)

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.Get(context.Background(), "ntf_missing")

	assert.Nil(t, n)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetByRequestID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WithArgs("req-001").
		WillReturnRows(notificationRow("ntf_123", "pending", 0))

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.GetByRequestID(context.Background(), "req-001")

	assert.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "ntf_123", n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// ApplyStatus
// ==========================

func TestStore_ApplyStatus_PendingToDelivered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE notifications SET status = (.+) attempts = attempts \+ 1`).
		WithArgs("ntf_123", "delivered", "").
		WillReturnRows(notificationRow("ntf_123", "delivered", 1))

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.ApplyStatus(context.Background(), "ntf_123", StatusDelivered, "")

	assert.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, StatusDelivered, n.Status)
	assert.Equal(t, 1, n.Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ApplyStatus_RepeatTerminalIncrementsAttempts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// delivered -> delivered is a no-op on status but still counts the report
	mock.ExpectQuery(`UPDATE notifications SET status = `).
		WithArgs("ntf_123", "delivered", "").
		WillReturnRows(notificationRow("ntf_123", "delivered", 2))

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.ApplyStatus(context.Background(), "ntf_123", StatusDelivered, "")

	assert.NoError(t, err)
	assert.Equal(t, 2, n.Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ApplyStatus_TerminalConflictRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// No row matched the guarded UPDATE because the record is delivered.
	mock.ExpectQuery(`UPDATE notifications SET status = `).
		WithArgs("ntf_123", "failed", "boom").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WithArgs("ntf_123").
		WillReturnRows(notificationRow("ntf_123", "delivered", 1))

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.ApplyStatus(context.Background(), "ntf_123", StatusFailed, "boom")

	assert.Nil(t, n)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ApplyStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE notifications SET status = `).
		WithArgs("ntf_missing", "delivered", "").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WithArgs("ntf_missing").
		WillReturnError(sql.ErrNoRows)

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.ApplyStatus(context.Background(), "ntf_missing", StatusDelivered, "")

	assert.Nil(t, n)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ApplyStatus_RejectsNonTerminalTarget(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db, logger.NewTestLogger(t))
	n, err := store.ApplyStatus(context.Background(), "ntf_123", StatusPending, "")

	assert.Nil(t, n)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}
