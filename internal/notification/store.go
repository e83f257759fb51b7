// internal/notification/store.go
package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"notification-gateway/internal/common/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound          = errors.New("NOTIFICATION_NOT_FOUND")
	ErrDuplicateRequest  = errors.New("DUPLICATE_REQUEST_ID")
	ErrInvalidTransition = errors.New("INVALID_STATUS_TRANSITION")
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

const notificationColumns = `id, notification_type, user_id, template_code, variables,
	request_id, priority, custom_metadata, status, attempts, error_message,
	created_at, updated_at`

// Store is the durable record of each notification and its status.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// NewStore creates a notification store on top of an existing connection pool.
func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "notification-store"}),
	}
}

// NewID generates a fresh notification identifier.
func NewID() string {
	return "ntf_" + uuid.New().String()
}

// Create inserts a new notification with status pending and zero attempts.
// A unique violation on request_id is reported as ErrDuplicateRequest so
// the caller can fall back to the already-created record.
func (s *Store) Create(ctx context.Context, spec Spec) (*Notification, error) {
	if spec.ID == "" {
		spec.ID = NewID()
	}

	variablesJSON, err := json.Marshal(spec.Variables)
	if err != nil {
		return nil, fmt.Errorf("marshal variables: %w", err)
	}

	var metadataJSON []byte
	if spec.CustomMetadata != nil {
		metadataJSON, err = json.Marshal(spec.CustomMetadata)
		if err != nil {
			return nil, fmt.Errorf("marshal custom metadata: %w", err)
		}
	}

	n := &Notification{
		ID:             spec.ID,
		Type:           spec.Type,
		UserID:         spec.UserID,
		TemplateCode:   spec.TemplateCode,
		Variables:      spec.Variables,
		RequestID:      spec.RequestID,
		Priority:       spec.Priority,
		CustomMetadata: spec.CustomMetadata,
		Status:         StatusPending,
		Attempts:       0,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (
			id, notification_type, user_id, template_code, variables,
			request_id, priority, custom_metadata, status, attempts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', 0)
		RETURNING created_at, updated_at`,
		spec.ID,
		string(spec.Type),
		spec.UserID,
		spec.TemplateCode,
		variablesJSON,
		spec.RequestID,
		spec.Priority,
		metadataJSON,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: request_id %s", ErrDuplicateRequest, spec.RequestID)
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	return n, nil
}

// Get fetches a notification by id.
func (s *Store) Get(ctx context.Context, id string) (*Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE id = $1`, id)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// GetByRequestID fetches a notification by its idempotency key.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE request_id = $1`, requestID)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get notification by request_id: %w", err)
	}
	return n, nil
}

// ApplyStatus applies a reported delivery outcome as a single atomic
// read-modify-write. Attempts increments on every accepted report,
// including a repeat of the same terminal status. The WHERE clause admits
// only pending -> terminal and terminal -> same terminal; a conflicting
// terminal report matches no row and is rejected as ErrInvalidTransition.
func (s *Store) ApplyStatus(ctx context.Context, id string, status Status, errMsg string) (*Notification, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: target status %s is not terminal", ErrInvalidTransition, status)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE notifications
		SET status = $2,
		    attempts = attempts + 1,
		    error_message = CASE WHEN $3 <> '' THEN $3 ELSE error_message END,
		    updated_at = now()
		WHERE id = $1 AND (status = 'pending' OR status = $2)
		RETURNING `+notificationColumns,
		id, string(status), errMsg)

	n, err := scanNotification(row)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("apply status: %w", err)
	}

	// No row matched: either the id is unknown or the record sits in the
	// other terminal state. Distinguish with a follow-up read.
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}

	s.logger.Warn("rejected terminal status conflict", map[string]interface{}{
		"notificationId": id,
		"currentStatus":  string(current.Status),
		"reportedStatus": string(status),
	})
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var (
		n             Notification
		rawType       string
		rawStatus     string
		variablesJSON []byte
		metadataJSON  []byte
		errMsg        sql.NullString
	)

	err := row.Scan(
		&n.ID, &rawType, &n.UserID, &n.TemplateCode, &variablesJSON,
		&n.RequestID, &n.Priority, &metadataJSON, &rawStatus, &n.Attempts,
		&errMsg, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if n.Type, err = ParseType(rawType); err != nil {
		return nil, err
	}
	if n.Status, err = ParseStatus(rawStatus); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(variablesJSON, &n.Variables); err != nil {
		return nil, fmt.Errorf("unmarshal variables: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &n.CustomMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal custom metadata: %w", err)
		}
	}
	if errMsg.Valid {
		n.ErrorMessage = errMsg.String
	}

	return &n, nil
}
