// internal/notification/schema.go
package notification

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notifications (
	id                TEXT PRIMARY KEY,
	notification_type TEXT NOT NULL,
	user_id           TEXT NOT NULL,
	template_code     TEXT NOT NULL,
	variables         JSONB NOT NULL,
	request_id        TEXT NOT NULL UNIQUE,
	priority          INTEGER NOT NULL,
	custom_metadata   JSONB,
	status            TEXT NOT NULL DEFAULT 'pending',
	attempts          INTEGER NOT NULL DEFAULT 0,
	error_message     TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications (user_id);
CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications (status);
`

// InitSchema creates the notifications table if it does not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("init notifications schema: %w", err)
	}
	return nil
}
