// internal/notification/model.go
package notification

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Type is the delivery channel of a notification.
type Type string

const (
	TypeEmail Type = "email"
	TypePush  Type = "push"
)

// ParseType validates a raw notification type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeEmail, TypePush:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown notification type: %q", s)
}

// Status is the delivery lifecycle state of a notification.
// pending is initial; delivered and failed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusDelivered, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown notification status: %q", s)
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// CanTransitionTo reports whether a status report moving s to next is
// permitted. pending may move to either terminal state; a terminal state
// accepts only a repeat of itself (an idempotent re-report).
func (s Status) CanTransitionTo(next Status) bool {
	if s == StatusPending {
		return next.Terminal()
	}
	return s == next
}

// Variables is the template substitution payload. Name and Link are
// required; Meta is free-form.
type Variables struct {
	Name string                 `json:"name"`
	Link string                 `json:"link"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// Validate checks the minimum variable contract: a non-empty name and an
// absolute http(s) link.
func (v Variables) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("variables.name is required")
	}
	u, err := url.Parse(v.Link)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("variables.link must be an absolute http(s) URL")
	}
	return nil
}

// Notification is the durable lifecycle record of one admitted request.
type Notification struct {
	ID             string                 `json:"notification_id"`
	Type           Type                   `json:"notification_type"`
	UserID         string                 `json:"user_id"`
	TemplateCode   string                 `json:"template_code"`
	Variables      Variables              `json:"variables"`
	RequestID      string                 `json:"request_id"`
	Priority       int                    `json:"priority"`
	CustomMetadata map[string]interface{} `json:"custom_metadata,omitempty"`
	Status         Status                 `json:"status"`
	Attempts       int                    `json:"attempts"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// Spec describes a notification to be created. Status, attempts and
// timestamps are owned by the store.
type Spec struct {
	ID             string
	Type           Type
	UserID         string
	TemplateCode   string
	Variables      Variables
	RequestID      string
	Priority       int
	CustomMetadata map[string]interface{}
}

// Validate checks the admission-time invariants of a spec.
func (s Spec) Validate() error {
	if _, err := ParseType(string(s.Type)); err != nil {
		return err
	}
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("user_id is required")
	}
	if strings.TrimSpace(s.TemplateCode) == "" {
		return fmt.Errorf("template_code is required")
	}
	if strings.TrimSpace(s.RequestID) == "" {
		return fmt.Errorf("request_id is required")
	}
	if s.Priority < 1 || s.Priority > 10 {
		return fmt.Errorf("priority must be in [1,10], got %d", s.Priority)
	}
	return s.Variables.Validate()
}
