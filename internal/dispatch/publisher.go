// internal/dispatch/publisher.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"notification-gateway/internal/common/logger"
	"notification-gateway/internal/notification"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the slice of the AMQP channel API the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Message is the self-contained broker payload: a downstream consumer
// needs no additional read to deliver.
type Message struct {
	NotificationID   string                 `json:"notification_id"`
	NotificationType string                 `json:"notification_type"`
	UserID           string                 `json:"user_id"`
	TemplateCode     string                 `json:"template_code"`
	Variables        notification.Variables `json:"variables"`
	RequestID        string                 `json:"request_id"`
	Priority         int                    `json:"priority"`
	CustomMetadata   map[string]interface{} `json:"custom_metadata"`
}

// Publisher hands notifications to the durable broker, routed by type.
type Publisher struct {
	channel  Channel
	exchange string
	logger   logger.Logger
}

// NewPublisher creates a dispatch publisher bound to a declared exchange.
func NewPublisher(channel Channel, exchange string, log logger.Logger) *Publisher {
	return &Publisher{
		channel:  channel,
		exchange: exchange,
		logger:   log.WithFields(map[string]interface{}{"component": "dispatch-publisher"}),
	}
}

// RoutingKey derives the broker routing key from a notification type.
func RoutingKey(t notification.Type) string {
	return "notification." + string(t)
}

// Publish sends one persistent message per notification, carrying the
// priority as a transport-level hint and the correlation id plus attempt
// counter in the headers.
func (p *Publisher) Publish(ctx context.Context, n *notification.Notification, correlationID string) error {
	msg := Message{
		NotificationID:   n.ID,
		NotificationType: string(n.Type),
		UserID:           n.UserID,
		TemplateCode:     n.TemplateCode,
		Variables:        n.Variables,
		RequestID:        n.RequestID,
		Priority:         n.Priority,
		CustomMetadata:   n.CustomMetadata,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	routingKey := RoutingKey(n.Type)

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     uint8(n.Priority),
		Body:         body,
		Headers: amqp.Table{
			"correlation_id":    correlationID,
			"attempts":          int32(n.Attempts),
			"notification_type": string(n.Type),
		},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}

	p.logger.Info("published message", map[string]interface{}{
		"notificationId": n.ID,
		"routingKey":     routingKey,
		"correlationId":  correlationID,
	})
	return nil
}
