// internal/dispatch/publisher_test.go
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"notification-gateway/internal/common/logger"
	"notification-gateway/internal/notification"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel captures publishes instead of touching a broker.
type fakeChannel struct {
	exchange   string
	routingKey string
	publishing amqp.Publishing
	calls      int
	err        error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.calls++
	f.exchange = exchange
	f.routingKey = key
	f.publishing = msg
	return f.err
}

func testNotification(typ notification.Type) *notification.Notification {
	return &notification.Notification{
		ID:           "ntf_123",
		Type:         typ,
		UserID:       "user-001",
		TemplateCode: "welcome",
		Variables:    notification.Variables{Name: "John Doe", Link: "https://example.com/confirm"},
		RequestID:    "req-001",
		Priority:     7,
		Status:       notification.StatusPending,
		Attempts:     0,
	}
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "notification.email", RoutingKey(notification.TypeEmail))
	assert.Equal(t, "notification.push", RoutingKey(notification.TypePush))
}

func TestPublisher_Publish_RoutesByType(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(ch, "notifications.direct", logger.NewTestLogger(t))

	err := pub.Publish(context.Background(), testNotification(notification.TypePush), "corr-1")

	assert.NoError(t, err)
	assert.Equal(t, 1, ch.calls)
	assert.Equal(t, "notifications.direct", ch.exchange)
	assert.Equal(t, "notification.push", ch.routingKey)
}

func TestPublisher_Publish_MessageIsSelfContained(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(ch, "notifications.direct", logger.NewTestLogger(t))

	n := testNotification(notification.TypeEmail)
	n.CustomMetadata = map[string]interface{}{"campaign": "spring"}

	err := pub.Publish(context.Background(), n, "corr-1")
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(ch.publishing.Body, &msg))
	assert.Equal(t, "ntf_123", msg.NotificationID)
	assert.Equal(t, "email", msg.NotificationType)
	assert.Equal(t, "user-001", msg.UserID)
	assert.Equal(t, "welcome", msg.TemplateCode)
	assert.Equal(t, "John Doe", msg.Variables.Name)
	assert.Equal(t, "req-001", msg.RequestID)
	assert.Equal(t, 7, msg.Priority)
	assert.Equal(t, "spring", msg.CustomMetadata["campaign"])
}

func TestPublisher_Publish_TransportAttributes(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewPublisher(ch, "notifications.direct", logger.NewTestLogger(t))

	err := pub.Publish(context.Background(), testNotification(notification.TypeEmail), "corr-1")
	require.NoError(t, err)

	assert.Equal(t, "application/json", ch.publishing.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), ch.publishing.DeliveryMode)
	assert.Equal(t, uint8(7), ch.publishing.Priority)
	assert.Equal(t, "corr-1", ch.publishing.Headers["correlation_id"])
	assert.Equal(t, int32(0), ch.publishing.Headers["attempts"])
	assert.Equal(t, "email", ch.publishing.Headers["notification_type"])
}

func TestPublisher_Publish_ChannelErrorSurfaced(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	pub := NewPublisher(ch, "notifications.direct", logger.NewTestLogger(t))

	err := pub.Publish(context.Background(), testNotification(notification.TypeEmail), "corr-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notification.email")
}
