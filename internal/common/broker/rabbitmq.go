// internal/common/broker/rabbitmq.go
package broker

import (
	"fmt"

	"notification-gateway/internal/common/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient wraps the AMQP connection and channel
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQ dials the broker and declares the notification topology:
// a durable direct exchange with one durable queue per notification type
// plus a failed queue, bound by notification.<type> routing keys.
func NewRabbitMQ(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	return &RabbitMQClient{conn: conn, channel: ch}, nil
}

func declareTopology(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	queueArgs := amqp.Table{
		"x-message-ttl": int64(cfg.MessageTTL),
		"x-max-length":  int64(cfg.MaxQueueLen),
	}

	if _, err := ch.QueueDeclare(cfg.EmailQueue, true, false, false, false, queueArgs); err != nil {
		return fmt.Errorf("failed to declare email queue: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.PushQueue, true, false, false, false, queueArgs); err != nil {
		return fmt.Errorf("failed to declare push queue: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.FailedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare failed queue: %w", err)
	}

	if err := ch.QueueBind(cfg.EmailQueue, "notification.email", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind email queue: %w", err)
	}
	if err := ch.QueueBind(cfg.PushQueue, "notification.push", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind push queue: %w", err)
	}

	return nil
}

// Channel returns the underlying AMQP channel
func (c *RabbitMQClient) Channel() *amqp.Channel {
	return c.channel
}

// Healthy reports whether the connection is still open
func (c *RabbitMQClient) Healthy() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Close closes the channel and connection
func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
