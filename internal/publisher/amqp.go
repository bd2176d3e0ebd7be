package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends events to a durable RabbitMQ queue through the default
// exchange. The event type travels as the message type and an event_type
// header, the routing key of the event as the message id.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	timeout time.Duration
	log     *slog.Logger
}

func NewAMQPPublisher(log *slog.Logger, uri, queue string) (*AMQPPublisher, error) {
	if queue == "" {
		queue = DefaultTopic
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, queue: q.Name, timeout: 5 * time.Second, log: log}, nil
}

func (p *AMQPPublisher) OrderCompleted(ctx context.Context, sessionID string, res *checkout.Result) error {
	key, payload := orderCompleted(sessionID, res)
	return p.publish(ctx, EventOrderCompleted, key, payload)
}

func (p *AMQPPublisher) ReconciliationRequired(ctx context.Context, sessionID string, failure *checkout.Error) error {
	key, payload := reconciliationRequired(sessionID, failure)
	return p.publish(ctx, EventReconciliationRequired, key, payload)
}

func (p *AMQPPublisher) publish(ctx context.Context, eventType, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    key,
			Type:         eventType,
			Timestamp:    time.Now().UTC(),
			Headers:      amqp.Table{"event_type": eventType},
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.log.DebugContext(ctx, "event published", "event_type", eventType, "queue", p.queue, "key", key)
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
