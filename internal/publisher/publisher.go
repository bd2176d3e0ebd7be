package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	d "github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCompleted         = "order.completed"
	EventReconciliationRequired = "checkout.reconciliation_required"

	DefaultTopic = "storefront-events"
)

// Publisher hands storefront events to whatever is downstream.
type Publisher interface {
	OrderCompleted(ctx context.Context, sessionID string, res *checkout.Result) error
	ReconciliationRequired(ctx context.Context, sessionID string, failure *checkout.Error) error
	Close() error
}

type OrderCompletedPayload struct {
	OrderID     uuid.UUID           `json:"order_id"`
	SessionID   string              `json:"session_id"`
	UserID      string              `json:"user_id"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Lines       d.OrderLines        `json:"lines"`
	Oversold    []checkout.Oversell `json:"oversold,omitempty"`
	CompletedAt time.Time           `json:"completed_at"`
}

// ReconciliationPayload describes a checkout that stopped after writing some
// of its rows. OrderID is nil when the order row itself was never created.
type ReconciliationPayload struct {
	SessionID       string    `json:"session_id"`
	OrderID         uuid.UUID `json:"order_id"`
	Kind            string    `json:"kind"`
	FailedProductID string    `json:"failed_product_id,omitempty"`
	LinesInserted   int       `json:"lines_inserted"`
	StockUpdated    int       `json:"stock_updated"`
	Cause           string    `json:"cause"`
	FailedAt        time.Time `json:"failed_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	log     *slog.Logger
}

func NewKafkaPublisher(log *slog.Logger, topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second, log: log}
}

func (p *KafkaPublisher) OrderCompleted(ctx context.Context, sessionID string, res *checkout.Result) error {
	key, payload := orderCompleted(sessionID, res)
	return p.publish(ctx, EventOrderCompleted, key, payload)
}

func (p *KafkaPublisher) ReconciliationRequired(ctx context.Context, sessionID string, failure *checkout.Error) error {
	key, payload := reconciliationRequired(sessionID, failure)
	return p.publish(ctx, EventReconciliationRequired, key, payload)
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.log.DebugContext(ctx, "event published", "event_type", eventType, "key", key)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// orderCompleted is keyed by order for per-order ordering.
func orderCompleted(sessionID string, res *checkout.Result) (string, OrderCompletedPayload) {
	return res.OrderID.String(), OrderCompletedPayload{
		OrderID:     res.OrderID,
		SessionID:   sessionID,
		UserID:      res.UserID,
		TotalAmount: res.Total,
		Lines:       res.Lines,
		Oversold:    res.Oversold,
		CompletedAt: time.Now().UTC(),
	}
}

func reconciliationRequired(sessionID string, failure *checkout.Error) (string, ReconciliationPayload) {
	payload := ReconciliationPayload{
		SessionID:       sessionID,
		OrderID:         failure.Progress.OrderID,
		Kind:            checkout.KindLabel(failure),
		FailedProductID: failure.ProductID,
		LinesInserted:   failure.Progress.LinesInserted,
		StockUpdated:    failure.Progress.StockUpdated,
		FailedAt:        time.Now().UTC(),
	}
	if failure.Cause != nil {
		payload.Cause = failure.Cause.Error()
	}

	key := sessionID
	if failure.Progress.OrderID != uuid.Nil {
		key = failure.Progress.OrderID.String()
	}
	return key, payload
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) OrderCompleted(context.Context, string, *checkout.Result) error { return nil }

func (Nop) ReconciliationRequired(context.Context, string, *checkout.Error) error { return nil }

func (Nop) Close() error { return nil }
