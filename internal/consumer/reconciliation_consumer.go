package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const DefaultGroupID = "storefront-reconciliation"

// ReconciliationStore persists reconciliation requests.
type ReconciliationStore interface {
	CreateReconciliation(ctx context.Context, rec domain.Reconciliation) (*domain.Reconciliation, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads the storefront event topic and records every
// checkout.reconciliation_required event so operators can list them.
// Other event types are skipped.
type Consumer struct {
	store   ReconciliationStore
	reader  messageReader
	log     *slog.Logger
	backoff time.Duration
}

func NewConsumer(store ReconciliationStore, log *slog.Logger, groupID, topic string, brokers ...string) *Consumer {
	if topic == "" {
		topic = publisher.DefaultTopic
	}
	if groupID == "" {
		groupID = DefaultGroupID
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{store: store, reader: reader, log: log, backoff: time.Second}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.processMessage(ctx); err != nil && ctx.Err() == nil {
			c.log.ErrorContext(ctx, "reconciliation consumer error", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", "error", err)
	}
}

// processMessage returns an error only when reading from the broker fails.
// Bad payloads are logged and skipped so they do not block the partition.
func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("read message: %w", err)
	}

	if eventType := header(m, "event_type"); eventType != publisher.EventReconciliationRequired {
		c.log.DebugContext(ctx, "skipping event", "event_type", eventType, "offset", m.Offset)
		return nil
	}

	var event publisher.ReconciliationPayload
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.WarnContext(ctx, "error parsing reconciliation event", "offset", m.Offset, "error", err)
		return nil
	}
	if event.OrderID == uuid.Nil {
		c.log.WarnContext(ctx, "reconciliation event without order id", "session_id", event.SessionID)
		return nil
	}

	rec, err := c.store.CreateReconciliation(ctx, domain.Reconciliation{
		OrderID:         event.OrderID,
		SessionID:       event.SessionID,
		Kind:            event.Kind,
		FailedProductID: event.FailedProductID,
		LinesInserted:   event.LinesInserted,
		StockUpdated:    event.StockUpdated,
		Cause:           event.Cause,
		FailedAt:        event.FailedAt,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		c.log.InfoContext(ctx, "reconciliation already recorded, skipping", "order_id", event.OrderID)
		return nil
	}
	if err != nil {
		c.log.ErrorContext(ctx, "failed to record reconciliation", "order_id", event.OrderID, "error", err)
		return nil
	}

	c.log.InfoContext(ctx, "reconciliation recorded", "id", rec.ID, "order_id", rec.OrderID, "kind", rec.Kind)
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
