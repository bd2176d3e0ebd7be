package store

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
)

// BreakerStore routes every call of a checkout store through a circuit
// breaker, so a failing backend fails checkouts fast.
type BreakerStore struct {
	next checkout.Store
	cb   *circuitbreaker.Breaker
}

func NewBreakerStore(next checkout.Store, cb *circuitbreaker.Breaker) *BreakerStore {
	return &BreakerStore{next: next, cb: cb}
}

func (s *BreakerStore) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	return circuitbreaker.Execute(s.cb, func() (domain.Order, error) {
		return s.next.CreateOrder(ctx, order)
	})
}

func (s *BreakerStore) InsertOrderLine(ctx context.Context, line domain.OrderLine) error {
	_, err := circuitbreaker.Execute(s.cb, func() (struct{}, error) {
		return struct{}{}, s.next.InsertOrderLine(ctx, line)
	})
	return err
}

func (s *BreakerStore) GetStock(ctx context.Context, productID string) (int, error) {
	return circuitbreaker.Execute(s.cb, func() (int, error) {
		return s.next.GetStock(ctx, productID)
	})
}

func (s *BreakerStore) SetStock(ctx context.Context, productID string, stock int) error {
	_, err := circuitbreaker.Execute(s.cb, func() (struct{}, error) {
		return struct{}{}, s.next.SetStock(ctx, productID, stock)
	})
	return err
}

func (s *BreakerStore) CompareAndSetStock(ctx context.Context, productID string, expected, stock int) (bool, error) {
	return circuitbreaker.Execute(s.cb, func() (bool, error) {
		return s.next.CompareAndSetStock(ctx, productID, expected, stock)
	})
}
