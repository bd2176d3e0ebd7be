package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails every call with err until err is cleared.
type flakyStore struct {
	*MemoryStore
	err   error
	calls int
}

func (f *flakyStore) GetStock(ctx context.Context, productID string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.MemoryStore.GetStock(ctx, productID)
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	mem := setupStore(t)
	cb := circuitbreaker.New(circuitbreaker.Config{Name: "test", MaxFailures: 2}, nil)
	s := NewBreakerStore(mem, cb)
	ctx := context.Background()

	order, err := s.CreateOrder(ctx, domain.Order{UserID: "user-1"})
	require.NoError(t, err)
	require.NoError(t, s.InsertOrderLine(ctx, domain.OrderLine{OrderID: order.ID, ProductID: "1", Quantity: 1}))

	ok, err := s.CompareAndSetStock(ctx, "1", 100, 99)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.SetStock(ctx, "2", 7))
	stock, err := s.GetStock(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, 7, stock)
}

func TestBreakerStore_OpensAfterConsecutiveFailures(t *testing.T) {
	backendDown := errors.New("connection refused")
	flaky := &flakyStore{MemoryStore: setupStore(t), err: backendDown}
	cb := circuitbreaker.New(circuitbreaker.Config{Name: "test", MaxFailures: 2, OpenTimeout: time.Hour}, nil)
	s := NewBreakerStore(flaky, cb)
	ctx := context.Background()

	_, err := s.GetStock(ctx, "1")
	assert.ErrorIs(t, err, backendDown)
	_, err = s.GetStock(ctx, "1")
	assert.ErrorIs(t, err, backendDown)

	_, err = s.GetStock(ctx, "1")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, flaky.calls, "open breaker must not reach the backend")
	assert.Equal(t, "open", cb.State())
}

func TestBreakerStore_IgnoredErrorsDoNotTrip(t *testing.T) {
	mem := setupStore(t)
	cb := circuitbreaker.New(circuitbreaker.Config{
		Name:        "test",
		MaxFailures: 1,
		Ignored:     []error{ErrProductNotFound},
	}, nil)
	s := NewBreakerStore(mem, cb)

	for i := 0; i < 3; i++ {
		_, err := s.GetStock(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrProductNotFound)
	}
	assert.Equal(t, "closed", cb.State())
}
