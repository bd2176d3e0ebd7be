package service

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/store"
)

type MockSequencer struct {
	Result *checkout.Result
	Err    error
	// Started, when set, is closed once Checkout is entered; Release blocks it.
	Started chan struct{}
	Release chan struct{}
	Seen    []domain.Cart
}

func (m *MockSequencer) Checkout(ctx context.Context, cart domain.Cart) (*checkout.Result, error) {
	m.Seen = append(m.Seen, cart)
	if m.Started != nil {
		close(m.Started)
		select {
		case <-m.Release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.Result, m.Err
}

type MockPublisher struct {
	mu              sync.Mutex
	Completed       []*checkout.Result
	Reconciliations []*checkout.Error
	// CtxErrs holds ctx.Err() as seen by each publish call.
	CtxErrs []error
	Err     error
}

func (m *MockPublisher) OrderCompleted(ctx context.Context, _ string, res *checkout.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Completed = append(m.Completed, res)
	m.CtxErrs = append(m.CtxErrs, ctx.Err())
	return m.Err
}

func (m *MockPublisher) ReconciliationRequired(ctx context.Context, _ string, failure *checkout.Error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconciliations = append(m.Reconciliations, failure)
	m.CtxErrs = append(m.CtxErrs, ctx.Err())
	return m.Err
}

func (m *MockPublisher) Close() error { return nil }

// CancellingStore cancels the caller's request context right after the first
// order line is written, as a client disconnect would.
type CancellingStore struct {
	*store.MemoryStore
	cancel context.CancelFunc
	once   sync.Once
}

func (s *CancellingStore) InsertOrderLine(ctx context.Context, line domain.OrderLine) error {
	if err := s.MemoryStore.InsertOrderLine(ctx, line); err != nil {
		return err
	}
	s.once.Do(s.cancel)
	return nil
}

type MockRecorder struct {
	mu       sync.Mutex
	Outcomes []string
	Oversold int
}

func (m *MockRecorder) ObserveCheckout(outcome string, oversold int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, outcome)
	m.Oversold += oversold
}

type MockInvalidator struct {
	Calls int
}

func (m *MockInvalidator) InvalidateProducts(context.Context) {
	m.Calls++
}

// CountingRepository counts catalog reads that reach the database.
type CountingRepository struct {
	*repository.Repository

	mu        sync.Mutex
	listCalls int
	gate      chan struct{}
}

func (r *CountingRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	r.listCalls++
	r.mu.Unlock()
	if r.gate != nil {
		<-r.gate
	}
	return r.Repository.ListProducts(ctx)
}

func (r *CountingRepository) ListCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}
