package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/publisher"
)

// eventTimeout bounds event publishing, which runs detached from the request.
const eventTimeout = 10 * time.Second

type Sequencer interface {
	Checkout(ctx context.Context, cart domain.Cart) (*checkout.Result, error)
}

type CheckoutRecorder interface {
	ObserveCheckout(outcome string, oversoldLines int)
}

// ProductInvalidator drops cached catalog data after stock has moved.
type ProductInvalidator interface {
	InvalidateProducts(ctx context.Context)
}

// Storefront owns one cart per browsing session and runs checkouts for them.
type Storefront struct {
	mu         sync.Mutex
	carts      map[string]*cart.Store
	processing map[string]struct{}

	seq      Sequencer
	events   publisher.Publisher
	recorder CheckoutRecorder
	products ProductInvalidator
	log      *slog.Logger
}

func NewStorefront(seq Sequencer, events publisher.Publisher, recorder CheckoutRecorder, products ProductInvalidator, log *slog.Logger) *Storefront {
	return &Storefront{
		carts:      make(map[string]*cart.Store),
		processing: make(map[string]struct{}),
		seq:        seq,
		events:     events,
		recorder:   recorder,
		products:   products,
		log:        log,
	}
}

// Cart returns the session's cart, creating an empty one on first use.
func (s *Storefront) Cart(sessionID string) *cart.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[sessionID]
	if !ok {
		c = cart.NewStore()
		s.carts[sessionID] = c
	}
	return c
}

func (s *Storefront) DropCart(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
}

// Checkout converts the session's cart into an order. Only one checkout per
// session may run at a time; a second caller gets ErrCheckoutInProgress.
// Once started, the sequence runs to its end even if the caller goes away;
// each store call is still bounded by the sequencer's call timeout.
// On success the ordered lines leave the cart and the cart is closed.
func (s *Storefront) Checkout(ctx context.Context, sessionID string) (*checkout.Result, error) {
	if !s.begin(sessionID) {
		return nil, ErrCheckoutInProgress
	}
	defer s.end(sessionID)

	ctx = context.WithoutCancel(ctx)
	c := s.Cart(sessionID)
	snap := c.Snapshot()
	res, err := s.seq.Checkout(ctx, snap)

	oversold := 0
	if res != nil {
		oversold = len(res.Oversold)
	}
	s.recorder.ObserveCheckout(checkout.KindLabel(err), oversold)

	if err != nil {
		s.afterFailure(ctx, sessionID, err)
		return nil, err
	}

	c.RemoveLines(snap.Lines)
	c.CloseCart()
	s.invalidate(ctx)

	if oversold > 0 {
		s.log.WarnContext(ctx, "checkout oversold stock", "order_id", res.OrderID, "lines", oversold)
	}
	pubCtx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()
	if errPub := s.events.OrderCompleted(pubCtx, sessionID, res); errPub != nil {
		s.log.ErrorContext(ctx, "failed to publish order completed", "order_id", res.OrderID, "error", errPub)
	}
	return res, nil
}

func (s *Storefront) afterFailure(ctx context.Context, sessionID string, err error) {
	var failure *checkout.Error
	if !errors.As(err, &failure) || !failure.NeedsReconciliation() {
		s.log.InfoContext(ctx, "checkout rejected", "session_id", sessionID, "kind", checkout.KindLabel(err))
		return
	}

	s.log.ErrorContext(ctx, "checkout partially persisted",
		"session_id", sessionID,
		"order_id", failure.Progress.OrderID,
		"product_id", failure.ProductID,
		"lines_inserted", failure.Progress.LinesInserted,
		"stock_updated", failure.Progress.StockUpdated,
		"error", err)

	if failure.Progress.StockUpdated > 0 {
		s.invalidate(ctx)
	}
	pubCtx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()
	if errPub := s.events.ReconciliationRequired(pubCtx, sessionID, failure); errPub != nil {
		s.log.ErrorContext(ctx, "failed to publish reconciliation event", "session_id", sessionID, "error", errPub)
	}
}

func (s *Storefront) invalidate(ctx context.Context) {
	if s.products == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	s.products.InvalidateProducts(ctx)
}

func (s *Storefront) begin(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.processing[sessionID]; busy {
		return false
	}
	s.processing[sessionID] = struct{}{}
	return true
}

func (s *Storefront) end(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processing, sessionID)
}

// Processing reports whether the session has a checkout in flight.
func (s *Storefront) Processing(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.processing[sessionID]
	return busy
}
