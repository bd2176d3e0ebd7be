package checkout

import (
	"context"
	"log/slog"
	"time"

	d "github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultMaxStockRetries = 5

// Oversell records a line whose quantity exceeded the stock that was read.
// The stock is clamped at zero and the line still succeeds.
type Oversell struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type Result struct {
	OrderID  uuid.UUID       `json:"order_id"`
	UserID   string          `json:"user_id"`
	Total    decimal.Decimal `json:"total_amount"`
	Lines    d.OrderLines    `json:"lines"`
	Oversold []Oversell      `json:"oversold,omitempty"`
}

type Option func(*Sequencer)

func WithStockPolicy(p StockPolicy) Option {
	return func(s *Sequencer) { s.policy = p }
}

func WithMaxStockRetries(n int) Option {
	return func(s *Sequencer) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithCallTimeout bounds every individual store call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(s *Sequencer) { s.callTimeout = timeout }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Sequencer) { s.log = log }
}

func WithStateHook(hook StateHook) Option {
	return func(s *Sequencer) { s.hook = hook }
}

// Sequencer converts a cart into a persisted order and decrements stock, one
// remote call at a time. Steps are not atomic: a failure stops the sequence
// and whatever was already written stays written.
type Sequencer struct {
	store       Store
	identity    IdentityProvider
	policy      StockPolicy
	maxRetries  int
	callTimeout time.Duration
	log         *slog.Logger
	hook        StateHook
}

func NewSequencer(store Store, identity IdentityProvider, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:      store,
		identity:   identity,
		policy:     ConditionalWrite,
		maxRetries: DefaultMaxStockRetries,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequencer) Checkout(ctx context.Context, cart d.Cart) (*Result, error) {
	a := newAttempt(s.hook)

	if cart.IsEmpty() {
		a.fail()
		return nil, ErrEmptyCart
	}

	if err := a.advance(d.CheckoutStateAuthenticating); err != nil {
		return nil, err
	}
	who, err := s.currentIdentity(ctx)
	if err != nil {
		a.fail()
		return nil, &Error{Kind: ErrNotAuthenticated, Persistence: NothingPersisted, Cause: err}
	}

	if err := a.advance(d.CheckoutStateCreatingOrder); err != nil {
		return nil, err
	}
	total := cart.TotalAmount()
	order, err := s.createOrder(ctx, d.Order{
		UserID:      who.UserID,
		TotalAmount: total,
		Status:      d.OrderStatusCompleted,
	})
	if err != nil {
		a.fail()
		return nil, &Error{Kind: ErrOrderCreationFailed, Persistence: NothingPersisted, Cause: err}
	}

	log := s.log.With("order_id", order.ID.String(), "user_id", who.UserID)
	result := &Result{OrderID: order.ID, UserID: who.UserID, Total: total}
	progress := Progress{OrderID: order.ID}

	for _, cl := range cart.Lines {
		if err := a.advance(d.CheckoutStateProcessingLine); err != nil {
			return nil, err
		}

		line := d.OrderLine{
			OrderID:     order.ID,
			ProductID:   cl.ID,
			ProductName: cl.Name,
			Quantity:    cl.Quantity,
			UnitPrice:   cl.UnitPrice,
		}
		if err := s.insertLine(ctx, line); err != nil {
			a.fail()
			return nil, s.partial(ErrLineInsertFailed, cl.ID, progress, err)
		}
		progress.LinesInserted++
		result.Lines = append(result.Lines, line)

		oversell, stockErr := s.decrementStock(ctx, cl.ID, cl.Quantity)
		if stockErr != nil {
			a.fail()
			stockErr.Persistence = PartiallyPersisted
			stockErr.Progress = progress
			return nil, stockErr
		}
		progress.StockUpdated++
		if oversell != nil {
			log.WarnContext(ctx, "stock clamped at zero",
				"product_id", cl.ID, "requested", oversell.Requested, "available", oversell.Available)
			result.Oversold = append(result.Oversold, *oversell)
		}
	}

	if !result.Lines.Total().Equal(total) {
		log.WarnContext(ctx, "order total does not match its lines",
			"total_amount", total.String(), "lines_total", result.Lines.Total().String())
	}

	if err := a.advance(d.CheckoutStateCompleted); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "checkout completed", "lines", len(result.Lines), "oversold", len(result.Oversold))
	return result, nil
}

func (s *Sequencer) partial(kind error, productID string, progress Progress, cause error) *Error {
	return &Error{
		Kind:        kind,
		ProductID:   productID,
		Persistence: PartiallyPersisted,
		Progress:    progress,
		Cause:       cause,
	}
}

func (s *Sequencer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func (s *Sequencer) currentIdentity(ctx context.Context) (d.Identity, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.identity.CurrentIdentity(callCtx)
}

func (s *Sequencer) createOrder(ctx context.Context, order d.Order) (d.Order, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.store.CreateOrder(callCtx, order)
}

func (s *Sequencer) insertLine(ctx context.Context, line d.OrderLine) error {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.store.InsertOrderLine(callCtx, line)
}
