package checkout

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition = errors.New("illegal transition of checkout state")
	// ErrStockConflict is the cause of a StockWriteFailed when a conditional
	// stock write kept losing to concurrent writers.
	ErrStockConflict = errors.New("stock changed concurrently")
)

// Error kinds. A *Error matches its kind with errors.Is.
var (
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrLineInsertFailed    = errors.New("order line insert failed")
	ErrStockReadFailed     = errors.New("stock read failed")
	ErrStockWriteFailed    = errors.New("stock write failed")
)

type Persistence int

const (
	NothingPersisted Persistence = iota
	PartiallyPersisted
)

func (p Persistence) String() string {
	if p == PartiallyPersisted {
		return "partially_persisted"
	}
	return "nothing_persisted"
}

// Progress is what a failed attempt had already written when it stopped.
type Progress struct {
	OrderID       uuid.UUID `json:"order_id,omitempty"`
	LinesInserted int       `json:"lines_inserted"`
	StockUpdated  int       `json:"stock_updated"`
}

// Error is a terminal checkout failure.
type Error struct {
	Kind        error
	ProductID   string
	Persistence Persistence
	Progress    Progress
	Cause       error
}

func (e *Error) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("%v for product %s: %v", e.Kind, e.ProductID, e.Cause)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// NeedsReconciliation is true when the order or some of its lines and stock
// writes were persisted before the failure.
func (e *Error) NeedsReconciliation() bool {
	return e.Persistence == PartiallyPersisted
}

// KindLabel names the failure kind of err for metrics and API responses.
func KindLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrOrderCreationFailed):
		return "order_creation_failed"
	case errors.Is(err, ErrLineInsertFailed):
		return "line_insert_failed"
	case errors.Is(err, ErrStockReadFailed):
		return "stock_read_failed"
	case errors.Is(err, ErrStockWriteFailed):
		return "stock_write_failed"
	default:
		return "internal_error"
	}
}
