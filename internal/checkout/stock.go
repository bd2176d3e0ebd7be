package checkout

import (
	"context"
	"fmt"
)

// StockPolicy selects how a line's stock decrement is written back.
type StockPolicy string

const (
	// ReadThenWrite reads the level and overwrites it. Two checkouts of the
	// same product can both read the same level and one decrement is lost.
	ReadThenWrite StockPolicy = "read-then-write"
	// ConditionalWrite only writes if the level is unchanged since the read,
	// re-reading and retrying on conflict.
	ConditionalWrite StockPolicy = "conditional"
)

func ParseStockPolicy(s string) (StockPolicy, error) {
	switch StockPolicy(s) {
	case ReadThenWrite, ConditionalWrite:
		return StockPolicy(s), nil
	case "":
		return ConditionalWrite, nil
	default:
		return "", fmt.Errorf("unknown stock policy %q", s)
	}
}

// clampStock never lets stock go below zero.
func clampStock(current, quantity int) int {
	if quantity >= current {
		return 0
	}
	return current - quantity
}

// decrementStock reads, clamps and writes one line's stock. The returned
// error carries the kind and cause; the caller fills in persistence.
func (s *Sequencer) decrementStock(ctx context.Context, productID string, quantity int) (*Oversell, *Error) {
	attempts := 1
	if s.policy == ConditionalWrite {
		attempts += s.maxRetries
	}

	for i := 0; i < attempts; i++ {
		current, err := s.readStock(ctx, productID)
		if err != nil {
			return nil, &Error{Kind: ErrStockReadFailed, ProductID: productID, Cause: err}
		}
		next := clampStock(current, quantity)

		written, err := s.writeStock(ctx, productID, current, next)
		if err != nil {
			return nil, &Error{Kind: ErrStockWriteFailed, ProductID: productID, Cause: err}
		}
		if !written {
			s.log.DebugContext(ctx, "stock write conflict, retrying", "product_id", productID, "attempt", i+1)
			continue
		}

		if quantity > current {
			return &Oversell{ProductID: productID, Requested: quantity, Available: current}, nil
		}
		return nil, nil
	}

	return nil, &Error{
		Kind:      ErrStockWriteFailed,
		ProductID: productID,
		Cause:     fmt.Errorf("%w after %d attempts", ErrStockConflict, attempts),
	}
}

func (s *Sequencer) readStock(ctx context.Context, productID string) (int, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.store.GetStock(callCtx, productID)
}

func (s *Sequencer) writeStock(ctx context.Context, productID string, expected, next int) (bool, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	if s.policy == ReadThenWrite {
		if err := s.store.SetStock(callCtx, productID, next); err != nil {
			return false, err
		}
		return true, nil
	}
	return s.store.CompareAndSetStock(callCtx, productID, expected, next)
}
