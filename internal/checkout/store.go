package checkout

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Store is the remote data service checkout writes to.
type Store interface {
	// CreateOrder persists the order and returns it with its generated ID.
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)

	InsertOrderLine(ctx context.Context, line domain.OrderLine) error

	GetStock(ctx context.Context, productID string) (int, error)

	// SetStock overwrites the stock level unconditionally.
	SetStock(ctx context.Context, productID string, stock int) error

	// CompareAndSetStock writes stock only if the current level still equals
	// expected. It returns false without error when the level has moved on.
	CompareAndSetStock(ctx context.Context, productID string, expected, stock int) (bool, error)
}

// IdentityProvider resolves the user on whose behalf checkout runs.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (domain.Identity, error)
}
