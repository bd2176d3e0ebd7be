package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// ProductCache holds the catalog listing.
type ProductCache interface {
	GetProducts(ctx context.Context) ([]domain.Product, error)
	SetProducts(ctx context.Context, products []domain.Product) error
	InvalidateProducts(ctx context.Context) error
}

// SessionCache holds session blobs written by the auth backend, keyed by token.
type SessionCache interface {
	GetSession(ctx context.Context, token string) (*domain.Identity, error)
	SetSession(ctx context.Context, token string, identity domain.Identity, ttl time.Duration) error
	DeleteSession(ctx context.Context, token string) error
}

var ErrCacheMiss = errors.New("cache miss")
