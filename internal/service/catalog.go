package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type CatalogRepository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]domain.Category, error)

	GetStock(ctx context.Context, productID string) (int, error)
	SetStock(ctx context.Context, productID string, stock int) error
	DecrementStock(ctx context.Context, productID string, quantity int) (int, error)
	IncrementStock(ctx context.Context, productID string, quantity int) (int, error)

	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	ListReconciliations(ctx context.Context) ([]domain.Reconciliation, error)
}

// Catalog serves products, categories and order history, and carries the
// admin writes. The product listing is read through the cache when one is
// configured.
type Catalog struct {
	repo  CatalogRepository
	cache cache.ProductCache
	sfg   singleflight.Group // collapses concurrent cache misses
	log   *slog.Logger
}

// NewCatalog builds the catalog service. productCache may be nil.
func NewCatalog(repo CatalogRepository, productCache cache.ProductCache, log *slog.Logger) *Catalog {
	return &Catalog{repo: repo, cache: productCache, log: log}
}

func (s *Catalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	v, err, _ := s.sfg.Do("products", func() (interface{}, error) {
		if s.cache != nil {
			products, err := s.cache.GetProducts(ctx)
			if err == nil {
				return products, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				s.log.WarnContext(ctx, "cache get error", "error", err)
			}
		}

		products, err := s.repo.ListProducts(ctx)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if errSet := s.cache.SetProducts(ctx, products); errSet != nil {
				s.log.WarnContext(ctx, "cache set error", "error", errSet)
			}
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (s *Catalog) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Catalog) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Catalog) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	if p.Stock < 0 {
		return nil, ErrNegativeStock
	}

	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return nil, err
	}
	s.InvalidateProducts(ctx)
	return created, nil
}

func (s *Catalog) UpdateProduct(ctx context.Context, p domain.Product) error {
	if err := validateProduct(&p); err != nil {
		return err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return err
	}
	s.InvalidateProducts(ctx)
	return nil
}

func (s *Catalog) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.InvalidateProducts(ctx)
	return nil
}

// SetStock overwrites a product's stock level.
func (s *Catalog) SetStock(ctx context.Context, id int64, stock int) (int, error) {
	if stock < 0 {
		return 0, ErrNegativeStock
	}
	if err := s.repo.SetStock(ctx, productKey(id), stock); err != nil {
		return 0, err
	}
	s.InvalidateProducts(ctx)
	return stock, nil
}

// AdjustStock moves a product's stock by delta and returns the new level.
// Decrements floor at zero.
func (s *Catalog) AdjustStock(ctx context.Context, id int64, delta int) (int, error) {
	var (
		stock int
		err   error
	)
	switch {
	case delta > 0:
		stock, err = s.repo.IncrementStock(ctx, productKey(id), delta)
	case delta < 0:
		stock, err = s.repo.DecrementStock(ctx, productKey(id), -delta)
	default:
		return s.repo.GetStock(ctx, productKey(id))
	}
	if err != nil {
		return 0, err
	}
	s.InvalidateProducts(ctx)
	return stock, nil
}

func (s *Catalog) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx)
}

func (s *Catalog) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.repo.ListOrdersByUserID(ctx, userID)
}

func (s *Catalog) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// GetOrderForUser hides orders that belong to someone else behind
// ErrOrderNotFound.
func (s *Catalog) GetOrderForUser(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListReconciliations returns the partially persisted checkouts recorded
// from the event stream.
func (s *Catalog) ListReconciliations(ctx context.Context) ([]domain.Reconciliation, error) {
	return s.repo.ListReconciliations(ctx)
}

func (s *Catalog) InvalidateProducts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.InvalidateProducts(ctx); err != nil {
		s.log.WarnContext(ctx, "cache invalidate error", "error", err)
	}
}

func validateProduct(p *domain.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || p.Price.IsNegative() {
		return ErrInvalidProduct
	}
	return nil
}

func productKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
