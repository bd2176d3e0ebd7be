package store

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is an in-process implementation of the checkout store. It keeps
// orders, order lines and stock levels in maps guarded by one RWMutex.
type MemoryStore struct {
	mu     sync.RWMutex
	stocks map[string]int                   // productID -> stock
	orders map[uuid.UUID]*domain.Order      // orderID -> order
	lines  map[uuid.UUID][]domain.OrderLine // orderID -> lines in insert order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stocks: make(map[string]int),
		orders: make(map[uuid.UUID]*domain.Order),
		lines:  make(map[uuid.UUID][]domain.OrderLine),
	}
}

func (s *MemoryStore) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	order.Lines = nil
	stored := order
	s.orders[order.ID] = &stored
	return order, nil
}

func (s *MemoryStore) InsertOrderLine(ctx context.Context, line domain.OrderLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[line.OrderID]; !exists {
		return ErrOrderNotFound
	}
	if _, exists := s.stocks[line.ProductID]; !exists {
		return ErrProductNotFound
	}
	s.lines[line.OrderID] = append(s.lines[line.OrderID], line)
	return nil
}

func (s *MemoryStore) GetStock(ctx context.Context, productID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stock, exists := s.stocks[productID]
	if !exists {
		return 0, ErrProductNotFound
	}
	return stock, nil
}

// SetStock overwrites the level, creating the product if it is unknown.
func (s *MemoryStore) SetStock(ctx context.Context, productID string, stock int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if stock < 0 {
		return ErrNegativeStock
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stocks[productID] = stock
	return nil
}

func (s *MemoryStore) CompareAndSetStock(ctx context.Context, productID string, expected, stock int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if stock < 0 {
		return false, ErrNegativeStock
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.stocks[productID]
	if !exists {
		return false, ErrProductNotFound
	}
	if current != expected {
		return false, nil
	}
	s.stocks[productID] = stock
	return true, nil
}

// DecrementStock subtracts quantity atomically, flooring at zero, and returns
// the new level.
func (s *MemoryStore) DecrementStock(ctx context.Context, productID string, quantity int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.stocks[productID]
	if !exists {
		return 0, ErrProductNotFound
	}
	next := current - quantity
	if next < 0 {
		next = 0
	}
	s.stocks[productID] = next
	return next, nil
}

// GetOrder returns a copy of the order with its lines.
func (s *MemoryStore) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, ErrOrderNotFound
	}
	out := *order
	out.Lines = append(domain.OrderLines(nil), s.lines[id]...)
	return &out, nil
}

// Orders returns every stored order with its lines, in no particular order.
func (s *MemoryStore) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.orders))
	for id, order := range s.orders {
		o := *order
		o.Lines = append(domain.OrderLines(nil), s.lines[id]...)
		out = append(out, o)
	}
	return out
}
