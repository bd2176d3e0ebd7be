package checkout_test

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/store"
)

// MockIdentity implements checkout.IdentityProvider for testing
type MockIdentity struct {
	Identity domain.Identity
	Err      error
}

func (m MockIdentity) CurrentIdentity(_ context.Context) (domain.Identity, error) {
	return m.Identity, m.Err
}

// ScriptedStore wraps a MemoryStore and fails selected calls.
type ScriptedStore struct {
	*store.MemoryStore

	CreateOrderErr error
	// Per product id failures.
	InsertLineErr map[string]error
	GetStockErr   map[string]error
	WriteStockErr map[string]error
	// AlwaysConflict makes every conditional write lose.
	AlwaysConflict bool

	mu    sync.Mutex
	Calls []string
}

func NewScriptedStore() *ScriptedStore {
	return &ScriptedStore{
		MemoryStore:   store.NewMemoryStore(),
		InsertLineErr: map[string]error{},
		GetStockErr:   map[string]error{},
		WriteStockErr: map[string]error{},
	}
}

// Seed sets stock without recording a call.
func (s *ScriptedStore) Seed(productID string, stock int) {
	_ = s.MemoryStore.SetStock(context.Background(), productID, stock)
}

func (s *ScriptedStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, call)
}

func (s *ScriptedStore) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	s.record("create_order")
	if s.CreateOrderErr != nil {
		return domain.Order{}, s.CreateOrderErr
	}
	return s.MemoryStore.CreateOrder(ctx, order)
}

func (s *ScriptedStore) InsertOrderLine(ctx context.Context, line domain.OrderLine) error {
	s.record("insert_line:" + line.ProductID)
	if err := s.InsertLineErr[line.ProductID]; err != nil {
		return err
	}
	return s.MemoryStore.InsertOrderLine(ctx, line)
}

func (s *ScriptedStore) GetStock(ctx context.Context, productID string) (int, error) {
	s.record("get_stock:" + productID)
	if err := s.GetStockErr[productID]; err != nil {
		return 0, err
	}
	return s.MemoryStore.GetStock(ctx, productID)
}

func (s *ScriptedStore) SetStock(ctx context.Context, productID string, stock int) error {
	s.record("set_stock:" + productID)
	if err := s.WriteStockErr[productID]; err != nil {
		return err
	}
	return s.MemoryStore.SetStock(ctx, productID, stock)
}

func (s *ScriptedStore) CompareAndSetStock(ctx context.Context, productID string, expected, stock int) (bool, error) {
	s.record("cas_stock:" + productID)
	if err := s.WriteStockErr[productID]; err != nil {
		return false, err
	}
	if s.AlwaysConflict {
		return false, nil
	}
	return s.MemoryStore.CompareAndSetStock(ctx, productID, expected, stock)
}

// BarrierStore holds the first Parties stock reads until all of them have
// read, so concurrent checkouts observe the same stock level.
type BarrierStore struct {
	*store.MemoryStore

	Parties int
	mu      sync.Mutex
	reads   int
	release chan struct{}
}

func NewBarrierStore(parties int) *BarrierStore {
	return &BarrierStore{
		MemoryStore: store.NewMemoryStore(),
		Parties:     parties,
		release:     make(chan struct{}),
	}
}

func (b *BarrierStore) GetStock(ctx context.Context, productID string) (int, error) {
	stock, err := b.MemoryStore.GetStock(ctx, productID)

	b.mu.Lock()
	b.reads++
	held := b.reads <= b.Parties
	if b.reads == b.Parties {
		close(b.release)
	}
	b.mu.Unlock()

	if held {
		select {
		case <-b.release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return stock, err
}

// BlockingStore never answers CreateOrder until the context ends.
type BlockingStore struct {
	*store.MemoryStore
}

func (b BlockingStore) CreateOrder(ctx context.Context, _ domain.Order) (domain.Order, error) {
	<-ctx.Done()
	return domain.Order{}, ctx.Err()
}

var errRemote = errors.New("remote rejected the request")
