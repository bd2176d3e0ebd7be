package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testToken = "token-alice"

type testServer struct {
	handler  http.Handler
	repo     *repository.Repository
	sessions *cache.RedisCache
	metrics  *metrics.Metrics
}

// setupServer wires the real services over in-memory sqlite and miniredis.
func setupServer(t *testing.T) *testServer {
	creds := &repository.Credentials{
		Driver:            repository.DriverSQLite,
		SQLitePath:        ":memory:",
		MigrationsDirPath: "../repository/migrations",
	}
	repo, err := repository.NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))
	t.Cleanup(func() { repo.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	redisCache := cache.NewRedisCache(client)
	require.NoError(t, redisCache.SetSession(context.Background(), testToken,
		domain.Identity{UserID: "alice", Email: "alice@example.com"}, time.Hour))

	log := slog.Default()
	m := metrics.New()
	provider := identity.NewSessionProvider(redisCache)
	seq := checkout.NewSequencer(repo, provider, checkout.WithLogger(log))
	catalog := service.NewCatalog(repo, redisCache, log)
	storefront := service.NewStorefront(seq, publisher.Nop{}, m, catalog, log)

	handler := NewRouter(RouterConfig{
		Storefront:     storefront,
		Catalog:        catalog,
		Identity:       provider,
		Sessions:       redisCache,
		Instrument:     m.Middleware,
		Metrics:        m.Handler(),
		RequestTimeout: 5 * time.Second,
		Log:            log,
	})
	return &testServer{handler: handler, repo: repo, sessions: redisCache, metrics: m}
}

type requestOpts struct {
	session string
	token   string
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts requestOpts) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if opts.session != "" {
		req.Header.Set(SessionHeader, opts.session)
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// MockStorefront lets handler tests script checkout outcomes.
type MockStorefront struct {
	mu          sync.Mutex
	carts       map[string]*cart.Store
	Result      *checkout.Result
	Err         error
	Busy        bool
	Dropped     []string
	CheckoutCtx context.Context
}

func (m *MockStorefront) Cart(sessionID string) *cart.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.carts == nil {
		m.carts = make(map[string]*cart.Store)
	}
	c, ok := m.carts[sessionID]
	if !ok {
		c = cart.NewStore()
		m.carts[sessionID] = c
	}
	return c
}

func (m *MockStorefront) DropCart(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dropped = append(m.Dropped, sessionID)
	delete(m.carts, sessionID)
}

func (m *MockStorefront) Processing(string) bool {
	return m.Busy
}

func (m *MockStorefront) Checkout(ctx context.Context, _ string) (*checkout.Result, error) {
	m.CheckoutCtx = ctx
	return m.Result, m.Err
}

type MockProducts struct {
	product *domain.Product
	err     error
}

func (m MockProducts) GetProduct(context.Context, int64) (*domain.Product, error) {
	return m.product, m.err
}
