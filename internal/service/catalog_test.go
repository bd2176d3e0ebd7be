package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCatalog(t *testing.T, withCache bool) (*Catalog, *CountingRepository, *miniredis.Miniredis) {
	creds := &repository.Credentials{
		Driver:            repository.DriverSQLite,
		SQLitePath:        ":memory:",
		MigrationsDirPath: "../repository/migrations",
	}
	repo, err := repository.NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))
	t.Cleanup(func() { repo.Close() })

	counting := &CountingRepository{Repository: repo}
	if !withCache {
		return NewCatalog(counting, nil, slog.Default()), counting, nil
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCatalog(counting, cache.NewRedisCache(client), slog.Default()), counting, mr
}

func TestCatalog_ListProducts_ReadsThroughCache(t *testing.T) {
	catalog, repo, mr := setupCatalog(t, true)
	ctx := context.Background()

	first, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 5)
	assert.True(t, mr.Exists("catalog:products"))

	second, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 5)
	assert.Equal(t, 1, repo.ListCalls(), "second read is served from cache")
}

func TestCatalog_ListProducts_NoCache(t *testing.T) {
	catalog, repo, _ := setupCatalog(t, false)

	for i := 0; i < 2; i++ {
		_, err := catalog.ListProducts(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, repo.ListCalls())
}

func TestCatalog_ListProducts_CollapsesConcurrentMisses(t *testing.T) {
	catalog, repo, _ := setupCatalog(t, true)
	repo.gate = make(chan struct{})

	const callers = 10
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			products, err := catalog.ListProducts(context.Background())
			assert.NoError(t, err)
			assert.Len(t, products, 5)
		}()
	}
	started.Wait()
	assert.Eventually(t, func() bool { return repo.ListCalls() == 1 }, time.Second, time.Millisecond)
	close(repo.gate)
	wg.Wait()

	// latecomers either joined the flight or found the cache filled
	assert.Equal(t, 1, repo.ListCalls())
}

func TestCatalog_WritesInvalidateCache(t *testing.T) {
	catalog, repo, mr := setupCatalog(t, true)
	ctx := context.Background()

	_, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists("catalog:products"))

	created, err := catalog.CreateProduct(ctx, domain.Product{Name: "  Poster  ", Price: decimal.NewFromInt(8), Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, "Poster", created.Name)
	assert.False(t, mr.Exists("catalog:products"))

	products, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 6)
	assert.Equal(t, 2, repo.ListCalls())

	_, err = catalog.AdjustStock(ctx, created.ID, -1)
	require.NoError(t, err)
	assert.False(t, mr.Exists("catalog:products"))
}

func TestCatalog_ProductValidation(t *testing.T) {
	catalog, _, _ := setupCatalog(t, false)
	ctx := context.Background()

	_, err := catalog.CreateProduct(ctx, domain.Product{Name: " ", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = catalog.CreateProduct(ctx, domain.Product{Name: "x", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = catalog.CreateProduct(ctx, domain.Product{Name: "x", Price: decimal.NewFromInt(1), Stock: -2})
	assert.ErrorIs(t, err, ErrNegativeStock)

	err = catalog.UpdateProduct(ctx, domain.Product{ID: 999, Name: "x", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrProductNotFound)

	assert.ErrorIs(t, catalog.DeleteProduct(ctx, 999), ErrProductNotFound)
}

func TestCatalog_Stock(t *testing.T) {
	catalog, _, _ := setupCatalog(t, false)
	ctx := context.Background()

	stock, err := catalog.SetStock(ctx, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, stock)

	stock, err = catalog.AdjustStock(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)

	stock, err = catalog.AdjustStock(ctx, 1, -10)
	require.NoError(t, err)
	assert.Equal(t, 0, stock, "decrement floors at zero")

	stock, err = catalog.AdjustStock(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)

	_, err = catalog.SetStock(ctx, 1, -1)
	assert.ErrorIs(t, err, ErrNegativeStock)

	_, err = catalog.AdjustStock(ctx, 999, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalog_Orders(t *testing.T) {
	catalog, repo, _ := setupCatalog(t, false)
	ctx := context.Background()

	order, err := repo.CreateOrder(ctx, domain.Order{UserID: "alice", TotalAmount: decimal.NewFromInt(12), Status: domain.OrderStatusCompleted})
	require.NoError(t, err)
	_, err = repo.CreateOrder(ctx, domain.Order{UserID: "bob", TotalAmount: decimal.NewFromInt(5), Status: domain.OrderStatusCompleted})
	require.NoError(t, err)

	all, err := catalog.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := catalog.ListOrdersForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)

	got, err := catalog.GetOrderForUser(ctx, "alice", order.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)

	_, err = catalog.GetOrderForUser(ctx, "bob", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = catalog.GetOrder(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCatalog_ListReconciliations(t *testing.T) {
	catalog, repo, _ := setupCatalog(t, false)
	ctx := context.Background()

	recs, err := catalog.ListReconciliations(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	orderID := uuid.New()
	_, err = repo.CreateReconciliation(ctx, domain.Reconciliation{
		OrderID:   orderID,
		SessionID: "sess-r",
		Kind:      "line_insert_failed",
		FailedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	recs, err = catalog.ListReconciliations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, orderID, recs[0].OrderID)
	assert.Equal(t, "sess-r", recs[0].SessionID)
}
