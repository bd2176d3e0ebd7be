package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_ErrorMapping(t *testing.T) {
	orderID := uuid.New()
	tests := []struct {
		name          string
		err           error
		wantCode      int
		wantErrCode   string
		wantReconcile bool
	}{
		{name: "in progress", err: service.ErrCheckoutInProgress, wantCode: http.StatusConflict, wantErrCode: "checkout_in_progress"},
		{name: "empty cart", err: checkout.ErrEmptyCart, wantCode: http.StatusBadRequest, wantErrCode: "empty_cart"},
		{
			name:        "not authenticated",
			err:         &checkout.Error{Kind: checkout.ErrNotAuthenticated, Persistence: checkout.NothingPersisted},
			wantCode:    http.StatusUnauthorized,
			wantErrCode: "not_authenticated",
		},
		{
			name:        "order creation failed",
			err:         &checkout.Error{Kind: checkout.ErrOrderCreationFailed, Persistence: checkout.NothingPersisted, Cause: errors.New("down")},
			wantCode:    http.StatusBadGateway,
			wantErrCode: "order_creation_failed",
		},
		{
			name: "partially persisted",
			err: &checkout.Error{
				Kind:        checkout.ErrLineInsertFailed,
				ProductID:   "4",
				Persistence: checkout.PartiallyPersisted,
				Progress:    checkout.Progress{OrderID: orderID, LinesInserted: 1, StockUpdated: 1},
				Cause:       errors.New("down"),
			},
			wantCode:      http.StatusBadGateway,
			wantErrCode:   "line_insert_failed",
			wantReconcile: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCheckoutHandler(&MockStorefront{Err: tt.err}, 5*time.Second)

			recorder := httptest.NewRecorder()
			handler.Checkout(recorder, withSession(httptest.NewRequest("POST", "/checkout", nil), "s"))

			assert.Equal(t, tt.wantCode, recorder.Code)
			response := decodeJSON[CheckoutErrorDTO](t, recorder)
			assert.Equal(t, tt.wantErrCode, response.Code)
			assert.Equal(t, tt.wantReconcile, response.NeedsReconciliation)
			if tt.wantReconcile {
				require.NotNil(t, response.Progress)
				assert.Equal(t, orderID, response.Progress.OrderID)
				assert.Equal(t, 1, response.Progress.LinesInserted)
				assert.Equal(t, "4", response.ProductID)
			}
		})
	}
}

func TestCheckout_AppliesTimeout(t *testing.T) {
	storefront := &MockStorefront{Result: &checkout.Result{OrderID: uuid.New()}}
	handler := NewCheckoutHandler(storefront, 2*time.Second)

	recorder := httptest.NewRecorder()
	handler.Checkout(recorder, withSession(httptest.NewRequest("POST", "/checkout", nil), "s"))

	require.Equal(t, http.StatusCreated, recorder.Code)
	deadline, ok := storefront.CheckoutCtx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}

func TestCheckoutRoute_EndToEnd(t *testing.T) {
	srv := setupServer(t)
	session := requestOpts{session: "sess-e2e"}

	rec := srv.do(t, http.MethodPost, "/api/v1/checkout", nil, session)
	require.Equal(t, http.StatusBadRequest, rec.Code, "empty cart")

	rec = srv.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 4, Quantity: 10}, session)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/checkout", nil, session)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "no bearer token")

	authed := requestOpts{session: "sess-e2e", token: testToken}
	rec = srv.do(t, http.MethodPost, "/api/v1/checkout", nil, authed)
	require.Equal(t, http.StatusCreated, rec.Code)

	res := decodeJSON[checkout.Result](t, rec)
	assert.Equal(t, "alice", res.UserID)
	assert.True(t, res.Total.Equal(decimal.RequireFromString("167.50")))
	require.Len(t, res.Oversold, 1, "only 8 desk plants were in stock")
	assert.Equal(t, checkout.Oversell{ProductID: "4", Requested: 10, Available: 8}, res.Oversold[0])

	rec = srv.do(t, http.MethodGet, "/api/v1/cart", nil, authed)
	body := decodeJSON[CartResponseDTO](t, rec)
	assert.Zero(t, body.TotalItems, "cart cleared after checkout")
	assert.False(t, body.Open)

	rec = srv.do(t, http.MethodGet, "/api/v1/products/4", nil, authed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeJSON[domain.Product](t, rec).Stock)

	rec = srv.do(t, http.MethodGet, "/api/v1/orders/"+res.OrderID.String(), nil, authed)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decodeJSON[domain.Order](t, rec)
	assert.Len(t, order.Lines, 1)
	assert.True(t, order.Lines.Total().Equal(order.TotalAmount))

	rec = srv.do(t, http.MethodGet, "/metrics", nil, requestOpts{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_checkouts_total{outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `storefront_checkouts_total{outcome="empty_cart"} 1`)
	assert.Contains(t, rec.Body.String(), "storefront_oversold_lines_total 1")
}
