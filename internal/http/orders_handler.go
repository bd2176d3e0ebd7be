package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrderHistory interface {
	ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrderForUser(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderHistory
	timeout time.Duration
}

func NewOrdersHandler(orders OrderHistory, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	who, ok := getIdentity(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrdersForUser(ctx, who.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	who, ok := getIdentity(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "missing user authentication")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.orders.GetOrderForUser(ctx, who.UserID, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
