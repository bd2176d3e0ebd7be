package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxLineQuantity = 99

type Storefront interface {
	Cart(sessionID string) *cart.Store
	DropCart(sessionID string)
	Processing(sessionID string) bool
	Checkout(ctx context.Context, sessionID string) (*checkout.Result, error)
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type CartHandler struct {
	storefront Storefront
	products   ProductLookup
	timeout    time.Duration
}

func NewCartHandler(storefront Storefront, products ProductLookup, timeout time.Duration) *CartHandler {
	return &CartHandler{
		storefront: storefront,
		products:   products,
		timeout:    timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	// Quantity defaults to 1. Each unit is added as a separate increment.
	Quantity int `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	SessionID   string            `json:"session_id"`
	Lines       []domain.CartLine `json:"lines"`
	Open        bool              `json:"open"`
	TotalItems  int               `json:"total_items"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Processing  bool              `json:"processing"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, http.StatusOK)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	c := h.storefront.Cart(getSessionID(r.Context()))
	item := cart.Item{
		ID:        product.CartID(),
		Name:      product.Name,
		UnitPrice: product.Price,
		ImageRef:  product.ImageRef,
	}
	for i := 0; i < req.Quantity; i++ {
		c.AddItem(item)
	}

	h.respondCart(w, r, http.StatusCreated)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	// zero or less removes the line
	h.storefront.Cart(getSessionID(r.Context())).SetQuantity(productID, req.Quantity)
	h.respondCart(w, r, http.StatusOK)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	h.storefront.Cart(getSessionID(r.Context())).RemoveItem(productID)
	h.respondCart(w, r, http.StatusOK)
}

// POST /api/v1/cart/open
func (h *CartHandler) OpenCart(w http.ResponseWriter, r *http.Request) {
	h.storefront.Cart(getSessionID(r.Context())).OpenCart()
	h.respondCart(w, r, http.StatusOK)
}

// POST /api/v1/cart/close
func (h *CartHandler) CloseCart(w http.ResponseWriter, r *http.Request) {
	h.storefront.Cart(getSessionID(r.Context())).CloseCart()
	h.respondCart(w, r, http.StatusOK)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int) {
	sessionID := getSessionID(r.Context())
	snapshot := h.storefront.Cart(sessionID).Snapshot()

	respondJSON(w, status, CartResponseDTO{
		SessionID:   sessionID,
		Lines:       snapshot.Lines,
		Open:        snapshot.Open,
		TotalItems:  snapshot.TotalItemCount(),
		TotalAmount: snapshot.TotalAmount(),
		Processing:  h.storefront.Processing(sessionID),
	})
}

func productIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	productIDStr := chi.URLParam(r, "product_id")
	productID, err := strconv.ParseInt(productIDStr, 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return "", false
	}
	return strconv.FormatInt(productID, 10), true
}
