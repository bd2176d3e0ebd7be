package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type CatalogAdmin interface {
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	SetStock(ctx context.Context, id int64, stock int) (int, error)
	AdjustStock(ctx context.Context, id int64, delta int) (int, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListReconciliations(ctx context.Context) ([]domain.Reconciliation, error)
}

type AdminHandler struct {
	admin   CatalogAdmin
	timeout time.Duration
}

func NewAdminHandler(admin CatalogAdmin, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		admin:   admin,
		timeout: timeout,
	}
}

type ProductRequestDTO struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  *int64          `json:"category_id"`
	ImageRef    string          `json:"image_ref"`
}

func (d ProductRequestDTO) toDomain() domain.Product {
	return domain.Product{
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Stock:       d.Stock,
		CategoryID:  d.CategoryID,
		ImageRef:    d.ImageRef,
	}
}

// InventoryRequestDTO carries either an absolute stock level or a relative delta.
type InventoryRequestDTO struct {
	Stock *int `json:"stock"`
	Delta *int `json:"delta"`
}

type InventoryResponseDTO struct {
	ProductID int64 `json:"product_id"`
	Stock     int   `json:"stock"`
}

// POST /api/v1/admin/products
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	created, err := h.admin.CreateProduct(ctx, req.toDomain())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// PUT /api/v1/admin/products/{id}
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	var req ProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p := req.toDomain()
	p.ID = id
	if err := h.admin.UpdateProduct(ctx, p); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/v1/admin/products/{id}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	if err := h.admin.DeleteProduct(ctx, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/admin/inventory/{id}
func (h *AdminHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	var req InventoryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if (req.Stock == nil) == (req.Delta == nil) {
		respondError(w, http.StatusBadRequest, "invalid_request", "exactly one of stock or delta is required")
		return
	}

	var (
		stock int
		err   error
	)
	if req.Stock != nil {
		stock, err = h.admin.SetStock(ctx, id, *req.Stock)
	} else {
		stock, err = h.admin.AdjustStock(ctx, id, *req.Delta)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, InventoryResponseDTO{ProductID: id, Stock: stock})
}

// GET /api/v1/admin/orders
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.admin.ListOrders(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/admin/reconciliations
func (h *AdminHandler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	recs, err := h.admin.ListReconciliations(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}
