package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/google/uuid"
)

type CheckoutHandler struct {
	storefront Storefront
	timeout    time.Duration
}

func NewCheckoutHandler(storefront Storefront, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		storefront: storefront,
		timeout:    timeout,
	}
}

// CheckoutErrorDTO reports a failed checkout. Progress is set only when some
// rows were written before the failure.
type CheckoutErrorDTO struct {
	ErrorResponse
	NeedsReconciliation bool         `json:"needs_reconciliation"`
	ProductID           string       `json:"product_id,omitempty"`
	Progress            *ProgressDTO `json:"progress,omitempty"`
}

type ProgressDTO struct {
	OrderID       uuid.UUID `json:"order_id"`
	LinesInserted int       `json:"lines_inserted"`
	StockUpdated  int       `json:"stock_updated"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.storefront.Checkout(ctx, getSessionID(r.Context()))
	if err != nil {
		respondCheckoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, res)
}

func respondCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
		return
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, checkout.KindLabel(err), err.Error())
		return
	case errors.Is(err, checkout.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, checkout.KindLabel(err), err.Error())
		return
	}

	dto := CheckoutErrorDTO{
		ErrorResponse: ErrorResponse{Error: err.Error(), Code: checkout.KindLabel(err)},
	}

	var failure *checkout.Error
	if errors.As(err, &failure) {
		dto.ProductID = failure.ProductID
		if failure.NeedsReconciliation() {
			dto.NeedsReconciliation = true
			dto.Progress = &ProgressDTO{
				OrderID:       failure.Progress.OrderID,
				LinesInserted: failure.Progress.LinesInserted,
				StockUpdated:  failure.Progress.StockUpdated,
			}
		}
	}
	respondJSON(w, http.StatusBadGateway, dto)
}
