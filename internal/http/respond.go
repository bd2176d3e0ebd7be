package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps domain and service errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		httpStatus int
		code       string
	)

	switch {
	case errors.Is(err, identity.ErrNotAuthenticated), errors.Is(err, checkout.ErrNotAuthenticated):
		httpStatus, code = http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrOrderNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidProduct), errors.Is(err, service.ErrNegativeStock):
		httpStatus, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, service.ErrCategoryNotFound):
		httpStatus, code = http.StatusBadRequest, "invalid_category"
	case errors.Is(err, service.ErrDuplicate):
		httpStatus, code = http.StatusConflict, "already_exists"
	case errors.Is(err, circuitbreaker.ErrOpen):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		slog.ErrorContext(r.Context(), "unhandled service error", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
