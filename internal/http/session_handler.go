package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/identity"
)

type SessionRevoker interface {
	DeleteSession(ctx context.Context, token string) error
}

type SessionHandler struct {
	storefront Storefront
	sessions   SessionRevoker
	timeout    time.Duration
}

// NewSessionHandler builds the sign-out handler. sessions may be nil when
// identities are not backed by stored sessions.
func NewSessionHandler(storefront Storefront, sessions SessionRevoker, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		storefront: storefront,
		sessions:   sessions,
		timeout:    timeout,
	}
}

// DELETE /api/v1/session signs out: the stored session is revoked and the
// browsing session's cart is discarded.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if token, ok := identity.TokenFromContext(r.Context()); ok && h.sessions != nil {
		if err := h.sessions.DeleteSession(ctx, token); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	h.storefront.DropCart(getSessionID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
