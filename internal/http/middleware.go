package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/identity"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const SessionHeader = "X-Session-ID"

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	identityKey
)

// RequestIDMiddleware echoes the request id chi assigned back to the caller.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestID := middleware.GetReqID(r.Context()); requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}
		next.ServeHTTP(w, r)
	})
}

// SessionMiddleware attaches the browsing session that owns the cart. A new
// session id is minted when the caller has none.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		w.Header().Set(SessionHeader, sessionID)

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerTokenMiddleware carries the Authorization bearer token in the request
// context for the identity provider to resolve later.
func BearerTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			r = r.WithContext(identity.WithToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentity rejects requests without a resolvable identity.
func RequireIdentity(provider checkout.IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := provider.CurrentIdentity(r.Context())
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, who)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}

func getSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

func getIdentity(ctx context.Context) (domain.Identity, bool) {
	who, ok := ctx.Value(identityKey).(domain.Identity)
	return who, ok
}
