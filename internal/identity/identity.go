package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

var ErrNotAuthenticated = errors.New("no authenticated identity")

type tokenKey struct{}

// WithToken stores the caller's session token in ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

type SessionReader interface {
	GetSession(ctx context.Context, token string) (*domain.Identity, error)
}

// SessionProvider resolves the identity from the session blob the auth
// backend stored under the caller's token.
type SessionProvider struct {
	sessions SessionReader
}

func NewSessionProvider(sessions SessionReader) *SessionProvider {
	return &SessionProvider{sessions: sessions}
}

func (p *SessionProvider) CurrentIdentity(ctx context.Context) (domain.Identity, error) {
	token, ok := TokenFromContext(ctx)
	if !ok {
		return domain.Identity{}, ErrNotAuthenticated
	}

	identity, err := p.sessions.GetSession(ctx, token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return domain.Identity{}, ErrNotAuthenticated
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("read session: %w", err)
	}
	if identity.UserID == "" {
		return domain.Identity{}, ErrNotAuthenticated
	}
	return *identity, nil
}

// StaticProvider always answers with the same identity. A zero identity
// means nobody is signed in.
type StaticProvider struct {
	Identity domain.Identity
}

func (p StaticProvider) CurrentIdentity(_ context.Context) (domain.Identity, error) {
	if p.Identity.UserID == "" {
		return domain.Identity{}, ErrNotAuthenticated
	}
	return p.Identity, nil
}
