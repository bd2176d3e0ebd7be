package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSessions struct {
	identity *domain.Identity
	err      error
}

func (m MockSessions) GetSession(_ context.Context, _ string) (*domain.Identity, error) {
	return m.identity, m.err
}

func TestSessionProvider(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		sessions MockSessions
		wantID   string
		wantErr  error
	}{
		{
			name:     "no token",
			ctx:      context.Background(),
			sessions: MockSessions{identity: &domain.Identity{UserID: "u1"}},
			wantErr:  ErrNotAuthenticated,
		},
		{
			name:     "empty token",
			ctx:      WithToken(context.Background(), ""),
			sessions: MockSessions{identity: &domain.Identity{UserID: "u1"}},
			wantErr:  ErrNotAuthenticated,
		},
		{
			name:     "unknown session",
			ctx:      WithToken(context.Background(), "tok"),
			sessions: MockSessions{err: cache.ErrCacheMiss},
			wantErr:  ErrNotAuthenticated,
		},
		{
			name:     "blob without user id",
			ctx:      WithToken(context.Background(), "tok"),
			sessions: MockSessions{identity: &domain.Identity{Email: "x@example.com"}},
			wantErr:  ErrNotAuthenticated,
		},
		{
			name:     "resolved",
			ctx:      WithToken(context.Background(), "tok"),
			sessions: MockSessions{identity: &domain.Identity{UserID: "u1"}},
			wantID:   "u1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSessionProvider(tt.sessions).CurrentIdentity(tt.ctx)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.UserID)
		})
	}
}

func TestSessionProvider_BackendError(t *testing.T) {
	down := errors.New("redis down")
	p := NewSessionProvider(MockSessions{err: down})

	_, err := p.CurrentIdentity(WithToken(context.Background(), "tok"))

	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrNotAuthenticated)
}

func TestSessionProvider_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sessions := cache.NewRedisCache(client)

	ctx := context.Background()
	require.NoError(t, sessions.SetSession(ctx, "tok-9", domain.Identity{UserID: "user-9"}, time.Hour))

	got, err := NewSessionProvider(sessions).CurrentIdentity(WithToken(ctx, "tok-9"))
	require.NoError(t, err)
	assert.Equal(t, "user-9", got.UserID)
}

func TestStaticProvider(t *testing.T) {
	_, err := StaticProvider{}.CurrentIdentity(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	got, err := StaticProvider{Identity: domain.Identity{UserID: "dev"}}.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev", got.UserID)
}
