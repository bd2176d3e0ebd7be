package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const productsKey = "catalog:products"

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) GetProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := r.getJSON(ctx, productsKey, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r RedisCache) SetProducts(ctx context.Context, products []domain.Product) error {
	// jitter spreads expiry of instances that filled the cache together
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	return r.setJSON(ctx, productsKey, products, r.baseTTL+jitter)
}

func (r RedisCache) InvalidateProducts(ctx context.Context) error {
	if err := r.client.Del(ctx, productsKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r RedisCache) GetSession(ctx context.Context, token string) (*domain.Identity, error) {
	var identity domain.Identity
	if err := r.getJSON(ctx, sessionKey(token), &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r RedisCache) SetSession(ctx context.Context, token string, identity domain.Identity, ttl time.Duration) error {
	return r.setJSON(ctx, sessionKey(token), identity, ttl)
}

func (r RedisCache) DeleteSession(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r RedisCache) getJSON(ctx context.Context, key string, dst any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (r RedisCache) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}

	if err := r.client.Set(ctx, key, string(data), ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}
