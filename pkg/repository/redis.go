package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/basalto/pkg/config"
	"github.com/example/basalto/pkg/wompi"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisRepository) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// Light order summary keyed by order number. Primed after checkout, read by
// the payment success page, invalidated on every status write.
type OrderCache struct {
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	PaymentLink string `json:"payment_link"`
	Total       string `json:"total"`
}

func (r *RedisRepository) CacheOrder(ctx context.Context, order *OrderCache) error {
	key := fmt.Sprintf("order:%s", order.OrderNumber)
	return r.SetJSON(ctx, key, order, 30*time.Minute)
}

// GetOrderCache returns nil, nil on a miss.
func (r *RedisRepository) GetOrderCache(ctx context.Context, orderNumber string) (*OrderCache, error) {
	key := fmt.Sprintf("order:%s", orderNumber)
	var order OrderCache
	err := r.GetJSON(ctx, key, &order)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *RedisRepository) InvalidateOrder(ctx context.Context, orderNumber string) error {
	return r.Del(ctx, fmt.Sprintf("order:%s", orderNumber))
}

const wompiTokenKey = "wompi:token"

// TokenCache is the Redis-backed wompi.TokenCache, shared across instances
// so one token grant serves the whole deployment.
type TokenCache struct {
	repo *RedisRepository
}

func (r *RedisRepository) TokenCache() *TokenCache {
	return &TokenCache{repo: r}
}

func (c *TokenCache) Get(ctx context.Context) (*wompi.Token, error) {
	var tok wompi.Token
	err := c.repo.GetJSON(ctx, wompiTokenKey, &tok)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (c *TokenCache) Put(ctx context.Context, tok *wompi.Token) error {
	ttl := time.Until(tok.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return c.repo.SetJSON(ctx, wompiTokenKey, tok, ttl)
}
