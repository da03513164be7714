package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artmarket-wallet/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// OrderStatusCache implements ports.OrderStatusCache using Redis.
// Only terminal statuses are ever written.
type OrderStatusCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewOrderStatusCache creates a new Redis-backed order status cache.
func NewOrderStatusCache(client goredis.UniversalClient) *OrderStatusCache {
	return &OrderStatusCache{
		client: client,
		prefix: "order_status:",
	}
}

// Get returns the cached terminal status of an order.
// The boolean is false when nothing is cached.
func (c *OrderStatusCache) Get(ctx context.Context, code domain.OrderCode) (domain.PaymentStatus, bool, error) {
	val, err := c.client.Get(ctx, c.key(code)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis order status get: %w", err)
	}
	return domain.PaymentStatus(val), true, nil
}

// Set caches a terminal status. Non-terminal statuses are ignored.
func (c *OrderStatusCache) Set(ctx context.Context, code domain.OrderCode, status domain.PaymentStatus, ttl time.Duration) error {
	if !status.IsTerminal() {
		return nil
	}
	if err := c.client.Set(ctx, c.key(code), string(status), ttl).Err(); err != nil {
		return fmt.Errorf("redis order status set: %w", err)
	}
	return nil
}

func (c *OrderStatusCache) key(code domain.OrderCode) string {
	return c.prefix + code.String()
}
