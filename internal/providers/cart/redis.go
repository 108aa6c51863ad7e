package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionOrderTTL = 24 * time.Hour

// RedisStore keeps cart and shopping-session state in redis, keyed by order.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Clear(ctx context.Context, orderID int64) error {
	return s.client.Del(ctx, cartKey(orderID)).Err()
}

func (s *RedisStore) RecordOrder(ctx context.Context, orderID int64) error {
	return s.client.Set(ctx, sessionOrderKey(orderID), orderID, sessionOrderTTL).Err()
}

func cartKey(orderID int64) string {
	return fmt.Sprintf("cart:%d", orderID)
}

func sessionOrderKey(orderID int64) string {
	return fmt.Sprintf("session:order:%d", orderID)
}
