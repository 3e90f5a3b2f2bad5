// internal/domain/cart/redis_repository.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository holds guest carts as JSON blobs with a sliding TTL. Guest
// carts are single-device, so a read-compare-write version check is enough;
// the postgres repository carries the cross-device CAS.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepository creates a guest cart repository
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func (r *RedisRepository) key(owner Owner) string {
	return fmt.Sprintf("cart:session:%s", owner.ID)
}

// Fetch returns the stored cart, or an empty one when the key is absent
func (r *RedisRepository) Fetch(ctx context.Context, owner Owner) (*Cart, error) {
	data, err := r.client.Get(ctx, r.key(owner)).Result()
	if errors.Is(err, redis.Nil) {
		return NewCart(owner), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guest cart: %w", err)
	}

	var c Cart
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to decode guest cart: %w", err)
	}
	return &c, nil
}

// Replace stores the cart when its version matches the stored copy
func (r *RedisRepository) Replace(ctx context.Context, c *Cart) error {
	stored, err := r.Fetch(ctx, c.Owner)
	if err != nil {
		return err
	}
	if stored.Version != c.Version {
		return ErrConflict
	}

	next := c.Clone()
	next.Version = c.Version + 1

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode guest cart: %w", err)
	}
	if err := r.client.Set(ctx, r.key(c.Owner), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store guest cart: %w", err)
	}

	c.Version = next.Version
	return nil
}

// Delete removes the stored cart
func (r *RedisRepository) Delete(ctx context.Context, owner Owner) error {
	return r.client.Del(ctx, r.key(owner)).Err()
}
