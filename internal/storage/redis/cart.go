// Package redis provides a Redis-backed cart store for deployments that keep
// session state in a shared cache rather than PostgreSQL.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/grabber-app/cart/internal/storage/kv"
)

var _ kv.Store = (*CartStore)(nil)

// CartStore persists serialized cart state in Redis.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStore returns a CartStore using the given client. A zero ttl keeps
// carts until explicitly removed.
func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

// Get returns the serialized cart state for key.
// Returns kv.ErrNotFound when no cart has been saved under the key.
func (s *CartStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", key, err)
	}
	return data, nil
}

// Set stores the serialized cart state for key, refreshing the TTL.
func (s *CartStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving cart %q: %w", key, err)
	}
	return nil
}

// Remove deletes the cart entry for key. Removing an absent key is not an error.
func (s *CartStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("removing cart %q: %w", key, err)
	}
	return nil
}
