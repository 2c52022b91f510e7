package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grabber-app/cart/internal/storage/kv"
)

const (
	getCartSQL = `SELECT state FROM carts WHERE key = $1`

	setCartSQL = `INSERT INTO carts (key, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`

	removeCartSQL = `DELETE FROM carts WHERE key = $1`
)

var _ kv.Store = (*CartStore)(nil)

// CartStore persists serialized cart state, one row per cart key.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Get returns the serialized cart state for key.
// Returns kv.ErrNotFound when no cart has been saved under the key.
func (s *CartStore) Get(ctx context.Context, key string) ([]byte, error) {
	var state []byte
	err := s.pool.QueryRow(ctx, getCartSQL, key).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", key, err)
	}
	return state, nil
}

// Set upserts the serialized cart state for key.
func (s *CartStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, setCartSQL, key, value)
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", key, err)
	}
	return nil
}

// Remove deletes the cart row for key. Removing an absent key is not an error.
func (s *CartStore) Remove(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, removeCartSQL, key)
	if err != nil {
		return fmt.Errorf("removing cart %q: %w", key, err)
	}
	return nil
}
