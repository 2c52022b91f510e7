package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grabber-app/cart/internal/domain/product"
)

func TestLoad(t *testing.T) {
	repo, err := Load()
	require.NoError(t, err)

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 11)

	// Declared order is preserved.
	assert.Equal(t, "Banana", products[0].Name)
	assert.True(t, decimal.RequireFromString("3.99").Equal(products[0].Price))
	assert.Equal(t, "Fruits", products[0].Category)
	assert.True(t, products[0].InStock)
	assert.NotEmpty(t, products[0].Image.Thumbnail)
}

func TestMemory_GetByID(t *testing.T) {
	repo, err := Load()
	require.NoError(t, err)

	p, err := repo.GetByID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Banana", p.Name)

	_, err = repo.GetByID(context.Background(), "999")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestMemory_GetByIDs(t *testing.T) {
	repo, err := Load()
	require.NoError(t, err)

	// Unknown IDs are skipped rather than failing the batch.
	got, err := repo.GetByIDs(context.Background(), []string{"1", "999", "6"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Banana", got[0].Name)
	assert.Equal(t, "Milk", got[1].Name)
}

func TestMemory_ListReturnsCopy(t *testing.T) {
	repo, err := Load()
	require.NoError(t, err)

	first, err := repo.List(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Banana", second[0].Name)
}
