// Package catalog serves the embedded grocery catalog through an in-memory
// product repository. It stands in for the remote catalog service the cart
// engine treats as an external collaborator.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/grabber-app/cart/internal/domain/product"
)

//go:embed products.json
var productsJSON []byte

type productRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Unit        string          `json:"unit"`
	InStock     bool            `json:"inStock"`
	Image       struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
}

var _ product.Repository = (*Memory)(nil)

// Memory is an in-memory product.Repository over a fixed product list.
type Memory struct {
	products []product.Product
	byID     map[string]product.Product
}

// Load builds a Memory repository from the embedded catalog data.
func Load() (*Memory, error) {
	var records []productRecord
	if err := json.Unmarshal(productsJSON, &records); err != nil {
		return nil, errors.Wrap(err, "decode embedded catalog")
	}

	products := make([]product.Product, len(records))
	for i, rec := range records {
		products[i] = product.Product{
			ID:          rec.ID,
			Name:        rec.Name,
			Description: rec.Description,
			Price:       rec.Price,
			Category:    rec.Category,
			Unit:        rec.Unit,
			InStock:     rec.InStock,
			Image: product.Image{
				Thumbnail: rec.Image.Thumbnail,
				Mobile:    rec.Image.Mobile,
				Tablet:    rec.Image.Tablet,
				Desktop:   rec.Image.Desktop,
			},
		}
	}
	return NewMemory(products), nil
}

// NewMemory builds a Memory repository over the given products, preserving
// their order for List.
func NewMemory(products []product.Product) *Memory {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Memory{products: products, byID: byID}
}

// List returns all catalog products in their declared order.
func (m *Memory) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

// GetByID returns a single product, or product.ErrNotFound.
func (m *Memory) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns the products matching any of the given IDs. Unknown IDs
// are skipped, matching the behaviour of a SQL ANY() lookup.
func (m *Memory) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
