// Package cart implements the shopping cart engine: line items with locked-in
// unit prices, pricing recomputation (subtotal, delivery fee threshold,
// discount), change subscriptions, and background persistence.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/grabber-app/cart/internal/domain/product"
)

// DefaultStorageKey is the persistence key used when none is configured.
const DefaultStorageKey = "grabber-cart-storage"

// DefaultFreeDeliveryThreshold is the subtotal at which delivery becomes free
// when no threshold is configured.
var DefaultFreeDeliveryThreshold = decimal.NewFromInt(500)

// LineItem is one product entry in the cart. UnitPrice is captured from the
// product at the time of the first add and never refreshed; Subtotal is always
// Quantity * UnitPrice.
type LineItem struct {
	ProductID string
	Product   product.Product
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Snapshot is an immutable copy of the cart state for rendering and checkout.
// DeliveryFee is the effective fee after the free-delivery threshold rule;
// Total = Subtotal + DeliveryFee - Discount.
type Snapshot struct {
	Items                 []LineItem
	Subtotal              decimal.Decimal
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	Discount              decimal.Decimal
	Total                 decimal.Decimal
	SelectedAddressID     string
}

// ItemCount returns the total unit count across all line items.
func (s Snapshot) ItemCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

// Defaults holds the pricing configuration the cart starts with and returns
// to on Clear.
type Defaults struct {
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

// effectiveDeliveryFee applies the free-delivery threshold rule to the
// configured base fee.
func effectiveDeliveryFee(subtotal, baseFee, threshold decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(threshold) {
		return decimal.Zero
	}
	return baseFee
}

// computeTotals derives the cart-level pricing fields from the line items and
// configuration. It is pure and deterministic.
func computeTotals(items []LineItem, baseFee, threshold, discount decimal.Decimal) (subtotal, fee, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	fee = effectiveDeliveryFee(subtotal, baseFee, threshold)
	total = subtotal.Add(fee).Sub(discount)
	return subtotal, fee, total
}
