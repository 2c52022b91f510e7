package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/grabber-app/cart/internal/domain/cart"
	"github.com/grabber-app/cart/internal/domain/coupon"
	"github.com/grabber-app/cart/internal/domain/product"
)

// ErrEmptyCart is returned when checkout is attempted on a cart with no items.
var ErrEmptyCart = fmt.Errorf("cart is empty")

// ProductNotFoundError indicates a cart line references a product that no
// longer exists in the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// OutOfStockError indicates a cart line references a product that is no
// longer in stock.
type OutOfStockError struct {
	ProductID string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %s is out of stock", e.ProductID)
}

// InvalidQuantityError indicates a cart line carries a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// PlaceOrderRequest holds the input for placing an order from a cart snapshot.
type PlaceOrderRequest struct {
	Cart       cart.Snapshot
	CouponCode string
	AddressID  string
}

// Service encapsulates checkout business logic.
type Service struct {
	products product.Repository
	coupons  coupon.Validator
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons coupon.Validator,
	orders Repository,
) *Service {
	return &Service{
		products: products,
		coupons:  coupons,
		orders:   orders,
		now:      time.Now,
	}
}

// PlaceOrder validates the cart lines against the catalog, applies an
// optional coupon, persists the order, and returns it. Pricing comes from
// the cart's locked-in unit prices; only existence and stock are re-checked
// against the catalog.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	lines := req.Cart.Items
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Validate quantities and collect product IDs.
	ids := make([]string, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: line.ProductID}
		}
		ids[i] = line.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Every cart line must still resolve to an in-stock product.
	for _, line := range lines {
		p, ok := productMap[line.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
		if !p.InStock {
			return nil, &OutOfStockError{ProductID: line.ProductID}
		}
	}

	// Build order items and subtotal from the cart's locked-in prices.
	items := make([]Item, len(lines))
	couponItems := make([]coupon.Item, len(lines))
	subtotal := decimal.Zero
	for i, line := range lines {
		items[i] = Item{
			ProductID: line.ProductID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		}
		couponItems[i] = coupon.Item{
			ProductID: line.ProductID,
			Price:     line.UnitPrice,
			Quantity:  line.Quantity,
		}
		subtotal = subtotal.Add(line.Subtotal)
	}

	// A coupon code supersedes whatever flat discount the cart carried.
	discount := req.Cart.Discount
	if req.CouponCode != "" {
		d, err := s.coupons.Validate(ctx, req.CouponCode, couponItems)
		if err != nil {
			return nil, fmt.Errorf("validate coupon: %w", err)
		}
		discount = d.Amount
	}

	// Total = subtotal + effective delivery fee - discount, floored at zero
	// and rounded to 2 decimal places for the financial record.
	total := subtotal.Add(req.Cart.DeliveryFee).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)
	discount = discount.Round(2)

	id := uuid.New().String()
	o := &Order{
		ID:          id,
		Number:      orderNumber(id),
		Status:      StatusPending,
		Items:       items,
		Subtotal:    subtotal,
		DeliveryFee: req.Cart.DeliveryFee,
		Discount:    discount,
		Total:       total,
		CouponCode:  req.CouponCode,
		AddressID:   req.AddressID,
		CreatedAt:   s.now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return o, nil
}

// orderNumber derives a short human-readable order reference from the ID.
func orderNumber(id string) string {
	short := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	return "GRB-" + short
}
