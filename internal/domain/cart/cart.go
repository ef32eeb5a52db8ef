// Package cart implements the per-user mutable cart and its manager service.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/marketloop/storefront/internal/domain/catalog"
	"github.com/marketloop/storefront/internal/domain/coupon"
)

var (
	// ErrNotFound is returned when the user has no cart.
	ErrNotFound = errors.New("cart not found")
	// ErrInvalidQuantity is returned when a line item quantity is not positive.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Item is a (product reference, quantity) pair. Quantity is always >= 1.
type Item struct {
	ProductID string
	Quantity  int
}

// Cart is a user's in-progress selection of products with an optional single
// attached coupon. Each user owns at most one cart.
type Cart struct {
	ID     string
	UserID string
	Items  []Item
	// CouponID references the attached coupon; empty means none.
	CouponID string
}

// ResolvedItem pairs a cart quantity with the live product record.
type ResolvedItem struct {
	Product  catalog.Product
	Quantity int
}

// View is a cart with line items resolved against the product catalog.
type View struct {
	Cart     *Cart
	Items    []ResolvedItem
	Subtotal decimal.Decimal
}

// LineItems converts the resolved items into the validator's input shape.
func (v *View) LineItems() []coupon.LineItem {
	items := make([]coupon.LineItem, len(v.Items))
	for i, ri := range v.Items {
		items[i] = coupon.LineItem{
			ProductID:  ri.Product.ID,
			Name:       ri.Product.Name,
			CategoryID: ri.Product.CategoryID,
			Price:      ri.Product.Price,
			Quantity:   ri.Quantity,
		}
	}
	return items
}

// Repository defines persistence operations for carts. Save replaces the
// cart's line items and coupon reference wholesale.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*Cart, error)
	// GetByUserForUpdate locks the cart row for the remainder of the ambient
	// transaction so concurrent checkouts of the same cart serialize.
	GetByUserForUpdate(ctx context.Context, userID string) (*Cart, error)
	// GetOrCreateForUser returns the user's cart, creating an empty one when
	// the user has none yet.
	GetOrCreateForUser(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}
