// Package coupon defines discount rules and the pure validation logic used by
// both the cart apply-coupon flow and the checkout transaction.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a flat monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when a coupon id or code does not resolve.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when a coupon's expiry date is in the past.
	ErrExpired = errors.New("coupon expired")
	// ErrNewUsersOnly is returned when a new-user-only coupon is used by a
	// user who has already completed a checkout.
	ErrNewUsersOnly = errors.New("coupon valid only for new users")
	// ErrBelowMinPurchase is returned when the cart subtotal does not reach
	// the coupon's minimum purchase amount.
	ErrBelowMinPurchase = errors.New("total purchase amount is less than minimum purchase required for the coupon")
)

// NotApplicableError indicates a cart contains a product whose category is
// outside the coupon's applicable set.
type NotApplicableError struct {
	ProductName string
}

func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("product %s is not applicable for this coupon", e.ProductName)
}

// Coupon is a named discount rule with eligibility constraints. UsageCount is
// monotonically incremented by successful checkouts and never decremented.
type Coupon struct {
	ID           string
	Code         string
	Description  string
	DiscountType DiscountType
	// Amount is percentage points for DiscountPercentage and a flat currency
	// amount for DiscountFixed.
	Amount      decimal.Decimal
	MinPurchase decimal.Decimal
	// MaxDiscount caps the computed discount. Zero means no cap.
	MaxDiscount decimal.Decimal
	// ApplicableCategories lists category ids the coupon covers. An empty set
	// applies to no products, so any non-empty cart is rejected.
	ApplicableCategories []string
	NewUserOnly          bool
	ExpiresAt            time.Time
	UsageCount           int
}

// LineItem is a fully resolved cart line for validation purposes: the product
// price and category are loaded, not referenced.
type LineItem struct {
	ProductID  string
	Name       string
	CategoryID string
	Price      decimal.Decimal
	Quantity   int
}

// Quote holds the outcome of a successful validation.
type Quote struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
}

// Total returns the payable amount after the discount.
func (q Quote) Total() decimal.Decimal {
	return q.Subtotal.Sub(q.Discount)
}

// Repository provides lookup and mutation of coupons. IncrementUsage must be
// atomic with respect to concurrent checkouts sharing the coupon.
type Repository interface {
	List(ctx context.Context) ([]Coupon, error)
	GetByID(ctx context.Context, id string) (*Coupon, error)
	// GetByIDForUpdate locks the coupon row for the remainder of the ambient
	// transaction so concurrent checkouts serialize on it.
	GetByIDForUpdate(ctx context.Context, id string) (*Coupon, error)
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	CreateBatch(ctx context.Context, cs []Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
	IncrementUsage(ctx context.Context, id string) error
}
