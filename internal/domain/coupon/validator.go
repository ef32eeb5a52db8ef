package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validate evaluates a coupon against a resolved cart snapshot and the user's
// new-user status. It is a pure function: no repository access, no clock reads
// beyond the supplied now. Checks run in a fixed order and short-circuit on
// the first failure.
func Validate(c *Coupon, items []LineItem, isNewUser bool, now time.Time) (Quote, error) {
	if c == nil {
		return Quote{}, ErrNotFound
	}
	if c.ExpiresAt.Before(now) {
		return Quote{}, ErrExpired
	}
	if c.NewUserOnly && !isNewUser {
		return Quote{}, ErrNewUsersOnly
	}

	applicable := make(map[string]struct{}, len(c.ApplicableCategories))
	for _, id := range c.ApplicableCategories {
		applicable[id] = struct{}{}
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))

		// An empty applicable set covers no products at all.
		if _, ok := applicable[item.CategoryID]; !ok {
			return Quote{}, &NotApplicableError{ProductName: item.Name}
		}
	}

	// Neither branch may discount more than the subtotal.
	discount := decimal.Zero
	switch c.DiscountType {
	case DiscountPercentage:
		discount = decimal.Min(subtotal.Mul(c.Amount).Div(hundred).Round(2), subtotal)
	case DiscountFixed:
		discount = decimal.Min(c.Amount, subtotal)
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	if c.MaxDiscount.IsPositive() {
		discount = decimal.Min(discount, c.MaxDiscount)
	}

	// Checked after the discount computation, matching the published contract:
	// the minimum applies to the pre-discount total regardless of discount size.
	if subtotal.LessThan(c.MinPurchase) {
		return Quote{}, ErrBelowMinPurchase
	}

	return Quote{Subtotal: subtotal, Discount: discount}, nil
}
