// Package order defines the immutable purchase record and the checkout
// orchestrator that converts a cart into one.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checkout is attempted on a cart with no
	// line items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotOwner is returned when a user reads an order owned by someone else.
	ErrNotOwner = errors.New("order belongs to another user")
)

// Item is a snapshotted (product reference, quantity) pair. Pricing is not
// copied: the order's totals were fixed at checkout time.
type Item struct {
	ProductID string
	Quantity  int
}

// Order is an append-only record of a completed purchase. It is created once
// by checkout and never mutated.
type Order struct {
	ID     string
	UserID string
	Items  []Item
	// CouponID references the coupon used, empty when none was.
	CouponID  string
	Discount  decimal.Decimal
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)
}
