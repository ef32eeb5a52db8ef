package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/storefront/internal/domain/cart"
	"github.com/marketloop/storefront/internal/domain/catalog"
	"github.com/marketloop/storefront/internal/domain/coupon"
	"github.com/marketloop/storefront/internal/domain/user"
)

// TxRunner executes fn inside a single storage transaction. Repository calls
// made with the context passed to fn share that transaction; an error from fn
// rolls every write back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductSource is the slice of the catalog checkout reads.
type ProductSource interface {
	GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error)
}

// CouponStore locks and mutates coupons inside the checkout transaction.
type CouponStore interface {
	GetByIDForUpdate(ctx context.Context, id string) (*coupon.Coupon, error)
	IncrementUsage(ctx context.Context, id string) error
}

// UserStore flips the new-user flag inside the checkout transaction.
type UserStore interface {
	MarkReturning(ctx context.Context, id string) error
}

// CheckoutService atomically converts a cart into an order: one transaction
// covering the order insert, the coupon usage increment, the cart clear, and
// the new-user flag flip.
type CheckoutService struct {
	tx       TxRunner
	carts    cart.Repository
	products ProductSource
	coupons  CouponStore
	users    UserStore
	orders   Repository
	now      func() time.Time
}

// NewCheckoutService creates a CheckoutService with the required dependencies.
func NewCheckoutService(
	tx TxRunner,
	carts cart.Repository,
	products ProductSource,
	coupons CouponStore,
	users UserStore,
	orders Repository,
) *CheckoutService {
	return &CheckoutService{
		tx:       tx,
		carts:    carts,
		products: products,
		coupons:  coupons,
		users:    users,
		orders:   orders,
		now:      time.Now,
	}
}

// Checkout places an order for the authenticated user's cart. The cart is
// resolved from the user, never caller-supplied. Any failure aborts the whole
// transaction, so a failed attempt leaves no state behind and checkout can be
// retried safely.
func (s *CheckoutService) Checkout(ctx context.Context, usr user.User) (*Order, error) {
	var placed *Order

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// Lock the cart row first: a concurrent checkout of the same cart
		// blocks here and then observes the cleared cart.
		c, err := s.carts.GetByUserForUpdate(ctx, usr.ID)
		if err != nil {
			return err
		}
		if len(c.Items) == 0 {
			return ErrEmptyCart
		}

		items, subtotal, err := s.resolveItems(ctx, c)
		if err != nil {
			return err
		}

		// Never trust a previously cached validity: cart contents or user
		// state may have changed since the coupon was attached.
		discount := decimal.Zero
		if c.CouponID != "" {
			cp, err := s.coupons.GetByIDForUpdate(ctx, c.CouponID)
			if err != nil {
				return err
			}
			quote, err := coupon.Validate(cp, items, usr.IsNewUser, s.now())
			if err != nil {
				return err
			}
			discount = quote.Discount
		}

		total := subtotal.Sub(discount)
		if total.IsNegative() {
			total = decimal.Zero
		}

		o := &Order{
			ID:        uuid.New().String(),
			UserID:    usr.ID,
			Items:     snapshotItems(c.Items),
			CouponID:  c.CouponID,
			Discount:  discount.Round(2),
			Total:     total.Round(2),
			CreatedAt: s.now(),
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}

		if c.CouponID != "" {
			if err := s.coupons.IncrementUsage(ctx, c.CouponID); err != nil {
				return err
			}
		}

		c.Items = nil
		c.CouponID = ""
		if err := s.carts.Save(ctx, c); err != nil {
			return err
		}

		// Checkout itself ends new-user status, coupon or not.
		if err := s.users.MarkReturning(ctx, usr.ID); err != nil {
			return err
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// GetForUser returns the order only when it belongs to the requesting user.
func (s *CheckoutService) GetForUser(ctx context.Context, usr user.User, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != usr.ID {
		return nil, ErrNotOwner
	}
	return o, nil
}

// resolveItems loads the live product for every cart line and computes the
// pre-discount total.
func (s *CheckoutService) resolveItems(ctx context.Context, c *cart.Cart) ([]coupon.LineItem, decimal.Decimal, error) {
	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]coupon.LineItem, 0, len(c.Items))
	subtotal := decimal.Zero
	for _, item := range c.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, decimal.Zero, catalog.ErrProductNotFound
		}
		items = append(items, coupon.LineItem{
			ProductID:  p.ID,
			Name:       p.Name,
			CategoryID: p.CategoryID,
			Price:      p.Price,
			Quantity:   item.Quantity,
		})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return items, subtotal, nil
}

func snapshotItems(items []cart.Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = Item{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}
