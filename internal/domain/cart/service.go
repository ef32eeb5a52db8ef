package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/marketloop/storefront/internal/domain/catalog"
	"github.com/marketloop/storefront/internal/domain/coupon"
	"github.com/marketloop/storefront/internal/domain/user"
)

// ProductSource is the slice of the catalog the cart manager reads.
type ProductSource interface {
	GetByID(ctx context.Context, id string) (*catalog.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error)
}

// CouponSource resolves coupons for attachment and revalidation.
type CouponSource interface {
	GetByID(ctx context.Context, id string) (*coupon.Coupon, error)
}

// Service is the cart manager: it mutates the user's cart and gates coupon
// attachment through the validator.
type Service struct {
	carts    Repository
	products ProductSource
	coupons  CouponSource
	now      func() time.Time
}

// NewService creates a cart Service with the required repositories.
func NewService(carts Repository, products ProductSource, coupons CouponSource) *Service {
	return &Service{
		carts:    carts,
		products: products,
		coupons:  coupons,
		now:      time.Now,
	}
}

// Get returns the user's cart resolved against the catalog.
func (s *Service) Get(ctx context.Context, usr user.User) (*View, error) {
	c, err := s.carts.GetByUser(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, c)
}

// AddProduct adds qty units of the product to the user's cart, merging with an
// existing line item when present. The cart is created lazily on first add.
// When the new item invalidates an already-attached coupon, the coupon is
// cleared rather than left as a stale reference.
func (s *Service) AddProduct(ctx context.Context, usr user.User, productID string, qty int) (*View, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	c, err := s.carts.GetOrCreateForUser(ctx, usr.ID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty})
	}

	view, err := s.resolve(ctx, c)
	if err != nil {
		return nil, err
	}

	if c.CouponID != "" {
		if !s.couponStillValid(ctx, c.CouponID, view, usr) {
			c.CouponID = ""
		}
	}

	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveProduct filters the product out of the cart. Removing a product that
// is not in the cart is a no-op.
func (s *Service) RemoveProduct(ctx context.Context, usr user.User, productID string) (*View, error) {
	c, err := s.carts.GetByUser(ctx, usr.ID)
	if err != nil {
		return nil, err
	}

	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.Items = kept

	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return s.resolve(ctx, c)
}

// ApplyCoupon validates the coupon against the current cart and user, and
// attaches it only when valid. The validator's failure reason is surfaced
// unchanged.
func (s *Service) ApplyCoupon(ctx context.Context, usr user.User, couponID string) (*View, coupon.Quote, error) {
	c, err := s.carts.GetByUser(ctx, usr.ID)
	if err != nil {
		return nil, coupon.Quote{}, err
	}

	cp, err := s.coupons.GetByID(ctx, couponID)
	if err != nil {
		return nil, coupon.Quote{}, err
	}

	view, err := s.resolve(ctx, c)
	if err != nil {
		return nil, coupon.Quote{}, err
	}

	quote, err := coupon.Validate(cp, view.LineItems(), usr.IsNewUser, s.now())
	if err != nil {
		return nil, coupon.Quote{}, err
	}

	c.CouponID = cp.ID
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, coupon.Quote{}, err
	}
	return view, quote, nil
}

// QuoteCoupon runs a dry-run validation of the coupon against the user's cart
// without attaching it.
func (s *Service) QuoteCoupon(ctx context.Context, usr user.User, couponID string) (coupon.Quote, error) {
	c, err := s.carts.GetByUser(ctx, usr.ID)
	if err != nil {
		return coupon.Quote{}, err
	}
	cp, err := s.coupons.GetByID(ctx, couponID)
	if err != nil {
		return coupon.Quote{}, err
	}
	view, err := s.resolve(ctx, c)
	if err != nil {
		return coupon.Quote{}, err
	}
	return coupon.Validate(cp, view.LineItems(), usr.IsNewUser, s.now())
}

// RemoveCoupon clears the attached coupon unconditionally.
func (s *Service) RemoveCoupon(ctx context.Context, usr user.User) (*View, error) {
	c, err := s.carts.GetByUser(ctx, usr.ID)
	if err != nil {
		return nil, err
	}

	c.CouponID = ""
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, err
	}
	return s.resolve(ctx, c)
}

// couponStillValid reports whether the attached coupon survives the current
// cart contents. A coupon that was deleted since attachment counts as invalid.
func (s *Service) couponStillValid(ctx context.Context, couponID string, view *View, usr user.User) bool {
	cp, err := s.coupons.GetByID(ctx, couponID)
	if err != nil {
		return false
	}
	_, err = coupon.Validate(cp, view.LineItems(), usr.IsNewUser, s.now())
	return err == nil
}

// resolve loads the live product record for every line item and computes the
// running subtotal.
func (s *Service) resolve(ctx context.Context, c *Cart) (*View, error) {
	view := &View{Cart: c, Subtotal: decimal.Zero}
	if len(c.Items) == 0 {
		return view, nil
	}

	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve cart products")
	}

	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	view.Items = make([]ResolvedItem, 0, len(c.Items))
	for _, item := range c.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, errors.Wrapf(catalog.ErrProductNotFound, "product %s", item.ProductID)
		}
		view.Items = append(view.Items, ResolvedItem{Product: p, Quantity: item.Quantity})
		view.Subtotal = view.Subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return view, nil
}
