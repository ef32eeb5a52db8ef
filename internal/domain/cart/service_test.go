package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/storefront/internal/domain/catalog"
	"github.com/marketloop/storefront/internal/domain/coupon"
	"github.com/marketloop/storefront/internal/domain/user"
)

// --- Mock implementations ---

type mockCartRepo struct {
	cart    *Cart
	saveErr error
	saved   *Cart
}

func (m *mockCartRepo) GetByUser(_ context.Context, userID string) (*Cart, error) {
	if m.cart == nil || m.cart.UserID != userID {
		return nil, ErrNotFound
	}
	return m.cart, nil
}

func (m *mockCartRepo) GetByUserForUpdate(ctx context.Context, userID string) (*Cart, error) {
	return m.GetByUser(ctx, userID)
}

func (m *mockCartRepo) GetOrCreateForUser(_ context.Context, userID string) (*Cart, error) {
	if m.cart == nil {
		m.cart = &Cart{ID: "cart-1", UserID: userID}
	}
	return m.cart, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *Cart) error {
	m.saved = c
	return m.saveErr
}

type mockProductSource struct {
	byID map[string]catalog.Product
}

func (m *mockProductSource) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockProductSource) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCouponSource struct {
	coupons map[string]*coupon.Coupon
}

func (m *mockCouponSource) GetByID(_ context.Context, id string) (*coupon.Coupon, error) {
	c, ok := m.coupons[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

// --- Helpers ---

var (
	testNow    = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	testFuture = testNow.Add(30 * 24 * time.Hour)

	newUser = user.User{ID: "u1", IsNewUser: true}
)

func testProduct(id, category, price string) catalog.Product {
	return catalog.Product{
		ID:         id,
		Name:       id,
		Price:      decimal.RequireFromString(price),
		CategoryID: category,
		Stock:      100,
	}
}

func newTestService(carts *mockCartRepo, coupons map[string]*coupon.Coupon, products ...catalog.Product) *Service {
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	svc := NewService(carts, &mockProductSource{byID: byID}, &mockCouponSource{coupons: coupons})
	svc.now = func() time.Time { return testNow }
	return svc
}

// --- Tests ---

func TestAddProduct_CreatesCartAndAppends(t *testing.T) {
	carts := &mockCartRepo{}
	svc := newTestService(carts, nil, testProduct("p1", "catA", "15"))

	view, err := svc.AddProduct(context.Background(), newUser, "p1", 2)

	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, Item{ProductID: "p1", Quantity: 2}, view.Cart.Items[0])
	assert.True(t, decimal.RequireFromString("30").Equal(view.Subtotal))
	assert.NotNil(t, carts.saved)
}

func TestAddProduct_MergesExistingLine(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID:     "cart-1",
		UserID: "u1",
		Items:  []Item{{ProductID: "p1", Quantity: 1}},
	}}
	svc := newTestService(carts, nil, testProduct("p1", "catA", "10"))

	view, err := svc.AddProduct(context.Background(), newUser, "p1", 3)

	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, 4, view.Cart.Items[0].Quantity)
}

func TestAddProduct_UnknownProduct(t *testing.T) {
	svc := newTestService(&mockCartRepo{}, nil)

	_, err := svc.AddProduct(context.Background(), newUser, "ghost", 1)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestAddProduct_InvalidQuantity(t *testing.T) {
	svc := newTestService(&mockCartRepo{}, nil, testProduct("p1", "catA", "10"))

	_, err := svc.AddProduct(context.Background(), newUser, "p1", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddProduct_ClearsInvalidatedCoupon(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID:       "cart-1",
		UserID:   "u1",
		Items:    []Item{{ProductID: "p1", Quantity: 1}},
		CouponID: "c1",
	}}
	coupons := map[string]*coupon.Coupon{
		"c1": {
			ID:                   "c1",
			Code:                 "CATA",
			DiscountType:         coupon.DiscountPercentage,
			Amount:               decimal.NewFromInt(10),
			ApplicableCategories: []string{"catA"},
			ExpiresAt:            testFuture,
		},
	}
	svc := newTestService(carts, coupons,
		testProduct("p1", "catA", "10"),
		testProduct("p2", "catB", "20"),
	)

	// p2 is outside the coupon's category set, so the attachment must go.
	view, err := svc.AddProduct(context.Background(), newUser, "p2", 1)

	require.NoError(t, err)
	assert.Empty(t, view.Cart.CouponID)
	assert.Len(t, view.Cart.Items, 2)
}

func TestAddProduct_KeepsStillValidCoupon(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID:       "cart-1",
		UserID:   "u1",
		Items:    []Item{{ProductID: "p1", Quantity: 1}},
		CouponID: "c1",
	}}
	coupons := map[string]*coupon.Coupon{
		"c1": {
			ID:                   "c1",
			Code:                 "CATA",
			DiscountType:         coupon.DiscountPercentage,
			Amount:               decimal.NewFromInt(10),
			ApplicableCategories: []string{"catA"},
			ExpiresAt:            testFuture,
		},
	}
	svc := newTestService(carts, coupons,
		testProduct("p1", "catA", "10"),
		testProduct("p3", "catA", "5"),
	)

	view, err := svc.AddProduct(context.Background(), newUser, "p3", 2)

	require.NoError(t, err)
	assert.Equal(t, "c1", view.Cart.CouponID)
}

func TestRemoveProduct_FiltersLine(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID:     "cart-1",
		UserID: "u1",
		Items: []Item{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p2", Quantity: 2},
		},
	}}
	svc := newTestService(carts, nil,
		testProduct("p1", "catA", "10"),
		testProduct("p2", "catA", "20"),
	)

	view, err := svc.RemoveProduct(context.Background(), newUser, "p1")

	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, "p2", view.Cart.Items[0].ProductID)
}

func TestRemoveProduct_AbsentIsNoop(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID:     "cart-1",
		UserID: "u1",
		Items:  []Item{{ProductID: "p1", Quantity: 1}},
	}}
	svc := newTestService(carts, nil, testProduct("p1", "catA", "10"))

	view, err := svc.RemoveProduct(context.Background(), newUser, "ghost")

	require.NoError(t, err)
	assert.Len(t, view.Cart.Items, 1)
}

func TestRemoveProduct_NoCart(t *testing.T) {
	svc := newTestService(&mockCartRepo{}, nil)

	_, err := svc.RemoveProduct(context.Background(), newUser, "p1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApplyCoupon_AttachesWhenValid(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID:     "cart-1",
		UserID: "u1",
		Items:  []Item{{ProductID: "p1", Quantity: 2}},
	}}
	coupons := map[string]*coupon.Coupon{
		"c1": {
			ID:                   "c1",
			Code:                 "FLAT10",
			DiscountType:         coupon.DiscountFixed,
			Amount:               decimal.NewFromInt(10),
			MinPurchase:          decimal.NewFromInt(20),
			ApplicableCategories: []string{"catA"},
			ExpiresAt:            testFuture,
		},
	}
	svc := newTestService(carts, coupons, testProduct("p1", "catA", "15"))

	view, quote, err := svc.ApplyCoupon(context.Background(), newUser, "c1")

	require.NoError(t, err)
	assert.Equal(t, "c1", view.Cart.CouponID)
	assert.True(t, decimal.NewFromInt(30).Equal(quote.Subtotal))
	assert.True(t, decimal.NewFromInt(10).Equal(quote.Discount))
	assert.True(t, decimal.NewFromInt(20).Equal(quote.Total()))
}

func TestApplyCoupon_ValidatorFailureDoesNotAttach(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID:     "cart-1",
		UserID: "u1",
		Items:  []Item{{ProductID: "p1", Quantity: 1}},
	}}
	coupons := map[string]*coupon.Coupon{
		"c1": {
			ID:                   "c1",
			Code:                 "WELCOME",
			DiscountType:         coupon.DiscountPercentage,
			Amount:               decimal.NewFromInt(10),
			NewUserOnly:          true,
			ApplicableCategories: []string{"catA"},
			ExpiresAt:            testFuture,
		},
	}
	svc := newTestService(carts, coupons, testProduct("p1", "catA", "10"))

	returning := user.User{ID: "u1", IsNewUser: false}
	_, _, err := svc.ApplyCoupon(context.Background(), returning, "c1")

	require.ErrorIs(t, err, coupon.ErrNewUsersOnly)
	assert.Empty(t, carts.cart.CouponID)
	assert.Nil(t, carts.saved)
}

func TestApplyCoupon_UnknownCoupon(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{ID: "cart-1", UserID: "u1"}}
	svc := newTestService(carts, nil)

	_, _, err := svc.ApplyCoupon(context.Background(), newUser, "ghost")
	require.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestRemoveCoupon_ClearsUnconditionally(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID:       "cart-1",
		UserID:   "u1",
		Items:    []Item{{ProductID: "p1", Quantity: 1}},
		CouponID: "c1",
	}}
	svc := newTestService(carts, nil, testProduct("p1", "catA", "10"))

	view, err := svc.RemoveCoupon(context.Background(), newUser)

	require.NoError(t, err)
	assert.Empty(t, view.Cart.CouponID)
}

func TestQuoteCoupon_DoesNotAttach(t *testing.T) {
	carts := &mockCartRepo{cart: &Cart{
		ID:     "cart-1",
		UserID: "u1",
		Items:  []Item{{ProductID: "p1", Quantity: 2}},
	}}
	coupons := map[string]*coupon.Coupon{
		"c1": {
			ID:                   "c1",
			Code:                 "FLAT10",
			DiscountType:         coupon.DiscountFixed,
			Amount:               decimal.NewFromInt(10),
			ApplicableCategories: []string{"catA"},
			ExpiresAt:            testFuture,
		},
	}
	svc := newTestService(carts, coupons, testProduct("p1", "catA", "15"))

	quote, err := svc.QuoteCoupon(context.Background(), newUser, "c1")

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(quote.Discount))
	assert.Empty(t, carts.cart.CouponID)
	assert.Nil(t, carts.saved)
}
