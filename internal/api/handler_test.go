package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketloop/storefront/internal/domain/cart"
	"github.com/marketloop/storefront/internal/domain/catalog"
	"github.com/marketloop/storefront/internal/domain/coupon"
	"github.com/marketloop/storefront/internal/domain/order"
	"github.com/marketloop/storefront/internal/domain/user"
)

// memStore is a single in-memory backing store implementing every repository
// the handler needs, so tests exercise the full routing, auth, and JSON
// mapping without a database.
type memStore struct {
	products map[string]catalog.Product
	cats     map[string]catalog.Category
	coupons  map[string]coupon.Coupon
	carts    map[string]*cart.Cart
	orders   map[string]order.Order
	users    map[string]user.User // keyed by token hash
}

func newMemStore() *memStore {
	return &memStore{
		products: map[string]catalog.Product{},
		cats:     map[string]catalog.Category{},
		coupons:  map[string]coupon.Coupon{},
		carts:    map[string]*cart.Cart{},
		orders:   map[string]order.Order{},
		users:    map[string]user.User{},
	}
}

func (s *memStore) List(ctx context.Context) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (s *memStore) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) Create(ctx context.Context, p *catalog.Product) error {
	s.products[p.ID] = *p
	return nil
}

func (s *memStore) CreateBatch(ctx context.Context, ps []catalog.Product) error {
	for _, p := range ps {
		s.products[p.ID] = p
	}
	return nil
}

func (s *memStore) Update(ctx context.Context, p *catalog.Product) error {
	if _, ok := s.products[p.ID]; !ok {
		return catalog.ErrProductNotFound
	}
	s.products[p.ID] = *p
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.products[id]; !ok {
		return catalog.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

// categoryStore adapts memStore to catalog.CategoryRepository.
type categoryStore struct{ *memStore }

func (s categoryStore) List(ctx context.Context) ([]catalog.Category, error) {
	out := make([]catalog.Category, 0, len(s.cats))
	for _, c := range s.cats {
		out = append(out, c)
	}
	return out, nil
}

func (s categoryStore) GetByID(ctx context.Context, id string) (*catalog.Category, error) {
	c, ok := s.cats[id]
	if !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	return &c, nil
}

func (s categoryStore) Create(ctx context.Context, c *catalog.Category) error {
	s.cats[c.ID] = *c
	return nil
}

func (s categoryStore) Update(ctx context.Context, c *catalog.Category) error {
	if _, ok := s.cats[c.ID]; !ok {
		return catalog.ErrCategoryNotFound
	}
	s.cats[c.ID] = *c
	return nil
}

func (s categoryStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.cats[id]; !ok {
		return catalog.ErrCategoryNotFound
	}
	delete(s.cats, id)
	return nil
}

// couponStore adapts memStore to coupon.Repository.
type couponStore struct{ *memStore }

func (s couponStore) List(ctx context.Context) ([]coupon.Coupon, error) {
	out := make([]coupon.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, c)
	}
	return out, nil
}

func (s couponStore) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	c, ok := s.coupons[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (s couponStore) GetByIDForUpdate(ctx context.Context, id string) (*coupon.Coupon, error) {
	return s.GetByID(ctx, id)
}

func (s couponStore) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	for _, c := range s.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (s couponStore) Create(ctx context.Context, c *coupon.Coupon) error {
	s.coupons[c.ID] = *c
	return nil
}

func (s couponStore) CreateBatch(ctx context.Context, cs []coupon.Coupon) error {
	for _, c := range cs {
		s.coupons[c.ID] = c
	}
	return nil
}

func (s couponStore) Update(ctx context.Context, c *coupon.Coupon) error {
	if _, ok := s.coupons[c.ID]; !ok {
		return coupon.ErrNotFound
	}
	s.coupons[c.ID] = *c
	return nil
}

func (s couponStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.coupons[id]; !ok {
		return coupon.ErrNotFound
	}
	delete(s.coupons, id)
	return nil
}

func (s couponStore) IncrementUsage(ctx context.Context, id string) error {
	c, ok := s.coupons[id]
	if !ok {
		return coupon.ErrNotFound
	}
	c.UsageCount++
	s.coupons[id] = c
	return nil
}

// cartStore adapts memStore to cart.Repository.
type cartStore struct{ *memStore }

func (s cartStore) GetByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	c, ok := s.carts[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	return &cp, nil
}

func (s cartStore) GetByUserForUpdate(ctx context.Context, userID string) (*cart.Cart, error) {
	return s.GetByUser(ctx, userID)
}

func (s cartStore) GetOrCreateForUser(ctx context.Context, userID string) (*cart.Cart, error) {
	if c, ok := s.carts[userID]; ok {
		cp := *c
		cp.Items = append([]cart.Item(nil), c.Items...)
		return &cp, nil
	}
	c := &cart.Cart{ID: "cart-" + userID, UserID: userID}
	s.carts[userID] = c
	return c, nil
}

func (s cartStore) Save(ctx context.Context, c *cart.Cart) error {
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	s.carts[c.UserID] = &cp
	return nil
}

// orderStore adapts memStore to order.Repository.
type orderStore struct{ *memStore }

func (s orderStore) Create(ctx context.Context, o *order.Order) error {
	s.orders[o.ID] = *o
	return nil
}

func (s orderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (s orderStore) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s orderStore) List(ctx context.Context) ([]order.Order, error) {
	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

// userStore adapts memStore to the auth and checkout user interfaces.
type userStore struct{ *memStore }

func (s userStore) GetByTokenHash(ctx context.Context, tokenHash string) (*user.User, error) {
	u, ok := s.users[tokenHash]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (s userStore) MarkReturning(ctx context.Context, id string) error {
	for hash, u := range s.users {
		if u.ID == id {
			u.IsNewUser = false
			s.users[hash] = u
		}
	}
	return nil
}

// noTx runs the function directly, without a real transaction.
type noTx struct{}

func (noTx) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func tokenHash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

type fixture struct {
	store   *memStore
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	store.cats["cat-food"] = catalog.Category{ID: "cat-food", Name: "Food"}
	store.cats["cat-drinks"] = catalog.Category{ID: "cat-drinks", Name: "Drinks"}
	store.products["p1"] = catalog.Product{
		ID: "p1", Name: "Waffle", Price: decimal.NewFromInt(15), CategoryID: "cat-food", Stock: 50,
	}
	store.products["p2"] = catalog.Product{
		ID: "p2", Name: "Latte", Price: decimal.NewFromInt(5), CategoryID: "cat-drinks", Stock: 50,
	}
	store.coupons["c1"] = coupon.Coupon{
		ID:                   "c1",
		Code:                 "FOOD10",
		DiscountType:         coupon.DiscountFixed,
		Amount:               decimal.NewFromInt(10),
		MinPurchase:          decimal.NewFromInt(20),
		ApplicableCategories: []string{"cat-food"},
		ExpiresAt:            time.Now().Add(24 * time.Hour),
	}
	store.users[tokenHash("user-token")] = user.User{ID: "u1", Email: "u1@example.com", IsNewUser: true}
	store.users[tokenHash("admin-token")] = user.User{ID: "admin", Email: "admin@example.com", IsAdmin: true}

	carts := cartStore{store}
	coupons := couponStore{store}
	orders := orderStore{store}
	users := userStore{store}

	cartSvc := cart.NewService(carts, store, coupons)
	checkoutSvc := order.NewCheckoutService(noTx{}, carts, store, coupons, users, orders)

	h := NewHandler(store, categoryStore{store}, coupons, cartSvc, checkoutSvc, orders, users)

	r := chi.NewRouter()
	r.Mount("/api", h.Routes())

	return &fixture{store: store, handler: r}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestProducts_ListAndGet(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/product", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	products := decodeBody[[]productResponse](t, w)
	assert.Len(t, products, 2)

	w = f.do(t, http.MethodGet, "/api/product/p1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := decodeBody[productResponse](t, w)
	assert.Equal(t, "Waffle", p.Name)
	assert.Equal(t, 15.0, p.Price)

	w = f.do(t, http.MethodGet, "/api/product/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProducts_AdminGate(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"name": "Tea", "price": 3.5, "categoryId": "cat-drinks", "stock": 10}

	w := f.do(t, http.MethodPost, "/api/product", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/product", "user-token", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/product", "admin-token", body)
	require.Equal(t, http.StatusCreated, w.Code)
	p := decodeBody[productResponse](t, w)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Tea", p.Name)
}

func TestProducts_CreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"price": 1, "categoryId": "cat-food"}},
		{"negative price", map[string]any{"name": "X", "price": -1, "categoryId": "cat-food"}},
		{"missing category", map[string]any{"name": "X", "price": 1}},
		{"unknown field", map[string]any{"name": "X", "price": 1, "categoryId": "cat-food", "bogus": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/product", "admin-token", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCoupons_GetByCode(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/coupon/code/FOOD10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	c := decodeBody[couponResponse](t, w)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "fixed", c.DiscountType)

	w = f.do(t, http.MethodGet, "/api/coupon/code/NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCoupons_CreateValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/coupon", "admin-token", map[string]any{
		"code": "BAD", "discountType": "percentage", "amount": 150,
		"expiresAt": time.Now().Add(time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/coupon", "admin-token", map[string]any{
		"code": "OK15", "discountType": "percentage", "amount": 15,
		"expiresAt": time.Now().Add(time.Hour),
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCart_AddAndGet(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart/add-product", "user-token",
		map[string]any{"productId": "p1", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	c := decodeBody[cartResponse](t, w)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 30.0, c.Subtotal)

	w = f.do(t, http.MethodGet, "/api/cart", "user-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	c = decodeBody[cartResponse](t, w)
	assert.Equal(t, 30.0, c.Subtotal)
}

func TestCart_AddValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart/add-product", "user-token",
		map[string]any{"productId": "p1", "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/cart/add-product", "user-token",
		map[string]any{"productId": "nope", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCart_ApplyCoupon(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart/add-product", "user-token",
		map[string]any{"productId": "p1", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/cart/apply-coupon", "user-token",
		map[string]any{"couponId": "c1"})
	require.Equal(t, http.StatusOK, w.Code)
	q := decodeBody[quoteResponse](t, w)
	assert.Equal(t, 10.0, q.TotalDiscount)
	assert.Equal(t, 20.0, q.TotalPrice)
}

func TestCart_ApplyCoupon_NotApplicable(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart/add-product", "user-token",
		map[string]any{"productId": "p2", "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/cart/apply-coupon", "user-token",
		map[string]any{"couponId": "c1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody[errorResponse](t, w)
	assert.Contains(t, resp.Message, "not applicable")
}

func TestCouponValidate_DryRun(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart/add-product", "user-token",
		map[string]any{"productId": "p1", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/coupon/validate/c1", "user-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	q := decodeBody[quoteResponse](t, w)
	assert.Equal(t, 10.0, q.TotalDiscount)

	// Dry run must not attach the coupon.
	w = f.do(t, http.MethodGet, "/api/cart", "user-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	c := decodeBody[cartResponse](t, w)
	assert.Empty(t, c.CouponID)
}

func TestOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	// Create an empty cart by adding and removing a product.
	w := f.do(t, http.MethodPost, "/api/cart/add-product", "user-token",
		map[string]any{"productId": "p1", "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, "/api/cart/remove-product", "user-token",
		map[string]any{"productId": "p1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/order", "user-token", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "Cart is empty", resp.Message)
}

func TestOrder_Checkout(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart/add-product", "user-token",
		map[string]any{"productId": "p1", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, "/api/cart/apply-coupon", "user-token",
		map[string]any{"couponId": "c1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/order", "user-token", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	o := decodeBody[orderResponse](t, w)
	assert.Equal(t, 10.0, o.Discount)
	assert.Equal(t, 20.0, o.Total)
	assert.Equal(t, "c1", o.CouponID)

	// Cart is cleared; a second checkout fails.
	w = f.do(t, http.MethodPost, "/api/order", "user-token", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The order is visible to its owner and in the user listing.
	w = f.do(t, http.MethodGet, "/api/order/"+o.ID, "user-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/order/user-orders", "user-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decodeBody[[]orderResponse](t, w)
	assert.Len(t, orders, 1)
}

func TestOrder_OwnershipAndAdmin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart/add-product", "user-token",
		map[string]any{"productId": "p1", "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, "/api/order", "user-token", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	o := decodeBody[orderResponse](t, w)

	// Another user cannot read it.
	w = f.do(t, http.MethodGet, "/api/order/"+o.ID, "admin-token", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The admin listing sees every order.
	w = f.do(t, http.MethodGet, "/api/order", "admin-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := decodeBody[[]orderResponse](t, w)
	assert.Len(t, orders, 1)

	// Non-admins cannot list all orders.
	w = f.do(t, http.MethodGet, "/api/order", "user-token", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
