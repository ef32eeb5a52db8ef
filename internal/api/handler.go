package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketloop/storefront/internal/domain/cart"
	"github.com/marketloop/storefront/internal/domain/catalog"
	"github.com/marketloop/storefront/internal/domain/coupon"
	"github.com/marketloop/storefront/internal/domain/order"
)

// Handler exposes the storefront REST API, delegating all business logic to
// the injected domain services and repositories.
type Handler struct {
	products   catalog.ProductRepository
	categories catalog.CategoryRepository
	coupons    coupon.Repository
	carts      *cart.Service
	checkout   *order.CheckoutService
	orders     order.Repository
	users      UserSource
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products catalog.ProductRepository,
	categories catalog.CategoryRepository,
	coupons coupon.Repository,
	carts *cart.Service,
	checkout *order.CheckoutService,
	orders order.Repository,
	users UserSource,
) *Handler {
	return &Handler{
		products:   products,
		categories: categories,
		coupons:    coupons,
		carts:      carts,
		checkout:   checkout,
		orders:     orders,
		users:      users,
	}
}

// Routes builds the /api router. Catalog reads are public; cart and order
// routes require a bearer token; catalog writes additionally require an
// admin user.
func (h *Handler) Routes() http.Handler {
	authed := RequireUser(h.users)

	r := chi.NewRouter()

	r.Route("/product", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(authed, RequireAdmin)
			r.Post("/", h.createProduct)
			r.Post("/multiple", h.createProducts)
			r.Put("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
		})
	})

	r.Route("/category", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Get("/{id}", h.getCategory)

		r.Group(func(r chi.Router) {
			r.Use(authed, RequireAdmin)
			r.Post("/", h.createCategory)
			r.Put("/{id}", h.updateCategory)
			r.Delete("/{id}", h.deleteCategory)
		})
	})

	r.Route("/coupon", func(r chi.Router) {
		r.Get("/", h.listCoupons)
		r.Get("/code/{code}", h.getCouponByCode)
		r.With(authed).Get("/validate/{id}", h.validateCoupon)
		r.Get("/{id}", h.getCoupon)

		r.Group(func(r chi.Router) {
			r.Use(authed, RequireAdmin)
			r.Post("/", h.createCoupon)
			r.Post("/multiple", h.createCoupons)
			r.Put("/{id}", h.updateCoupon)
			r.Delete("/{id}", h.deleteCoupon)
		})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(authed)
		r.Get("/", h.getCart)
		r.Post("/add-product", h.addCartProduct)
		r.Post("/remove-product", h.removeCartProduct)
		r.Post("/apply-coupon", h.applyCartCoupon)
		r.Post("/remove-coupon", h.removeCartCoupon)
	})

	r.Route("/order", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", h.placeOrder)
		r.Get("/user-orders", h.listUserOrders)
		r.With(RequireAdmin).Get("/", h.listAllOrders)
		r.Get("/{id}", h.getOrder)
	})

	return r
}
