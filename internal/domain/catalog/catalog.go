// Package catalog holds the product and category records that the rest of the
// shop references but never owns.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound is returned when a requested product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrCategoryNotFound is returned when a requested category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
)

// Category groups products and scopes coupon applicability.
type Category struct {
	ID   string
	Name string
}

// Product represents a catalog item available for purchase. Prices are
// non-negative decimals; stock is informational only.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  string
	Stock       int
}

// ProductRepository defines persistence operations for the product catalog.
type ProductRepository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	CreateBatch(ctx context.Context, ps []Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
}
