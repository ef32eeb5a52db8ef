package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/marketloop/storefront/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, description, price, category_id, stock
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, description, price, category_id, stock
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, description, price, category_id, stock
		FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products (id, name, description, price, category_id, stock)
		VALUES ($1, $2, $3, $4, $5, $6)`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, price = $4, category_id = $5, stock = $6
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ catalog.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements catalog.ProductRepository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository that uses the given DB.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given ids.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	_, err := r.db.q(ctx).Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.CategoryID, p.Stock,
	)
	if err != nil {
		return errors.Wrapf(err, "creating product %q", p.ID)
	}
	return nil
}

// CreateBatch persists all given products inside one transaction.
func (r *ProductRepository) CreateBatch(ctx context.Context, ps []catalog.Product) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		for i := range ps {
			if err := r.Create(ctx, &ps[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update overwrites an existing product. Returns catalog.ErrProductNotFound
// when no row matched.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.CategoryID, p.Stock,
	)
	if err != nil {
		return errors.Wrapf(err, "updating product %q", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// Delete removes a product. Returns catalog.ErrProductNotFound when no row
// matched.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return errors.Wrapf(err, "deleting product %q", id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.Stock)
	return p, err
}
