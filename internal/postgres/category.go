package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/marketloop/storefront/internal/domain/catalog"
)

const (
	listCategoriesSQL    = `SELECT id, name FROM categories ORDER BY name`
	getCategoryByIDSQL   = `SELECT id, name FROM categories WHERE id = $1`
	insertCategorySQL    = `INSERT INTO categories (id, name) VALUES ($1, $2)`
	updateCategorySQL    = `UPDATE categories SET name = $2 WHERE id = $1`
	deleteCategorySQL    = `DELETE FROM categories WHERE id = $1`
)

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository backed by PostgreSQL.
type CategoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.db.q(ctx).Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing categories")
	}
	return pgx.CollectRows(rows, scanCategory)
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*catalog.Category, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCategoryByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting category %q", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, errors.Wrapf(err, "getting category %q", id)
	}
	return &c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	_, err := r.db.q(ctx).Exec(ctx, insertCategorySQL, c.ID, c.Name)
	if err != nil {
		return errors.Wrapf(err, "creating category %q", c.ID)
	}
	return nil
}

func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateCategorySQL, c.ID, c.Name)
	if err != nil {
		return errors.Wrapf(err, "updating category %q", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		return errors.Wrapf(err, "deleting category %q", id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Name)
	return c, err
}
