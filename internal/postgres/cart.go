package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/marketloop/storefront/internal/domain/cart"
)

const (
	getCartByUserSQL = `SELECT id, user_id, coupon_id FROM carts WHERE user_id = $1`

	getCartByUserForUpdateSQL = `SELECT id, user_id, coupon_id FROM carts WHERE user_id = $1 FOR UPDATE`

	insertCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`

	getCartItemsSQL = `SELECT product_id, quantity FROM cart_items
		WHERE cart_id = $1 ORDER BY position`

	updateCartCouponSQL = `UPDATE carts SET coupon_id = $2 WHERE id = $1`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	insertCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity, position)
		VALUES ($1, $2, $3, $4)`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. A cart is
// stored as one row in carts plus ordered rows in cart_items; Save replaces
// the item set wholesale inside a transaction.
type CartRepository struct {
	db *DB
}

func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) GetByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.getByUser(ctx, getCartByUserSQL, userID)
}

// GetByUserForUpdate loads a cart with a row lock on the carts row. Callers
// must hold an open transaction via DB.RunInTx.
func (r *CartRepository) GetByUserForUpdate(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.getByUser(ctx, getCartByUserForUpdateSQL, userID)
}

func (r *CartRepository) getByUser(ctx context.Context, sql, userID string) (*cart.Cart, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting cart for user %q", userID)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting cart for user %q", userID)
	}

	if err := r.loadItems(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateForUser returns the user's cart, creating an empty one when none
// exists yet. Concurrent creators race through ON CONFLICT DO NOTHING and the
// losing insert re-reads the winner's row.
func (r *CartRepository) GetOrCreateForUser(ctx context.Context, userID string) (*cart.Cart, error) {
	c, err := r.GetByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, cart.ErrNotFound) {
		return nil, err
	}

	if _, err := r.db.q(ctx).Exec(ctx, insertCartSQL, uuid.NewString(), userID); err != nil {
		return nil, errors.Wrapf(err, "creating cart for user %q", userID)
	}
	return r.GetByUser(ctx, userID)
}

// Save persists the cart's coupon and replaces its items. The delete+insert
// runs inside a transaction, joining the caller's transaction when one is
// already open.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		var couponID *string
		if c.CouponID != "" {
			couponID = &c.CouponID
		}
		tag, err := r.db.q(ctx).Exec(ctx, updateCartCouponSQL, c.ID, couponID)
		if err != nil {
			return errors.Wrapf(err, "saving cart %q", c.ID)
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrNotFound
		}

		if _, err := r.db.q(ctx).Exec(ctx, deleteCartItemsSQL, c.ID); err != nil {
			return errors.Wrapf(err, "clearing items for cart %q", c.ID)
		}
		for i, it := range c.Items {
			if _, err := r.db.q(ctx).Exec(ctx, insertCartItemSQL, c.ID, it.ProductID, it.Quantity, i); err != nil {
				return errors.Wrapf(err, "saving item %q in cart %q", it.ProductID, c.ID)
			}
		}
		return nil
	})
}

func (r *CartRepository) loadItems(ctx context.Context, c *cart.Cart) error {
	rows, err := r.db.q(ctx).Query(ctx, getCartItemsSQL, c.ID)
	if err != nil {
		return errors.Wrapf(err, "loading items for cart %q", c.ID)
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return errors.Wrapf(err, "loading items for cart %q", c.ID)
	}
	c.Items = items
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c        cart.Cart
		couponID *string
	)
	if err := row.Scan(&c.ID, &c.UserID, &couponID); err != nil {
		return c, err
	}
	if couponID != nil {
		c.CouponID = *couponID
	}
	return c, nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ProductID, &it.Quantity)
	return it, err
}
