package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/marketloop/storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, coupon_id, discount, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, position)
		VALUES ($1, $2, $3, $4)`

	getOrderByIDSQL = `SELECT id, user_id, coupon_id, discount, total, created_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, coupon_id, discount, total, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT id, user_id, coupon_id, discount, total, created_at
		FROM orders ORDER BY created_at DESC`

	getOrderItemsSQL = `SELECT order_id, product_id, quantity FROM order_items
		WHERE order_id = ANY($1) ORDER BY order_id, position`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists an order and its line items, joining the caller's
// transaction when one is open.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		var couponID *string
		if o.CouponID != "" {
			couponID = &o.CouponID
		}
		_, err := r.db.q(ctx).Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, couponID, o.Discount, o.Total, o.CreatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "creating order %q", o.ID)
		}
		for i, it := range o.Items {
			if _, err := r.db.q(ctx).Exec(ctx, insertOrderItemSQL, o.ID, it.ProductID, it.Quantity, i); err != nil {
				return errors.Wrapf(err, "creating item %q for order %q", it.ProductID, o.ID)
			}
		}
		return nil
	})
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	os := []order.Order{o}
	if err := r.attachItems(ctx, os); err != nil {
		return nil, err
	}
	return &os[0], nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByUserSQL, userID)
}

func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listOrdersSQL)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	os, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	if err := r.attachItems(ctx, os); err != nil {
		return nil, err
	}
	return os, nil
}

// attachItems loads line items for all given orders in one query and appends
// them to the matching orders in place.
func (r *OrderRepository) attachItems(ctx context.Context, os []order.Order) error {
	if len(os) == 0 {
		return nil
	}
	ids := make([]string, len(os))
	byID := make(map[string]*order.Order, len(os))
	for i := range os {
		ids[i] = os[i].ID
		byID[os[i].ID] = &os[i]
	}

	rows, err := r.db.q(ctx).Query(ctx, getOrderItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "loading order items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity); err != nil {
			return errors.Wrap(err, "scanning order item")
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		couponID *string
	)
	if err := row.Scan(&o.ID, &o.UserID, &couponID, &o.Discount, &o.Total, &o.CreatedAt); err != nil {
		return o, err
	}
	if couponID != nil {
		o.CouponID = *couponID
	}
	return o, nil
}
