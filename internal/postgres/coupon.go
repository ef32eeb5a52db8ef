package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/marketloop/storefront/internal/domain/coupon"
)

const (
	couponColumns = `id, code, description, discount_type, amount, min_purchase,
		max_discount, applicable_categories, new_user_only, expires_at, usage_count`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY code`

	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	getCouponByIDForUpdateSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 FOR UPDATE`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	insertCouponSQL = `INSERT INTO coupons (id, code, description, discount_type, amount,
		min_purchase, max_discount, applicable_categories, new_user_only, expires_at, usage_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateCouponSQL = `UPDATE coupons SET code = $2, description = $3, discount_type = $4,
		amount = $5, min_purchase = $6, max_discount = $7, applicable_categories = $8,
		new_user_only = $9, expires_at = $10
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1 WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db *DB
}

func NewCouponRepository(db *DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.db.q(ctx).Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "listing coupons")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.getOne(ctx, getCouponByIDSQL, id)
}

// GetByIDForUpdate loads a coupon with a row lock. Callers must hold an open
// transaction via DB.RunInTx.
func (r *CouponRepository) GetByIDForUpdate(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.getOne(ctx, getCouponByIDForUpdateSQL, id)
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.getOne(ctx, getCouponByCodeSQL, code)
}

func (r *CouponRepository) getOne(ctx context.Context, sql, arg string) (*coupon.Coupon, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "getting coupon %q", arg)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting coupon %q", arg)
	}
	return &c, nil
}

func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.q(ctx).Exec(ctx, insertCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.Amount, c.MinPurchase,
		nullDecimal(c.MaxDiscount), c.ApplicableCategories, c.NewUserOnly, c.ExpiresAt, c.UsageCount,
	)
	if err != nil {
		return errors.Wrapf(err, "creating coupon %q", c.Code)
	}
	return nil
}

func (r *CouponRepository) CreateBatch(ctx context.Context, cs []coupon.Coupon) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		for i := range cs {
			if err := r.Create(ctx, &cs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.db.q(ctx).Exec(ctx, updateCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.Amount, c.MinPurchase,
		nullDecimal(c.MaxDiscount), c.ApplicableCategories, c.NewUserOnly, c.ExpiresAt,
	)
	if err != nil {
		return errors.Wrapf(err, "updating coupon %q", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return errors.Wrapf(err, "deleting coupon %q", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func (r *CouponRepository) IncrementUsage(ctx context.Context, id string) error {
	tag, err := r.db.q(ctx).Exec(ctx, incrementCouponUsageSQL, id)
	if err != nil {
		return errors.Wrapf(err, "incrementing usage for coupon %q", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c           coupon.Coupon
		dt          string
		maxDiscount decimal.NullDecimal
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &dt, &c.Amount, &c.MinPurchase,
		&maxDiscount, &c.ApplicableCategories, &c.NewUserOnly, &c.ExpiresAt, &c.UsageCount,
	)
	if err != nil {
		return c, err
	}
	c.DiscountType = coupon.DiscountType(dt)
	if maxDiscount.Valid {
		c.MaxDiscount = maxDiscount.Decimal
	}
	return c, nil
}

// nullDecimal maps the zero value to SQL NULL. A zero max_discount means the
// coupon has no cap.
func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: d.IsPositive()}
}
