package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/marketloop/storefront/internal/domain/user"
)

const (
	getUserByTokenHashSQL = `SELECT id, email, is_admin, is_new_user FROM users WHERE token_hash = $1`

	insertUserSQL = `INSERT INTO users (id, email, token_hash, is_admin, is_new_user)
		VALUES ($1, $2, $3, $4, $5)`

	markUserReturningSQL = `UPDATE users SET is_new_user = FALSE WHERE id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. Tokens are
// never stored; only their SHA-256 hex digest lands in token_hash.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*user.User, error) {
	return r.getOne(ctx, getUserByTokenHashSQL, tokenHash)
}

func (r *UserRepository) getOne(ctx context.Context, sql, arg string) (*user.User, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "getting user")
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrap(err, "getting user")
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User, tokenHash string) error {
	_, err := r.db.q(ctx).Exec(ctx, insertUserSQL, u.ID, u.Email, tokenHash, u.IsAdmin, u.IsNewUser)
	if err != nil {
		return errors.Wrapf(err, "creating user %q", u.ID)
	}
	return nil
}

func (r *UserRepository) MarkReturning(ctx context.Context, id string) error {
	tag, err := r.db.q(ctx).Exec(ctx, markUserReturningSQL, id)
	if err != nil {
		return errors.Wrapf(err, "marking user %q returning", id)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.IsAdmin, &u.IsNewUser)
	return u, err
}
