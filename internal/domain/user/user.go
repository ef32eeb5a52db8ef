// Package user holds the minimal account state the shop core consumes. Login,
// password hashing, and token issuance live outside this service.
package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a user id or token does not resolve.
var ErrNotFound = errors.New("user not found")

// User is the authenticated-user context the core operates on. IsNewUser is
// true until the user's first successful checkout and permanently false after.
type User struct {
	ID        string
	Email     string
	IsAdmin   bool
	IsNewUser bool
}

// Repository defines persistence operations for users.
type Repository interface {
	// GetByTokenHash resolves the bearer-token hash attached to a request.
	GetByTokenHash(ctx context.Context, hash string) (*User, error)
	Create(ctx context.Context, u *User, tokenHash string) error
	// MarkReturning permanently clears the new-user flag.
	MarkReturning(ctx context.Context, id string) error
}
