// Package users declares the server-side repository contract for user
// accounts, including the lockout counters kept on each row.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines operations over user accounts. Every lookup ignores
// inactive users and returns common.ErrorNotFound for them.
type Repository interface {
	// Create inserts an active user and returns it with ID and timestamps set.
	// A unique violation on email yields common.ErrDuplicateEmail.
	Create(ctx context.Context, email, name, passwordHash string) (*models.User, error)

	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)

	UpdateName(ctx context.Context, id int64, name string, now time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string, now time.Time) error

	// Deactivate clears is_active. The row is kept.
	Deactivate(ctx context.Context, id int64, now time.Time) error

	// IncrementFailedLogins atomically bumps the failure counter and, when the
	// new value reaches threshold, sets locked_until to lockUntil. It returns the
	// post-increment counter and lock.
	IncrementFailedLogins(ctx context.Context, id int64, threshold int, lockUntil, now time.Time) (int, *time.Time, error)

	// ResetFailedLogins zeroes the counter and clears the lock.
	ResetFailedLogins(ctx context.Context, id int64, now time.Time) error
}
