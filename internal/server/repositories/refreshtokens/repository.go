// Package refreshtokens declares the server-side repository contract for
// managing refresh token fingerprints in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines operations for storing, resolving and revoking refresh
// tokens. Tokens are addressed by their fingerprint; raw tokens never reach
// storage.
type Repository interface {
	// Create stores a new fingerprint for userID. Existing rows are never
	// overwritten.
	Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error

	// Find returns the record for tokenHash if it expires after now and its
	// owner is active. Otherwise it returns common.ErrorNotFound.
	Find(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)

	// Delete removes the record for tokenHash and reports whether one existed.
	// Deleting a non-existent token is not an error.
	Delete(ctx context.Context, tokenHash string) (bool, error)

	// DeleteAllForUser removes every record of userID and returns the count.
	DeleteAllForUser(ctx context.Context, userID int64) (int64, error)

	// DeleteExpired removes every record with expires_at before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
