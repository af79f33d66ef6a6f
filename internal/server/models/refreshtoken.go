package models

import "time"

// RefreshToken is a persisted refresh session. Only the SHA-256 fingerprint of
// the token is stored.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
