// Package models holds the persistent records of the auth server and their
// outward projections.
package models

import "time"

// User is an account row. Inactive users are treated as absent by every
// lookup and are never hard-deleted.
type User struct {
	ID                  int64
	Email               string
	Name                string
	PasswordHash        string
	IsActive            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PublicUser is the projection of User that may leave the server.
type PublicUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// Public returns the outward projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		IsActive:  u.IsActive,
	}
}
