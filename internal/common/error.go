// Package common defines shared constants and sentinel errors used across
// the transport, service and repository layers of gophauth. Callers should
// use errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrStoreUnavailable marks infrastructure failures (connection loss,
	// pool wait or query timeout). It is the only retryable kind.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Registration / profile errors.
	ErrDuplicateEmail = errors.New("email already registered")
	ErrWeakPassword   = errors.New("weak password")
	ErrPasswordReuse  = errors.New("new password must differ from the current one")
	ErrHashing        = errors.New("password hashing failed")

	// Login errors.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrInactiveAccount    = errors.New("account is inactive")

	// Token errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenTypeMismatch   = errors.New("token type mismatch")
	ErrTokenInvalid        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUnauthorized        = errors.New("unauthorized")
)

// WeakPasswordError carries every violated password rule.
type WeakPasswordError struct {
	Violations []string
}

func (e *WeakPasswordError) Error() string {
	if len(e.Violations) == 0 {
		return ErrWeakPassword.Error()
	}
	return fmt.Sprintf("%s: %s", ErrWeakPassword, strings.Join(e.Violations, "; "))
}

func (e *WeakPasswordError) Is(target error) bool { return target == ErrWeakPassword }

// AccountLockedError carries the moment the lock lifts, when known.
type AccountLockedError struct {
	Until *time.Time
}

func (e *AccountLockedError) Error() string {
	if e.Until == nil {
		return ErrAccountLocked.Error()
	}
	return fmt.Sprintf("%s until %s", ErrAccountLocked, e.Until.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

// StoreError wraps an infrastructure failure with the operation that hit it.
// Both ErrStoreUnavailable and the cause stay matchable with errors.Is.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// IsRetryable reports whether err is an infrastructure failure that an
// idempotent caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
