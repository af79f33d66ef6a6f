// Package guard implements progressive account lockout: consecutive failed
// logins are counted per user and the account is locked for a fixed window
// once a threshold is reached.
package guard

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

const (
	DefaultMaxFailures = 5
	DefaultLockout     = 30 * time.Minute
)

// Guard tracks failures through a users.Repository. The counter lives on the
// user row and is updated atomically by the store, so no in-process locking
// is needed.
type Guard struct {
	repo        users.Repository
	maxFailures int
	lockout     time.Duration
	now         func() time.Time
}

// New returns a Guard. Non-positive limits take the defaults; a nil now means
// time.Now.
func New(repo users.Repository, maxFailures int, lockout time.Duration, now func() time.Time) *Guard {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if lockout <= 0 {
		lockout = DefaultLockout
	}
	if now == nil {
		now = time.Now
	}
	return &Guard{repo: repo, maxFailures: maxFailures, lockout: lockout, now: now}
}

// IsLocked reports whether the user's lock is still in force. A lock in the
// past is simply ignored; nothing clears it until the next success.
func (g *Guard) IsLocked(u *models.User) bool {
	return u.LockedUntil != nil && g.now().Before(*u.LockedUntil)
}

// RecordFailure counts one failed login and returns the new count together
// with the lock deadline, which is set once the count reaches the threshold.
func (g *Guard) RecordFailure(ctx context.Context, userID int64) (int, *time.Time, error) {
	now := g.now()
	count, lockedUntil, err := g.repo.IncrementFailedLogins(ctx, userID, g.maxFailures, now.Add(g.lockout), now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, nil, err
		}
		return 0, nil, common.StoreError("record login failure", err)
	}
	return count, lockedUntil, nil
}

// RecordSuccess clears the counter and any lock.
func (g *Guard) RecordSuccess(ctx context.Context, userID int64) error {
	if err := g.repo.ResetFailedLogins(ctx, userID, g.now()); err != nil {
		return common.StoreError("reset login failures", err)
	}
	return nil
}
