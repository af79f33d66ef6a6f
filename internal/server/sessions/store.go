// Package sessions persists refresh token fingerprints and removes the
// expired ones in the background.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
)

// Store is the session view over a refresh token repository. Bind it to a
// transaction by building it from a repository that was created on a *sql.Tx.
//
// Infrastructure failures are returned as common.ErrStoreUnavailable; an
// unknown, expired or orphaned session is common.ErrorNotFound.
type Store struct {
	repo refreshtokens.Repository
	now  func() time.Time
}

// NewStore returns a Store. A nil now means time.Now.
func NewStore(repo refreshtokens.Repository, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{repo: repo, now: now}
}

// Store records a new session. Existing sessions are never overwritten.
func (s *Store) Store(ctx context.Context, userID int64, fingerprint string, expiresAt time.Time) error {
	if err := s.repo.Create(ctx, userID, fingerprint, expiresAt); err != nil {
		return common.StoreError("store session", err)
	}
	return nil
}

// Lookup returns the live session for fingerprint.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (*models.RefreshToken, error) {
	rt, err := s.repo.Find(ctx, fingerprint, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, common.StoreError("lookup session", err)
	}
	return rt, nil
}

// Delete removes one session and reports whether it existed.
func (s *Store) Delete(ctx context.Context, fingerprint string) (bool, error) {
	ok, err := s.repo.Delete(ctx, fingerprint)
	if err != nil {
		return false, common.StoreError("delete session", err)
	}
	return ok, nil
}

// DeleteAllForUser removes every session of userID.
func (s *Store) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, common.StoreError("delete user sessions", err)
	}
	return n, nil
}

// SweepExpired removes every session that expired before now.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, common.StoreError("sweep sessions", err)
	}
	return n, nil
}
