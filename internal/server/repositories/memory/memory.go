// Package memory provides in-memory implementations of the user and refresh
// token repositories behind a RepositoryManager. Both repositories share one
// mutex-guarded state so joins (such as refresh token owner activity) behave
// like the PostgreSQL versions. Transactions are not modeled: the DBTX handed
// to the factories is ignored.
package memory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

type state struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*models.User
	byEmail map[string]int64
	tokens  []*models.RefreshToken
	now     func() time.Time
	failing error
}

// InMemoryRepositoryManager vends repositories over shared in-memory state.
type InMemoryRepositoryManager struct {
	s *state
}

// NewInMemoryRepositoryManager returns an empty store. A nil now means
// time.Now and is only used for created_at stamps.
func NewInMemoryRepositoryManager(now func() time.Time) *InMemoryRepositoryManager {
	if now == nil {
		now = time.Now
	}
	return &InMemoryRepositoryManager{s: &state{
		users:   make(map[int64]*models.User),
		byEmail: make(map[string]int64),
		now:     now,
	}}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return &userRepo{s: m.s}
}

func (m *InMemoryRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return &tokenRepo{s: m.s}
}

// FailWith makes every subsequent repository call return err, simulating an
// unreachable store. Pass nil to recover.
func (m *InMemoryRepositoryManager) FailWith(err error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.failing = err
}

// User returns a copy of the stored row regardless of its active flag.
func (m *InMemoryRepositoryManager) User(id int64) (models.User, bool) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return models.User{}, false
	}
	return copyUser(u), true
}

// TokenCount returns the number of refresh token rows owned by userID.
func (m *InMemoryRepositoryManager) TokenCount(userID int64) int {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for _, t := range m.s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

func copyUser(u *models.User) models.User {
	c := *u
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		c.LockedUntil = &t
	}
	return c
}

type userRepo struct {
	s *state
}

func (r *userRepo) Create(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing != nil {
		return nil, r.s.failing
	}
	if _, ok := r.s.byEmail[email]; ok {
		return nil, common.ErrDuplicateEmail
	}
	r.s.nextID++
	now := r.s.now()
	u := &models.User{
		ID:           r.s.nextID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.users[u.ID] = u
	r.s.byEmail[email] = u.ID
	c := copyUser(u)
	return &c, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing != nil {
		return nil, r.s.failing
	}
	id, ok := r.s.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.active(id)
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing != nil {
		return nil, r.s.failing
	}
	return r.active(id)
}

// active must be called with the lock held.
func (r *userRepo) active(id int64) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok || !u.IsActive {
		return nil, common.ErrorNotFound
	}
	c := copyUser(u)
	return &c, nil
}

func (r *userRepo) update(id int64, fn func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing != nil {
		return r.s.failing
	}
	u, ok := r.s.users[id]
	if !ok || !u.IsActive {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func (r *userRepo) UpdateName(ctx context.Context, id int64, name string, now time.Time) error {
	return r.update(id, func(u *models.User) {
		u.Name = name
		u.UpdatedAt = now
	})
}

func (r *userRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string, now time.Time) error {
	return r.update(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = now
	})
}

func (r *userRepo) Deactivate(ctx context.Context, id int64, now time.Time) error {
	return r.update(id, func(u *models.User) {
		u.IsActive = false
		u.UpdatedAt = now
	})
}

func (r *userRepo) IncrementFailedLogins(ctx context.Context, id int64, threshold int, lockUntil, now time.Time) (int, *time.Time, error) {
	var (
		count  int
		locked *time.Time
	)
	err := r.update(id, func(u *models.User) {
		u.FailedLoginAttempts++
		if u.FailedLoginAttempts >= threshold {
			t := lockUntil
			u.LockedUntil = &t
		}
		u.UpdatedAt = now
		count = u.FailedLoginAttempts
		if u.LockedUntil != nil {
			t := *u.LockedUntil
			locked = &t
		}
	})
	if err != nil {
		return 0, nil, err
	}
	return count, locked, nil
}

func (r *userRepo) ResetFailedLogins(ctx context.Context, id int64, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing != nil {
		return r.s.failing
	}
	if u, ok := r.s.users[id]; ok {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.UpdatedAt = now
	}
	return nil
}

type tokenRepo struct {
	s *state
}

func (r *tokenRepo) Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing != nil {
		return r.s.failing
	}
	r.s.nextID++
	r.s.tokens = append(r.s.tokens, &models.RefreshToken{
		ID:        r.s.nextID,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: r.s.now(),
	})
	return nil
}

func (r *tokenRepo) Find(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing != nil {
		return nil, r.s.failing
	}
	for _, t := range r.s.tokens {
		if t.TokenHash != tokenHash || !t.ExpiresAt.After(now) {
			continue
		}
		if u, ok := r.s.users[t.UserID]; !ok || !u.IsActive {
			continue
		}
		c := *t
		return &c, nil
	}
	return nil, common.ErrorNotFound
}

func (r *tokenRepo) deleteWhere(match func(t *models.RefreshToken) bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing != nil {
		return 0, r.s.failing
	}
	kept := r.s.tokens[:0]
	var n int64
	for _, t := range r.s.tokens {
		if match(t) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	r.s.tokens = kept
	return n, nil
}

func (r *tokenRepo) Delete(ctx context.Context, tokenHash string) (bool, error) {
	n, err := r.deleteWhere(func(t *models.RefreshToken) bool { return t.TokenHash == tokenHash })
	return n > 0, err
}

func (r *tokenRepo) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	return r.deleteWhere(func(t *models.RefreshToken) bool { return t.UserID == userID })
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(t *models.RefreshToken) bool { return t.ExpiresAt.Before(now) })
}
