// Package services contains server-side business logic. This file implements
// AuthService, which handles registration, login with progressive lockout,
// access token refresh, logout and account self-service.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/guard"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/tokens"
	"github.com/dmitrijs2005/gophauth/internal/shared"
)

// DefaultStoreTimeout bounds each store interaction when no timeout is set.
const DefaultStoreTimeout = 5 * time.Second

// LoginResult is returned by a successful login.
type LoginResult struct {
	Tokens *tokens.Pair
	User   *models.User
}

// AccessToken is returned by Refresh.
type AccessToken struct {
	Token     string
	TokenType string
	ExpiresIn int64
}

// Options tunes an AuthService. Zero values take the package defaults.
type Options struct {
	Policy          password.Policy
	MaxFailedLogins int
	LockoutDuration time.Duration
	StoreTimeout    time.Duration
	Now             func() time.Time
	Logger          logging.Logger
}

// AuthService orchestrates password hashing, token minting, session storage
// and the lockout guard. It holds no per-request state and is safe for
// concurrent use.
type AuthService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	hasher       *password.Hasher
	policy       password.Policy
	tokens       *tokens.Service
	maxFailures  int
	lockout      time.Duration
	storeTimeout time.Duration
	now          func() time.Time
	log          logging.Logger

	decoyOnce sync.Once
	decoyHash string
}

// NewAuthService wires an AuthService from its collaborators.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher *password.Hasher, ts *tokens.Service, opts Options) *AuthService {
	s := &AuthService{
		db:           db,
		repomanager:  m,
		hasher:       hasher,
		policy:       opts.Policy,
		tokens:       ts,
		maxFailures:  opts.MaxFailedLogins,
		lockout:      opts.LockoutDuration,
		storeTimeout: opts.StoreTimeout,
		now:          opts.Now,
		log:          opts.Logger,
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logging.Nop{}
	}
	s.log = s.log.With("component", "auth")
	return s
}

// NewAuthServiceFromConfig builds the hasher, policy and token service from
// server config.
func NewAuthServiceFromConfig(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) (*AuthService, error) {
	ts, err := tokens.New(tokens.Config{
		Secret:     cfg.SecretKey,
		Algorithm:  cfg.SigningAlgorithm,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, err
	}

	policy := password.DefaultPolicy()
	policy.RequireUpper = cfg.RequireUpper
	policy.RequireLower = cfg.RequireLower
	policy.RequireDigit = cfg.RequireDigit
	policy.RequireSpecial = cfg.RequireSpecial

	return NewAuthService(db, m, password.NewHasher(cfg.BcryptCost), ts, Options{
		Policy:          policy,
		MaxFailedLogins: cfg.MaxFailedLogins,
		LockoutDuration: cfg.LockoutDuration,
		StoreTimeout:    cfg.StoreTimeout,
		Logger:          log,
	}), nil
}

// Register creates an active account. Password strength is checked before the
// email so that weak passwords are rejected without touching the store.
func (s *AuthService) Register(ctx context.Context, email, name, pw string) (*models.User, error) {
	if ok, violations := s.policy.Check(pw); !ok {
		return nil, &common.WeakPasswordError{Violations: violations}
	}

	err := s.withTimeout(ctx, func(ctx context.Context) error {
		_, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
		return err
	})
	switch {
	case err == nil:
		return nil, common.ErrDuplicateEmail
	case !errors.Is(err, common.ErrorNotFound):
		return nil, common.StoreError("lookup user", err)
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		created, err := s.repomanager.Users(s.db).Create(ctx, email, name, hash)
		if err != nil {
			return err
		}
		user, err = s.repomanager.Users(s.db).GetByID(ctx, created.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, common.StoreError("create user", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates email and password. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	var user *models.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.repomanager.Users(s.db).GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		// Deactivated accounts are not returned by the lookup, so they fail
		// here as invalid credentials rather than ErrInactiveAccount.
		if errors.Is(err, common.ErrorNotFound) {
			s.verifyDecoy(pw)
			s.log.Info(ctx, "login failed", "email", email, "reason", "unknown email")
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.StoreError("lookup user", err)
	}

	g := s.lockGuard(s.db)
	if g.IsLocked(user) {
		s.log.Warn(ctx, "login rejected, account locked", "user_id", user.ID, "locked_until", *user.LockedUntil)
		return nil, &common.AccountLockedError{Until: user.LockedUntil}
	}

	if !s.hasher.Verify(pw, user.PasswordHash) {
		var (
			count  int
			locked *time.Time
		)
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			count, locked, err = g.RecordFailure(ctx, user.ID)
			return err
		})
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		s.log.Info(ctx, "login failed", "user_id", user.ID, "reason", "wrong password", "failed_attempts", count)
		if locked != nil {
			s.log.Warn(ctx, "account locked", "user_id", user.ID, "locked_until", *locked)
		}
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		if err := g.RecordSuccess(ctx, user.ID); err != nil {
			return err
		}
		return s.sessionStore(s.db).Store(ctx, user.ID, pair.RefreshFingerprint, pair.RefreshExpiresAt)
	})
	if err != nil {
		return nil, err
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	s.log.Info(ctx, "login succeeded", "user_id", user.ID)
	return &LoginResult{Tokens: pair, User: user}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// itself is not rotated and stays valid until it expires or is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	claims, err := s.tokens.Verify(refreshToken, tokens.Refresh)
	if err != nil {
		return nil, common.ErrInvalidRefreshToken
	}

	var user *models.User
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		rt, err := s.sessionStore(s.db).Lookup(ctx, tokens.Fingerprint(refreshToken))
		if err != nil {
			return err
		}
		if rt.UserID != claims.UserID {
			return common.ErrorNotFound
		}
		user, err = s.repomanager.Users(s.db).GetByID(ctx, rt.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		if common.IsRetryable(err) {
			return nil, err
		}
		return nil, common.StoreError("lookup user", err)
	}

	access, err := s.tokens.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AccessToken{Token: access, TokenType: common.TokenTypeBearer, ExpiresIn: s.tokens.ExpiresIn()}, nil
}

// Logout revokes refreshToken. It never fails: unknown tokens are ignored and
// store errors are only logged.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	var deleted bool
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.sessionStore(s.db).Delete(ctx, tokens.Fingerprint(refreshToken))
		return err
	})
	if err != nil {
		s.log.Warn(ctx, "logout could not revoke session", "error", err)
		return
	}
	s.log.Debug(ctx, "logout", "revoked", deleted)
}

// CurrentUser resolves the active user behind an access token.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.Verify(accessToken, tokens.Access)
	if err != nil {
		return nil, common.ErrUnauthorized
	}
	return s.userByID(ctx, claims.UserID)
}

// UpdateProfile changes the display name. An empty name is a no-op that
// returns the current record; transports only pass one when the field was
// omitted, since an explicit empty name fails validation.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name != "" {
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			return s.repomanager.Users(s.db).UpdateName(ctx, userID, name, s.now())
		})
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrUnauthorized
			}
			return nil, common.StoreError("update profile", err)
		}
		s.log.Info(ctx, "profile updated", "user_id", userID)
	}
	return s.userByID(ctx, userID)
}

// ChangePassword replaces the password and revokes every refresh token of the
// user in the same transaction, so no session minted before the change can be
// refreshed after it returns.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(current, user.PasswordHash) {
		return common.ErrInvalidCredentials
	}
	if current == next {
		return common.ErrPasswordReuse
	}
	if ok, violations := s.policy.Check(next); !ok {
		return &common.WeakPasswordError{Violations: violations}
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}

	var revoked int64
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repomanager.Users(tx).UpdatePassword(ctx, userID, hash, s.now()); err != nil {
				return err
			}
			var err error
			revoked, err = s.sessionStore(tx).DeleteAllForUser(ctx, userID)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUnauthorized
		}
		if common.IsRetryable(err) {
			return err
		}
		return common.StoreError("change password", err)
	}

	s.log.Info(ctx, "password changed", "user_id", userID, "revoked_sessions", revoked)
	return nil
}

// Deactivate disables the account and revokes all its sessions in one
// transaction. The row is kept.
func (s *AuthService) Deactivate(ctx context.Context, userID int64) error {
	var revoked int64
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repomanager.Users(tx).Deactivate(ctx, userID, s.now()); err != nil {
				return err
			}
			var err error
			revoked, err = s.sessionStore(tx).DeleteAllForUser(ctx, userID)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUnauthorized
		}
		if common.IsRetryable(err) {
			return err
		}
		return common.StoreError("deactivate user", err)
	}

	s.log.Info(ctx, "account deactivated", "user_id", userID, "revoked_sessions", revoked)
	return nil
}

// SweepExpiredSessions removes expired refresh tokens.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	var n int64
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.sessionStore(s.db).SweepExpired(ctx)
		return err
	})
	return n, err
}

// --- helpers below ---

func (s *AuthService) userByID(ctx context.Context, userID int64) (*models.User, error) {
	var user *models.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.repomanager.Users(s.db).GetByID(ctx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, common.StoreError("lookup user", err)
	}
	return user, nil
}

func (s *AuthService) lockGuard(db dbx.DBTX) *guard.Guard {
	return guard.New(s.repomanager.Users(db), s.maxFailures, s.lockout, s.now)
}

func (s *AuthService) sessionStore(db dbx.DBTX) *sessions.Store {
	return sessions.NewStore(s.repomanager.RefreshTokens(db), s.now)
}

// verifyDecoy spends the same bcrypt work as a real verification so unknown
// emails cannot be told apart by response time.
func (s *AuthService) verifyDecoy(pw string) {
	s.decoyOnce.Do(func() {
		s.decoyHash = decoyDigest(s.hasher.Hash)
	})
	s.hasher.Verify(pw, s.decoyHash)
}

// fallbackDecoyHash is a cost-12 bcrypt digest used when no decoy can be
// hashed at startup.
const fallbackDecoyHash = "$2b$12$E/HfYB7vBTae/SIJm3h9A.hE8nqS7tTFFb6k6.Gcx.a2Jp0ntnpxq"

func decoyDigest(hash func(string) (string, error)) string {
	decoy, err := shared.RandomHex(16)
	if err != nil {
		return fallbackDecoyHash
	}
	digest, err := hash(decoy)
	if err != nil {
		return fallbackDecoyHash
	}
	return digest
}

func (s *AuthService) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}
