// Package tokens mints and verifies the signed access and refresh tokens of
// the auth server.
package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type discriminates access tokens from refresh tokens.
type Type string

const (
	Access  Type = "access"
	Refresh Type = "refresh"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the token payload. Email is only set on access tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Type   Type   `json:"type"`
}

// Pair is the result of a successful login.
type Pair struct {
	AccessToken        string
	RefreshToken       string
	RefreshFingerprint string
	RefreshExpiresAt   time.Time
	TokenType          string
	ExpiresIn          int64
}

// Config configures a Service. Zero TTLs take the defaults and an empty
// Algorithm means HS256.
type Config struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service signs and verifies tokens with a shared HMAC secret.
type Service struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, both for minting and for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New validates cfg and returns a Service.
func New(cfg Config, opts ...Option) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("tokens: empty secret")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("tokens: unsupported algorithm %q", cfg.Algorithm)
	}

	s := &Service{
		secret:     []byte(cfg.Secret),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL reports the lifetime of access tokens.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// ExpiresIn is the access token lifetime in whole seconds.
func (s *Service) ExpiresIn() int64 {
	return int64(s.accessTTL / time.Second)
}

// IssueAccess mints an access token for the user.
func (s *Service) IssueAccess(userID int64, email string) (string, error) {
	token, _, err := s.sign(Claims{UserID: userID, Email: email, Type: Access}, s.accessTTL)
	return token, err
}

// IssueRefresh mints a refresh token for the user and returns its expiry.
func (s *Service) IssueRefresh(userID int64) (string, time.Time, error) {
	return s.sign(Claims{UserID: userID, Type: Refresh}, s.refreshTTL)
}

// IssuePair mints an access and a refresh token together.
func (s *Service) IssuePair(userID int64, email string) (*Pair, error) {
	access, err := s.IssueAccess(userID, email)
	if err != nil {
		return nil, err
	}
	refresh, expiresAt, err := s.IssueRefresh(userID)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:        access,
		RefreshToken:       refresh,
		RefreshFingerprint: Fingerprint(refresh),
		RefreshExpiresAt:   expiresAt,
		TokenType:          common.TokenTypeBearer,
		ExpiresIn:          s.ExpiresIn(),
	}, nil
}

func (s *Service) sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the signature, algorithm and expiry of token, then its type.
// It returns common.ErrTokenExpired, common.ErrTokenTypeMismatch or
// common.ErrTokenInvalid.
func (s *Service) Verify(token string, expected Type) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrTokenInvalid
	}
	if !parsed.Valid || claims.UserID <= 0 {
		return nil, common.ErrTokenInvalid
	}
	if claims.Type != expected {
		return nil, common.ErrTokenTypeMismatch
	}
	return claims, nil
}

// Fingerprint returns the hex SHA-256 of token. Only fingerprints of refresh
// tokens are persisted.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
