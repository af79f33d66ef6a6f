// Package password hashes and verifies account passwords with bcrypt and
// checks new passwords against a configurable strength policy.
package password

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

// bcrypt ignores input past this many bytes.
const bcryptMaxInput = 72

// prehashMarker leads every pre-hashed input. Passwords that already start
// with it are pre-hashed too, so no raw input can equal a pre-hashed one.
const prehashMarker = "\x00sha256:"

// Hasher produces and checks bcrypt digests. It is safe for concurrent use.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given cost. Costs outside bcrypt's
// accepted range fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost reports the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt digest of password. Every call uses a fresh
// salt, so hashing the same password twice gives different digests.
func (h *Hasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(prepare(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrHashing, err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. A malformed digest is a
// mismatch, never an error.
func (h *Hasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), prepare(password)) == nil
}

// prepare keeps every byte of long passwords significant by pre-hashing
// inputs that bcrypt would otherwise truncate.
func prepare(password string) []byte {
	if len(password) <= bcryptMaxInput && !strings.HasPrefix(password, prehashMarker) {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(prehashMarker + base64.StdEncoding.EncodeToString(sum[:]))
}
