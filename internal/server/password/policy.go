package password

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Specials is the set of characters accepted by the RequireSpecial rule.
const Specials = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// Length bounds applied when a Policy leaves them unset.
const (
	DefaultMinLength = 8
	DefaultMaxLength = 100
)

// Length violations as reported under the default bounds.
var (
	MsgTooShort = TooShortMessage(DefaultMinLength)
	MsgTooLong  = TooLongMessage(DefaultMaxLength)
)

// TooShortMessage is the violation reported for passwords under n characters.
func TooShortMessage(n int) string {
	return fmt.Sprintf("password must be at least %d characters", n)
}

// TooLongMessage is the violation reported for passwords over n characters.
func TooLongMessage(n int) string {
	return fmt.Sprintf("password must be at most %d characters", n)
}

// Violation messages reported by Policy.Check.
const (
	MsgWhitespace     = "password must not contain whitespace"
	MsgMissingUpper   = "password must contain an upper-case letter"
	MsgMissingLower   = "password must contain a lower-case letter"
	MsgMissingDigit   = "password must contain a digit"
	MsgMissingSpecial = "password must contain a special character"
)

// Policy describes the strength rules. The zero value enforces only the
// length and whitespace rules; the Require* toggles add character classes.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy returns the baseline policy: 8 to 100 characters, no
// whitespace, no character-class requirements.
func DefaultPolicy() Policy {
	return Policy{MinLength: DefaultMinLength, MaxLength: DefaultMaxLength}
}

// Check evaluates every rule and returns all violations together. Lengths
// are counted in characters, not bytes.
func (p Policy) Check(password string) (bool, []string) {
	minLen, maxLen := p.MinLength, p.MaxLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}

	var violations []string

	n := utf8.RuneCountInString(password)
	if n < minLen {
		violations = append(violations, TooShortMessage(minLen))
	}
	if n > maxLen {
		violations = append(violations, TooLongMessage(maxLen))
	}
	if strings.IndexFunc(password, unicode.IsSpace) >= 0 {
		violations = append(violations, MsgWhitespace)
	}

	if p.RequireUpper && strings.IndexFunc(password, unicode.IsUpper) < 0 {
		violations = append(violations, MsgMissingUpper)
	}
	if p.RequireLower && strings.IndexFunc(password, unicode.IsLower) < 0 {
		violations = append(violations, MsgMissingLower)
	}
	if p.RequireDigit && strings.IndexFunc(password, unicode.IsDigit) < 0 {
		violations = append(violations, MsgMissingDigit)
	}
	if p.RequireSpecial && !strings.ContainsAny(password, Specials) {
		violations = append(violations, MsgMissingSpecial)
	}

	return len(violations) == 0, violations
}
