package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrWeakPassword is an exported constant or variable used by the authentication engine.
var ErrWeakPassword = errors.New("password does not meet policy")

// PolicyError defines a public type used by authcore APIs.
//
// PolicyError instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PolicyError struct {
	// Reasons lists every violated criterion, so callers can surface all of
	// them at once instead of one per attempt.
	Reasons []string
}

// Error describes the error operation and its observable behavior.
//
// Error may return an error when input validation, dependency calls, or security checks fail.
// Error does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *PolicyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrWeakPassword, strings.Join(e.Reasons, "; "))
}

// Unwrap describes the unwrap operation and its observable behavior.
//
// Unwrap may return an error when input validation, dependency calls, or security checks fail.
// Unwrap does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *PolicyError) Unwrap() error {
	return ErrWeakPassword
}

// Policy defines a public type used by authcore APIs.
//
// Policy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Policy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool

	// SpecialChars overrides the special-character set. Empty means any rune
	// that is neither a letter nor a digit counts.
	SpecialChars string
}

// DefaultPolicy is an exported constant or variable used by the authentication engine.
var DefaultPolicy = Policy{
	MinLength:        8,
	RequireUppercase: true,
	RequireLowercase: true,
	RequireDigit:     true,
	RequireSpecial:   true,
}

// Check validates the candidate password against every criterion and returns a
// [*PolicyError] listing all violations, or nil when the password passes.
// Length is counted in runes so multi-byte characters are not over-counted.
func (p Policy) Check(password string) error {
	var reasons []string

	if len([]rune(password)) < p.MinLength {
		reasons = append(reasons, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if p.isSpecial(r) {
			hasSpecial = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		reasons = append(reasons, "must contain an uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		reasons = append(reasons, "must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		reasons = append(reasons, "must contain a digit")
	}
	if p.RequireSpecial && !hasSpecial {
		reasons = append(reasons, "must contain a special character")
	}

	if len(reasons) > 0 {
		return &PolicyError{Reasons: reasons}
	}

	return nil
}

func (p Policy) isSpecial(r rune) bool {
	if p.SpecialChars != "" {
		return strings.ContainsRune(p.SpecialChars, r)
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
