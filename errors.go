package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is an exported constant or variable used by the authentication engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is an exported constant or variable used by the authentication engine.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited is an exported constant or variable used by the authentication engine.
	ErrRateLimited = errors.New("too many requests")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrTOTPRequired is an exported constant or variable used by the authentication engine.
	ErrTOTPRequired = errors.New("totp required")
	// ErrTOTPInvalid is an exported constant or variable used by the authentication engine.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrTOTPNotProvisioned is an exported constant or variable used by the authentication engine.
	ErrTOTPNotProvisioned = errors.New("totp not provisioned")
	// ErrTOTPAlreadyEnabled is an exported constant or variable used by the authentication engine.
	ErrTOTPAlreadyEnabled = errors.New("totp already enabled")
	// ErrTOTPNotEnabled is an exported constant or variable used by the authentication engine.
	ErrTOTPNotEnabled = errors.New("totp not enabled")
	// ErrBackupCodeInvalid is an exported constant or variable used by the authentication engine.
	ErrBackupCodeInvalid = errors.New("invalid backup code")
	// ErrMagicLinkInvalid is an exported constant or variable used by the authentication engine.
	ErrMagicLinkInvalid = errors.New("magic link invalid")
	// ErrMagicLinkExpired is an exported constant or variable used by the authentication engine.
	ErrMagicLinkExpired = errors.New("magic link expired or already used")
	// ErrPasswordReuse is an exported constant or variable used by the authentication engine.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrCannotRevokeCurrentSession is an exported constant or variable used by the authentication engine.
	ErrCannotRevokeCurrentSession = errors.New("cannot revoke current session")
	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCredentialNotFound is an exported constant or variable used by the authentication engine.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialExists is an exported constant or variable used by the authentication engine.
	ErrCredentialExists = errors.New("credential already exists")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// LockoutError reports a lockout rejection together with the time the lock clears.
// It unwraps to [ErrAccountLocked].
type LockoutError struct {
	Until time.Time
}

func (e *LockoutError) Error() string {
	remaining := time.Until(e.Until).Round(time.Minute)
	if remaining < time.Minute {
		remaining = time.Minute
	}
	return fmt.Sprintf("account locked: try again in %d minutes", int(remaining.Minutes()))
}

// Unwrap describes the unwrap operation and its observable behavior.
func (e *LockoutError) Unwrap() error { return ErrAccountLocked }

// CredentialError reports a failed password verification together with the number
// of attempts left before lockout. It unwraps to [ErrInvalidCredentials].
type CredentialError struct {
	AttemptsRemaining int
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("invalid credentials: %d attempts remaining", e.AttemptsRemaining)
}

// Unwrap describes the unwrap operation and its observable behavior.
func (e *CredentialError) Unwrap() error { return ErrInvalidCredentials }

// RateLimitError reports a denied rate-limit check together with the retry delay.
// It unwraps to [ErrRateLimited].
type RateLimitError struct {
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many requests: retry after %s", e.RetryAfter.Round(time.Second))
}

// Unwrap describes the unwrap operation and its observable behavior.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
