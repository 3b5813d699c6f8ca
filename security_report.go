package authcore

import (
	"context"
	"time"
)

// SecurityReport is the per-account security summary returned by
// [Engine.SecurityReport]. It powers the portal's account security page.
type SecurityReport struct {
	CredentialID  string
	Email         string
	HasPassword   bool
	TOTPEnabled   bool
	TOTPEnabledAt time.Time

	// BackupCodesRemaining counts unused backup codes. Below 3 the portal
	// nudges the user to regenerate.
	BackupCodesRemaining int

	ActiveSessions int
	LastLoginAt    time.Time
	LastLoginIP    string
	Locked         bool
	LockedUntil    time.Time
}

// PasswordConfigReport defines a public type used by authcore APIs.
//
// PasswordConfigReport instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// EnginePosture is the engine-wide configuration summary returned by
// [Engine.Posture]. It is safe to expose to operators: no key material is
// included.
type EnginePosture struct {
	SigningAlgorithm   string
	ValidationMode     ValidationMode
	StrictMode         bool
	AccessTTL          time.Duration
	SessionLifetime    time.Duration
	Argon2             PasswordConfigReport
	LockoutThreshold   int
	LockoutDuration    time.Duration
	MagicLinkTTL       time.Duration
	RateLimitingActive bool
	AuditActive        bool
	MetricsActive      bool
}

// Posture reports how the engine is configured, for ops dashboards and
// startup logs.
func (e *Engine) Posture() EnginePosture {
	if e == nil {
		return EnginePosture{}
	}

	return EnginePosture{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		ValidationMode:   e.config.ValidationMode,
		StrictMode:       e.config.ValidationMode == ModeStrict,
		AccessTTL:        e.config.JWT.AccessTTL,
		SessionLifetime:  e.config.Session.Lifetime,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		LockoutThreshold:   e.config.Lockout.Threshold,
		LockoutDuration:    e.config.Lockout.Duration,
		MagicLinkTTL:       e.config.MagicLink.TTL,
		RateLimitingActive: e.config.RateLimit.Enabled,
		AuditActive:        e.config.Audit.Enabled,
		MetricsActive:      e.config.Metrics.Enabled,
	}
}

// SecurityReport assembles the account's security posture from the credential
// record and the session index.
//
// SecurityReport may return an error when input validation, dependency calls, or security checks fail.
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport(ctx context.Context, credentialID string) (*SecurityReport, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.store.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	active, err := e.sessions.ListActive(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	report := &SecurityReport{
		CredentialID:         record.ID,
		Email:                record.Email,
		HasPassword:          record.PasswordHash != "",
		TOTPEnabled:          record.TOTPEnabled,
		TOTPEnabledAt:        record.TOTPEnabledAt,
		BackupCodesRemaining: len(record.BackupCodes),
		ActiveSessions:       len(active),
		LastLoginAt:          record.LastLoginAt,
		LastLoginIP:          record.LastLoginIP,
		Locked:               record.LockedUntil.After(now),
	}
	if report.Locked {
		report.LockedUntil = record.LockedUntil
	}

	return report, nil
}
