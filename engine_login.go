package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UlyssesAndy/HR-Portal-sub001/internal"
	"github.com/UlyssesAndy/HR-Portal-sub001/session"
)

// Authenticate performs a login and returns a signed token with its session.
// The attempt decides the flow: [PasswordAttempt] runs the password plus
// optional second-factor exchange, [MagicLinkAttempt] redeems a link token,
// and [ProvisionAttempt] mints a first session for a fresh credential.
//
// Authenticate may return an error when input validation, dependency calls, or security checks fail.
// Authenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Authenticate(ctx context.Context, attempt LoginAttempt) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	switch a := attempt.(type) {
	case PasswordAttempt:
		return e.passwordLogin(ctx, a)
	case MagicLinkAttempt:
		return e.RedeemMagicLink(ctx, a.Token)
	case ProvisionAttempt:
		return e.provisionLogin(ctx, a)
	default:
		return nil, fmt.Errorf("unsupported login attempt %q", attempt.attemptKind())
	}
}

func (e *Engine) passwordLogin(ctx context.Context, attempt PasswordAttempt) (*LoginResult, error) {
	if err := e.checkAuthRate(ctx, "email:"+attempt.Email); err != nil {
		return nil, err
	}

	now := time.Now()

	record, err := e.store.GetByEmail(ctx, attempt.Email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			// Burn a hash verification so unknown emails cost the same as
			// wrong passwords.
			_, _ = e.hasher.Verify(attempt.Password, e.dummyHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, AuditEvent{
				EventType: auditLoginFailure,
				Email:     attempt.Email,
				Error:     ErrInvalidCredentials.Error(),
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if record.LockedUntil.After(now) {
		e.emitAudit(ctx, AuditEvent{
			EventType:    auditLoginLocked,
			CredentialID: record.ID,
			Email:        record.Email,
			Error:        ErrAccountLocked.Error(),
		})
		return nil, &LockoutError{Until: record.LockedUntil}
	}

	if record.PasswordHash == "" {
		// Magic-link-only account; there is no password to be right.
		_, _ = e.hasher.Verify(attempt.Password, e.dummyHash)
		return nil, e.recordFailure(ctx, record, now)
	}

	ok, err := e.hasher.Verify(attempt.Password, record.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, e.recordFailure(ctx, record, now)
	}

	if record.TOTPEnabled {
		if err := e.verifySecondFactor(ctx, record, attempt, now); err != nil {
			return nil, err
		}
	}

	if e.config.Password.UpgradeOnLogin {
		e.maybeUpgradeHash(ctx, record, attempt.Password)
	}

	return e.finalizeLogin(ctx, record, "password")
}

// recordFailure runs the atomic failure increment and maps the resulting
// state to either a lockout or an attempts-remaining rejection.
func (e *Engine) recordFailure(ctx context.Context, record CredentialRecord, now time.Time) error {
	state, err := e.store.RecordLoginFailure(ctx, record.ID, e.config.Lockout.Threshold, e.config.Lockout.Duration, now)
	if err != nil {
		return err
	}

	if state.Locked(now) {
		e.metricInc(MetricAccountLockout)
		e.emitAudit(ctx, AuditEvent{
			EventType:    auditLoginLockout,
			CredentialID: record.ID,
			Email:        record.Email,
			Error:        ErrAccountLocked.Error(),
		})
		return &LockoutError{Until: state.LockedUntil}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditLoginFailure,
		CredentialID: record.ID,
		Email:        record.Email,
		Error:        ErrInvalidCredentials.Error(),
	})

	remaining := e.config.Lockout.Threshold - state.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return &CredentialError{AttemptsRemaining: remaining}
}

func (e *Engine) verifySecondFactor(ctx context.Context, record CredentialRecord, attempt PasswordAttempt, now time.Time) error {
	switch {
	case attempt.TOTPCode != "":
		if e.totp.VerifyCode(record.TOTPSecret, attempt.TOTPCode, now) {
			e.metricInc(MetricTOTPSuccess)
			return nil
		}

		// A backup code typed into the one-time-code field still counts;
		// login forms carry a single field for both.
		consumed, err := e.store.ConsumeBackupCode(ctx, record.ID, NormalizeBackupCode(attempt.TOTPCode))
		if err != nil {
			return err
		}
		if consumed {
			e.metricInc(MetricBackupCodeUsed)
			e.emitAudit(ctx, AuditEvent{
				EventType:    auditBackupCodeUsed,
				CredentialID: record.ID,
				Email:        record.Email,
				Success:      true,
			})
			return nil
		}

		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType:    auditTOTPFailure,
			CredentialID: record.ID,
			Email:        record.Email,
			Error:        ErrTOTPInvalid.Error(),
		})
		return ErrTOTPInvalid

	case attempt.BackupCode != "":
		code := NormalizeBackupCode(attempt.BackupCode)
		consumed, err := e.store.ConsumeBackupCode(ctx, record.ID, code)
		if err != nil {
			return err
		}
		if !consumed {
			e.metricInc(MetricBackupCodeFailed)
			e.emitAudit(ctx, AuditEvent{
				EventType:    auditBackupCodeFailed,
				CredentialID: record.ID,
				Email:        record.Email,
				Error:        ErrBackupCodeInvalid.Error(),
			})
			return ErrBackupCodeInvalid
		}
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, AuditEvent{
			EventType:    auditBackupCodeUsed,
			CredentialID: record.ID,
			Email:        record.Email,
			Success:      true,
		})
		return nil

	default:
		e.metricInc(MetricTOTPRequired)
		e.emitAudit(ctx, AuditEvent{
			EventType:    auditTOTPRequired,
			CredentialID: record.ID,
			Email:        record.Email,
			Error:        ErrTOTPRequired.Error(),
		})
		return ErrTOTPRequired
	}
}

// maybeUpgradeHash rehashes the password under current parameters when the
// stored digest is weaker. Best effort: a failed upgrade never blocks login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, record CredentialRecord, plaintext string) {
	upgrade, err := e.hasher.NeedsUpgrade(record.PasswordHash)
	if err != nil || !upgrade {
		return
	}

	newHash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, record.ID, newHash); err != nil {
		return
	}
	e.metricInc(MetricPasswordUpgraded)
}

func (e *Engine) provisionLogin(ctx context.Context, attempt ProvisionAttempt) (*LoginResult, error) {
	if err := e.checkAuthRate(ctx, "credential:"+attempt.CredentialID); err != nil {
		return nil, err
	}

	record, err := e.store.GetByID(ctx, attempt.CredentialID)
	if err != nil {
		return nil, err
	}
	return e.finalizeLogin(ctx, record, "provision")
}

// sessionFieldLimit mirrors the session codec's length-prefixed string cap.
const sessionFieldLimit = 255

// clampSessionField trims caller-controlled request metadata (user agents,
// proxy-supplied addresses) to the session codec's field limit.
func clampSessionField(value string) string {
	if len(value) > sessionFieldLimit {
		return value[:sessionFieldLimit]
	}
	return value
}

// finalizeLogin is the shared tail of every successful login flow: stamp the
// success on the record, issue the token, and persist the session under the
// token's jti.
func (e *Engine) finalizeLogin(ctx context.Context, record CredentialRecord, method string) (*LoginResult, error) {
	now := time.Now()
	ip := clientIPFromContext(ctx)

	if err := e.store.RecordLoginSuccess(ctx, record.ID, now, ip); err != nil {
		return nil, err
	}

	token, claims, err := e.jwt.Issue(record.ID, record.Email, record.Name, record.AvatarURL, record.Roles, now)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:           claims.ID,
		CredentialID: record.ID,
		TokenPrefix:  internal.TokenPrefix(token),
		DeviceInfo:   clampSessionField(deviceInfoFromContext(ctx)),
		IPAddress:    clampSessionField(ip),
		Active:       true,
		CreatedAt:    now.Unix(),
		LastActiveAt: now.Unix(),
		ExpiresAt:    claims.ExpiresAt.Unix(),
	}
	if err := e.sessions.Save(ctx, sess, claims.ExpiresAt.Sub(now)); err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditLoginSuccess,
		CredentialID: record.ID,
		Email:        record.Email,
		SessionID:    claims.ID,
		Success:      true,
		Metadata:     map[string]string{"method": method},
	})

	return &LoginResult{
		Token:        token,
		CredentialID: record.ID,
		SessionID:    claims.ID,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}
