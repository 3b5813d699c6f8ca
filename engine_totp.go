package authcore

import (
	"context"
	"time"
)

// GenerateTOTPSetup starts two-factor enrollment. It stores a fresh pending
// secret on the record without enabling enforcement; logins keep working
// password-only until [Engine.EnableTOTP] confirms the secret with a valid
// code. Calling again replaces the pending secret.
//
// GenerateTOTPSetup may return an error when input validation, dependency calls, or security checks fail.
// GenerateTOTPSetup does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) GenerateTOTPSetup(ctx context.Context, credentialID string) (*TOTPSetup, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.store.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if record.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := e.store.SetTOTPSecret(ctx, credentialID, secret); err != nil {
		return nil, err
	}

	return &TOTPSetup{
		SecretBase32: secret,
		ProvisionURI: e.totp.ProvisionURI(secret, record.Email),
	}, nil
}

// EnableTOTP confirms the pending secret with a code from the user's
// authenticator and turns enforcement on. On success it mints the account's
// backup codes and returns their display forms; this is the only time they
// are visible.
//
// EnableTOTP may return an error when input validation, dependency calls, or security checks fail.
// EnableTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EnableTOTP(ctx context.Context, credentialID, code string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.store.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if record.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}
	if record.TOTPSecret == "" {
		return nil, ErrTOTPNotProvisioned
	}

	now := time.Now()
	if !e.totp.VerifyCode(record.TOTPSecret, code, now) {
		e.metricInc(MetricTOTPFailure)
		return nil, ErrTOTPInvalid
	}

	if err := e.store.ActivateTOTP(ctx, credentialID, now); err != nil {
		return nil, err
	}

	display, canonical, err := e.generateBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := e.store.ReplaceBackupCodes(ctx, credentialID, canonical); err != nil {
		return nil, err
	}

	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditTOTPEnabled,
		CredentialID: credentialID,
		Email:        record.Email,
		Success:      true,
	})

	return display, nil
}

// DisableTOTP turns two-factor enforcement off. The caller must prove control
// of the account with a current TOTP code or, as a recovery path, the account
// password. Disabling clears the secret and all backup codes.
//
// DisableTOTP may return an error when input validation, dependency calls, or security checks fail.
// DisableTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DisableTOTP(ctx context.Context, credentialID, totpCode, currentPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	record, err := e.store.GetByID(ctx, credentialID)
	if err != nil {
		return err
	}
	if !record.TOTPEnabled {
		return ErrTOTPNotEnabled
	}

	switch {
	case totpCode != "":
		if !e.totp.VerifyCode(record.TOTPSecret, totpCode, time.Now()) {
			e.metricInc(MetricTOTPFailure)
			return ErrTOTPInvalid
		}
	case currentPassword != "" && record.PasswordHash != "":
		ok, err := e.hasher.Verify(currentPassword, record.PasswordHash)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCredentials
		}
	default:
		return ErrTOTPRequired
	}

	if err := e.store.DisableTOTP(ctx, credentialID); err != nil {
		return err
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditTOTPDisabled,
		CredentialID: credentialID,
		Email:        record.Email,
		Success:      true,
	})

	return nil
}
