package authcore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChangePassword rotates the account password. The current password must
// verify, the new one must pass policy and differ from the current one. On
// success every session except the caller's own is revoked; a stolen token
// does not survive a password change.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, credentialID, currentPassword, newPassword, currentSessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	record, err := e.store.GetByID(ctx, credentialID)
	if err != nil {
		return err
	}

	if record.PasswordHash != "" {
		ok, err := e.hasher.Verify(currentPassword, record.PasswordHash)
		if err != nil {
			return err
		}
		if !ok {
			e.metricInc(MetricPasswordChangeRejected)
			e.emitAudit(ctx, AuditEvent{
				EventType:    auditPasswordRejected,
				CredentialID: credentialID,
				Email:        record.Email,
				Error:        ErrInvalidCredentials.Error(),
			})
			return ErrInvalidCredentials
		}
	}

	if err := e.policy.Check(newPassword); err != nil {
		e.metricInc(MetricPasswordChangeRejected)
		return err
	}

	if record.PasswordHash != "" {
		same, err := e.hasher.Verify(newPassword, record.PasswordHash)
		if err != nil {
			return err
		}
		if same {
			e.metricInc(MetricPasswordChangeRejected)
			return ErrPasswordReuse
		}
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, credentialID, newHash); err != nil {
		return err
	}

	revoked, err := e.sessions.RevokeAllExcept(ctx, credentialID, currentSessionID, time.Now())
	if err != nil {
		return err
	}
	for i := 0; i < revoked; i++ {
		e.metricInc(MetricSessionRevoked)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditPasswordChanged,
		CredentialID: credentialID,
		Email:        record.Email,
		SessionID:    currentSessionID,
		Success:      true,
	})

	return nil
}

// ProvisionCredential creates a new credential record for an onboarded
// employee. Password is optional; without one the account signs in through
// magic links only. The assigned credential ID is returned on the record.
//
// ProvisionCredential may return an error when input validation, dependency calls, or security checks fail.
// ProvisionCredential does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ProvisionCredential(ctx context.Context, input ProvisionInput) (CredentialRecord, error) {
	if e == nil {
		return CredentialRecord{}, ErrEngineNotReady
	}

	record := CredentialRecord{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Name:      input.Name,
		AvatarURL: input.AvatarURL,
		Roles:     input.Roles,
	}
	if record.Email == "" {
		return CredentialRecord{}, ErrInvalidCredentials
	}

	if input.Password != "" {
		if err := e.policy.Check(input.Password); err != nil {
			return CredentialRecord{}, err
		}
		hash, err := e.hasher.Hash(input.Password)
		if err != nil {
			return CredentialRecord{}, err
		}
		record.PasswordHash = hash
	}

	if err := e.store.Create(ctx, record); err != nil {
		return CredentialRecord{}, err
	}

	e.metricInc(MetricCredentialProvisioned)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditCredentialCreated,
		CredentialID: record.ID,
		Email:        record.Email,
		Success:      true,
	})

	return record, nil
}
