package authcore

import (
	"context"
	"time"
)

const (
	auditLoginSuccess      = "login.success"
	auditLoginFailure      = "login.failure"
	auditLoginLocked       = "login.locked"
	auditLoginLockout      = "login.lockout"
	auditTOTPRequired      = "login.totp_required"
	auditTOTPFailure       = "login.totp_failure"
	auditBackupCodeUsed    = "login.backup_code_used"
	auditBackupCodeFailed  = "login.backup_code_failed"
	auditMagicLinkIssued   = "magic_link.issued"
	auditMagicLinkRedeemed = "magic_link.redeemed"
	auditMagicLinkRejected = "magic_link.rejected"
	auditTOTPEnabled       = "totp.enabled"
	auditTOTPDisabled      = "totp.disabled"
	auditBackupRegenerated = "totp.backup_codes_regenerated"
	auditSessionRevoked    = "session.revoked"
	auditLogout            = "session.logout"
	auditLogoutAll         = "session.logout_all"
	auditPasswordChanged   = "password.changed"
	auditPasswordRejected  = "password.change_rejected"
	auditCredentialCreated = "credential.provisioned"
)

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}
