package authcore

import (
	"context"
	"strings"
	"time"

	"github.com/UlyssesAndy/HR-Portal-sub001/internal"
)

// NormalizeBackupCode maps user input to the canonical stored form: uppercase
// with separators removed. "ab12-cd34" and "AB12CD34" are the same code.
func NormalizeBackupCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c == ' ' || c == '-':
			continue
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// FormatBackupCode renders a canonical code for display with a separator at
// the midpoint, e.g. "AB12-CD34".
func FormatBackupCode(code string) string {
	if len(code) < 2 {
		return code
	}
	mid := len(code) / 2
	return code[:mid] + "-" + code[mid:]
}

// generateBackupCodes returns the display forms handed to the user and the
// canonical forms handed to the store, index-aligned.
func (e *Engine) generateBackupCodes() (display []string, canonical []string, err error) {
	count := e.config.BackupCodes.Count
	length := e.config.BackupCodes.Length

	display = make([]string, 0, count)
	canonical = make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := internal.NewBackupCode(length)
		if err != nil {
			return nil, nil, err
		}
		canonical = append(canonical, code)
		display = append(display, FormatBackupCode(code))
	}

	return display, canonical, nil
}

// RegenerateBackupCodes replaces the account's backup codes with a fresh set
// and returns the display forms. The previous set stops working immediately.
// A valid TOTP code is required; backup codes cannot authorize their own
// replacement.
//
// RegenerateBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// RegenerateBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, credentialID, totpCode string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.store.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if !record.TOTPEnabled {
		return nil, ErrTOTPNotEnabled
	}
	if !e.totp.VerifyCode(record.TOTPSecret, totpCode, time.Now()) {
		e.metricInc(MetricTOTPFailure)
		return nil, ErrTOTPInvalid
	}

	display, canonical, err := e.generateBackupCodes()
	if err != nil {
		return nil, err
	}
	if err := e.store.ReplaceBackupCodes(ctx, credentialID, canonical); err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditBackupRegenerated,
		CredentialID: credentialID,
		Email:        record.Email,
		Success:      true,
	})

	return display, nil
}
