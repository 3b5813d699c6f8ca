package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/UlyssesAndy/HR-Portal-sub001/internal"
)

// IssueMagicLink creates a single-use login link for the account behind the
// email. The call succeeds whether or not the account exists; for unknown
// emails the returned [MagicLink] carries an empty Token so the HTTP response
// never reveals which emails are registered. Only the mailer branches on
// Token.
//
// Only the token's SHA-256 hash is persisted. Issuing a new link replaces any
// outstanding one.
//
// IssueMagicLink may return an error when input validation, dependency calls, or security checks fail.
// IssueMagicLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IssueMagicLink(ctx context.Context, email string) (*MagicLink, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.checkAuthRate(ctx, "email:"+email); err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(e.config.MagicLink.TTL)

	record, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return &MagicLink{ExpiresAt: expiresAt}, nil
		}
		return nil, err
	}

	token, err := internal.NewMagicToken()
	if err != nil {
		return nil, err
	}

	if err := e.store.SetMagicLink(ctx, record.ID, internal.HashToken(token), expiresAt); err != nil {
		return nil, err
	}

	e.metricInc(MetricMagicLinkIssued)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditMagicLinkIssued,
		CredentialID: record.ID,
		Email:        record.Email,
		Success:      true,
	})

	link := &MagicLink{
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if e.config.MagicLink.BaseURL != "" {
		link.URL = e.config.MagicLink.BaseURL + "?token=" + token
	}

	return link, nil
}

// RedeemMagicLink exchanges a link token for a full login. Redemption is
// atomic at the store: under concurrent presentation of the same token
// exactly one caller wins, everyone else gets [ErrMagicLinkInvalid].
//
// RedeemMagicLink may return an error when input validation, dependency calls, or security checks fail.
// RedeemMagicLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RedeemMagicLink(ctx context.Context, token string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrMagicLinkInvalid
	}

	// Redemption spends the same auth budget as password attempts; keyed by
	// token hash when no client IP is known.
	if err := e.checkAuthRate(ctx, "link:"+internal.HashToken(token)); err != nil {
		return nil, err
	}

	now := time.Now()
	record, err := e.store.ClaimMagicLink(ctx, internal.HashToken(token), now)
	if err != nil {
		if errors.Is(err, ErrMagicLinkInvalid) || errors.Is(err, ErrMagicLinkExpired) {
			e.metricInc(MetricMagicLinkRejected)
			e.emitAudit(ctx, AuditEvent{
				EventType: auditMagicLinkRejected,
				Error:     err.Error(),
			})
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

	e.metricInc(MetricMagicLinkRedeemed)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditMagicLinkRedeemed,
		CredentialID: record.ID,
		Email:        record.Email,
		Success:      true,
	})

	return e.finalizeLogin(ctx, record, "magic_link")
}
