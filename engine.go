package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/UlyssesAndy/HR-Portal-sub001/internal"
	"github.com/UlyssesAndy/HR-Portal-sub001/internal/rate"
	"github.com/UlyssesAndy/HR-Portal-sub001/jwt"
	"github.com/UlyssesAndy/HR-Portal-sub001/otp"
	"github.com/UlyssesAndy/HR-Portal-sub001/password"
	"github.com/UlyssesAndy/HR-Portal-sub001/session"
)

// Engine is the credential and session security engine. It owns every
// authentication decision for the portal: password and magic-link login,
// two-factor enrollment and verification, bearer-token validation, and
// session lifecycle.
//
// Build one through [New] and share it; all methods are safe for concurrent
// use.
type Engine struct {
	config   Config
	store    CredentialStore
	sessions *session.Store
	limiter  *rate.Limiter
	audit    *auditDispatcher
	metrics  *Metrics
	hasher   *password.Argon2
	policy   password.Policy
	totp     *otp.Manager
	jwt      *jwt.Manager

	// dummyHash is verified against on unknown-account login attempts so the
	// response time does not reveal whether an email exists.
	dummyHash string
}

// Close releases background resources. It drains and stops the audit
// dispatcher; in-flight engine calls are unaffected.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns the number of audit events dropped because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters and
// histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// Validate authenticates a bearer token and returns the caller's [Identity].
//
// In [ModeJWTOnly] the signature and time claims alone decide; no Redis round
// trip happens and revocation is invisible until expiry. In [ModeStrict] the
// session named by the jti claim must exist, be active, and match the token's
// signature prefix; a best-effort last-active touch follows.
//
//	Performance: ModeJWTOnly 0 Redis commands; ModeStrict 1 GET + 1 touch.
func (e *Engine) Validate(ctx context.Context, token string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	claims, err := e.jwt.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if e.config.ValidationMode == ModeStrict {
		sess, err := e.sessions.Get(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrUnauthorized
			}
			return nil, err
		}
		if !sess.Active {
			return nil, ErrUnauthorized
		}
		if sess.CredentialID != claims.Subject || sess.TokenPrefix != internal.TokenPrefix(token) {
			return nil, ErrUnauthorized
		}

		// Best effort; a lost touch only stales the session list.
		_ = e.sessions.Touch(ctx, claims.ID, time.Now())
	}

	return &Identity{
		CredentialID: claims.Subject,
		Email:        claims.Email,
		Name:         claims.Name,
		AvatarURL:    claims.Avatar,
		Roles:        claims.Roles,
		SessionID:    claims.ID,
	}, nil
}

// RequireRole validates the token and additionally requires the given role.
// A valid identity without the role receives [ErrForbidden].
func (e *Engine) RequireRole(ctx context.Context, token, role string) (*Identity, error) {
	identity, err := e.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !identity.HasRole(role) {
		return nil, ErrForbidden
	}
	return identity, nil
}

// CheckRate applies a named rate-limit policy to a subject and returns a
// [*RateLimitError] when the budget is exhausted. Engine login paths call
// this internally with [rate.PolicyAuth]; HTTP layers use it for API-wide
// limiting with the other policies.
func (e *Engine) CheckRate(ctx context.Context, subject string, policy rate.Policy) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.limiter == nil {
		return nil
	}

	result, err := e.limiter.Allow(ctx, subject, policy)
	if err != nil {
		return err
	}
	if !result.Allowed {
		e.metricInc(MetricRateLimitHit)
		return &RateLimitError{
			RetryAfter: result.RetryAfter,
			ResetAt:    result.ResetAt,
		}
	}
	return nil
}

// authRateSubject keys the auth budget by client IP when one is available;
// fallback is the flow's own labeled subject (email, credential, link hash)
// so headless callers are still throttled.
func (e *Engine) authRateSubject(ctx context.Context, fallback string) string {
	if e.config.RateLimit.PerIP {
		if ip := clientIPFromContext(ctx); ip != "" {
			return "ip:" + ip
		}
	}
	return fallback
}

func (e *Engine) checkAuthRate(ctx context.Context, fallback string) error {
	if !e.config.RateLimit.Enabled {
		return nil
	}
	err := e.CheckRate(ctx, e.authRateSubject(ctx, fallback), rate.PolicyAuth)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			e.metricInc(MetricLoginRateLimited)
		}
	}
	return err
}
