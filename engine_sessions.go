package authcore

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sessions lists the caller's live sessions, newest first. The entry matching
// the presented token is flagged IsCurrent. Tokens are never included.
//
// Sessions may return an error when input validation, dependency calls, or security checks fail.
// Sessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Sessions(ctx context.Context, identity *Identity) ([]SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if identity == nil {
		return nil, ErrUnauthorized
	}

	active, err := e.sessions.ListActive(ctx, identity.CredentialID)
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(active))
	for _, sess := range active {
		infos = append(infos, SessionInfo{
			ID:           sess.ID,
			DeviceInfo:   sess.DeviceInfo,
			IPAddress:    sess.IPAddress,
			CreatedAt:    time.Unix(sess.CreatedAt, 0),
			LastActiveAt: time.Unix(sess.LastActiveAt, 0),
			ExpiresAt:    time.Unix(sess.ExpiresAt, 0),
			IsCurrent:    sess.ID == identity.SessionID,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	return infos, nil
}

// RevokeSession revokes one of the caller's other sessions. Revoking the
// session behind the presented token is refused with
// [ErrCannotRevokeCurrentSession]; that flow is [Engine.Logout]. A session ID
// belonging to someone else reads as [ErrSessionNotFound].
//
// RevokeSession may return an error when input validation, dependency calls, or security checks fail.
// RevokeSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeSession(ctx context.Context, identity *Identity, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if identity == nil {
		return ErrUnauthorized
	}
	if sessionID == identity.SessionID {
		return ErrCannotRevokeCurrentSession
	}

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		return err
	}
	if sess.CredentialID != identity.CredentialID {
		return ErrSessionNotFound
	}
	if !sess.Active {
		return nil
	}

	if err := e.sessions.Revoke(ctx, sessionID, time.Now()); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		return err
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditSessionRevoked,
		CredentialID: identity.CredentialID,
		SessionID:    sessionID,
		Success:      true,
	})

	return nil
}

// RevokeOtherSessions revokes every session of the caller except the current
// one and returns the number revoked. This is the "log out other devices"
// action.
//
// RevokeOtherSessions may return an error when input validation, dependency calls, or security checks fail.
// RevokeOtherSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeOtherSessions(ctx context.Context, identity *Identity) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if identity == nil {
		return 0, ErrUnauthorized
	}

	revoked, err := e.sessions.RevokeAllExcept(ctx, identity.CredentialID, identity.SessionID, time.Now())
	if err != nil {
		return revoked, err
	}

	for i := 0; i < revoked; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditLogoutAll,
		CredentialID: identity.CredentialID,
		SessionID:    identity.SessionID,
		Success:      true,
	})

	return revoked, nil
}

// Logout ends the caller's own session. The caller is surrendering its token,
// so the record is deleted outright rather than tombstoned.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, identity *Identity) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if identity == nil {
		return ErrUnauthorized
	}

	if err := e.sessions.Delete(ctx, identity.SessionID); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditLogout,
		CredentialID: identity.CredentialID,
		SessionID:    identity.SessionID,
		Success:      true,
	})

	return nil
}
