// Package session persists portal sessions in Redis: one binary blob per
// session plus a per-credential index set, so sign-out and "log out other
// devices" can find every live session for an employee.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrUpdateConflict is returned when an optimistic session update loses the
// WATCH race too many times in a row.
var ErrUpdateConflict = errors.New("session update conflict")

const maxRetries = 4

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session store that handles persistence, expiration,
// revocation tombstones, and the per-credential session index.
//
// Revoked sessions are kept under their original TTL with Active cleared
// instead of being deleted. A bearer token naming a revoked session must keep
// failing strict validation until the token itself would have expired; a
// deleted key could not be told apart from a never-issued one.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) indexKey(credentialID string) string {
	return s.prefix + "idx:" + credentialID
}

// Save persists a [Session] to Redis and adds it to the credential's index.
//
//	Performance: 2 Redis commands in one transaction (SET + SADD).
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	sessionKey := s.key(sess.ID)
	indexKey := s.indexKey(sess.CredentialID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, indexKey, sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by ID. Returns redis.Nil when the session does not
// exist or its stored expiry has passed. Revoked sessions are returned with
// Active cleared; callers decide what a tombstone means.
//
//	Performance: 1 Redis GET on the happy path.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID

	if time.Now().Unix() > sess.ExpiresAt {
		if err := s.deleteSessionAndIndex(ctx, sess.CredentialID, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	return sess, nil
}

// Touch updates the session's last-active timestamp, preserving the remaining
// TTL. Touching a revoked session is a no-op; a tombstone must never come
// back to life.
//
//	Performance: 1 WATCH round trip (GET + PTTL + SET).
func (s *Store) Touch(ctx context.Context, sessionID string, now time.Time) error {
	key := s.key(sessionID)

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			sess, err := Decode(data)
			if err != nil {
				return err
			}
			if !sess.Active {
				return nil
			}

			pttl, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if pttl <= 0 {
				return redis.Nil
			}

			sess.LastActiveAt = now.Unix()
			encoded, err := Encode(sess)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, pttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return ErrUpdateConflict
}

// Revoke marks a session inactive and removes it from the credential's index.
// The blob stays in Redis under its remaining TTL as a tombstone.
//
//	Performance: 1 WATCH round trip (GET + PTTL + SET + SREM).
func (s *Store) Revoke(ctx context.Context, sessionID string, now time.Time) error {
	key := s.key(sessionID)

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			sess, err := Decode(data)
			if err != nil {
				return err
			}
			if !sess.Active {
				return nil
			}

			pttl, err := tx.PTTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if pttl <= 0 {
				return redis.Nil
			}

			sess.Active = false
			sess.RevokedAt = now.Unix()
			encoded, err := Encode(sess)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, pttl)
				pipe.SRem(ctx, s.indexKey(sess.CredentialID), sessionID)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return ErrUpdateConflict
}

// RevokeAllExcept revokes every session in the credential's index except
// keepID and returns the number of sessions revoked. Sessions that vanished
// between the index read and the revoke are skipped.
func (s *Store) RevokeAllExcept(ctx context.Context, credentialID, keepID string, now time.Time) (int, error) {
	sessionIDs, err := s.redis.SMembers(ctx, s.indexKey(credentialID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var revoked int
	for _, sessionID := range sessionIDs {
		if sessionID == keepID {
			continue
		}
		if err := s.Revoke(ctx, sessionID, now); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return revoked, err
		}
		revoked++
	}

	return revoked, nil
}

// ListActive returns the credential's live sessions, most recent first is NOT
// guaranteed; callers sort. Revoked and expired entries are filtered out.
//
//	Performance: 1 SMEMBERS + 1 pipelined GET batch.
func (s *Store) ListActive(ctx context.Context, credentialID string) ([]*Session, error) {
	sessionIDs, err := s.redis.SMembers(ctx, s.indexKey(credentialID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sessionID := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(sessionID))
	}

	_, err = pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(sessionIDs))
	nowUnix := time.Now().Unix()
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		sess.ID = sessionIDs[i]
		if !sess.Active || nowUnix > sess.ExpiresAt {
			continue
		}

		sessions = append(sessions, sess)
	}

	return sessions, nil
}

// Delete removes a session and its index entry entirely. Used for logout of
// the current session, where the caller is surrendering its own token.
//
//	Performance: 1 GET + 1 Lua EVALSHA.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	return s.deleteSessionAndIndex(ctx, sess.CredentialID, sessionID)
}

// ActiveCount returns the number of indexed sessions for a credential.
func (s *Store) ActiveCount(ctx context.Context, credentialID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.indexKey(credentialID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, credentialID, sessionID string) error {
	key := s.key(sessionID)
	indexKey := s.indexKey(credentialID)

	_, err := deleteSessionLua.Run(ctx, s.redis, []string{key, indexKey}, sessionID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}
