// Package memstore is an in-memory [authcore.CredentialStore] for tests,
// examples, and single-process deployments. A single mutex serializes every
// mutation, which trivially satisfies the store's atomicity contracts.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	authcore "github.com/UlyssesAndy/HR-Portal-sub001"
)

// Store defines a public type used by authcore APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*authcore.CredentialRecord
	byEmail map[string]string
}

// NewStore describes the newstore operation and its observable behavior.
//
// NewStore may return an error when input validation, dependency calls, or security checks fail.
// NewStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]*authcore.CredentialRecord),
		byEmail: make(map[string]string),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyRecord(r *authcore.CredentialRecord) authcore.CredentialRecord {
	out := *r
	out.Roles = append([]string(nil), r.Roles...)
	out.BackupCodes = append([]string(nil), r.BackupCodes...)
	return out
}

// GetByEmail describes the getbyemail operation and its observable behavior.
//
// GetByEmail may return an error when input validation, dependency calls, or security checks fail.
// GetByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetByEmail(ctx context.Context, email string) (authcore.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return authcore.CredentialRecord{}, authcore.ErrCredentialNotFound
	}
	return copyRecord(s.byID[id]), nil
}

// GetByID describes the getbyid operation and its observable behavior.
//
// GetByID may return an error when input validation, dependency calls, or security checks fail.
// GetByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetByID(ctx context.Context, id string) (authcore.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return authcore.CredentialRecord{}, authcore.ErrCredentialNotFound
	}
	return copyRecord(record), nil
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Create(ctx context.Context, record authcore.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(record.Email)
	if _, exists := s.byEmail[email]; exists {
		return authcore.ErrCredentialExists
	}
	if _, exists := s.byID[record.ID]; exists {
		return authcore.ErrCredentialExists
	}

	stored := copyRecord(&record)
	stored.Email = email
	s.byID[record.ID] = &stored
	s.byEmail[email] = record.ID
	return nil
}

// UpdatePasswordHash describes the updatepasswordhash operation and its observable behavior.
//
// UpdatePasswordHash may return an error when input validation, dependency calls, or security checks fail.
// UpdatePasswordHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return authcore.ErrCredentialNotFound
	}
	record.PasswordHash = hash
	return nil
}

// RecordLoginFailure describes the recordloginfailure operation and its observable behavior.
//
// RecordLoginFailure may return an error when input validation, dependency calls, or security checks fail.
// RecordLoginFailure does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (authcore.LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return authcore.LockoutState{}, authcore.ErrCredentialNotFound
	}

	record.FailedAttempts++
	if record.FailedAttempts >= threshold {
		record.LockedUntil = now.Add(lockFor)
		record.FailedAttempts = 0
		return authcore.LockoutState{
			Attempts:    threshold,
			LockedUntil: record.LockedUntil,
		}, nil
	}

	return authcore.LockoutState{
		Attempts:    record.FailedAttempts,
		LockedUntil: record.LockedUntil,
	}, nil
}

// RecordLoginSuccess describes the recordloginsuccess operation and its observable behavior.
//
// RecordLoginSuccess may return an error when input validation, dependency calls, or security checks fail.
// RecordLoginSuccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RecordLoginSuccess(ctx context.Context, id string, now time.Time, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return authcore.ErrCredentialNotFound
	}
	record.FailedAttempts = 0
	record.LockedUntil = time.Time{}
	record.LastLoginAt = now
	record.LastLoginIP = ip
	return nil
}

// SetTOTPSecret describes the settotpsecret operation and its observable behavior.
//
// SetTOTPSecret may return an error when input validation, dependency calls, or security checks fail.
// SetTOTPSecret does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) SetTOTPSecret(ctx context.Context, id, secretBase32 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return authcore.ErrCredentialNotFound
	}
	record.TOTPSecret = secretBase32
	return nil
}

// ActivateTOTP describes the activatetotp operation and its observable behavior.
//
// ActivateTOTP may return an error when input validation, dependency calls, or security checks fail.
// ActivateTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ActivateTOTP(ctx context.Context, id string, enabledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return authcore.ErrCredentialNotFound
	}
	if record.TOTPSecret == "" {
		return authcore.ErrTOTPNotProvisioned
	}
	record.TOTPEnabled = true
	record.TOTPEnabledAt = enabledAt
	return nil
}

// DisableTOTP describes the disabletotp operation and its observable behavior.
//
// DisableTOTP may return an error when input validation, dependency calls, or security checks fail.
// DisableTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) DisableTOTP(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return authcore.ErrCredentialNotFound
	}
	record.TOTPEnabled = false
	record.TOTPSecret = ""
	record.TOTPEnabledAt = time.Time{}
	record.BackupCodes = nil
	return nil
}

// ReplaceBackupCodes describes the replacebackupcodes operation and its observable behavior.
//
// ReplaceBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// ReplaceBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ReplaceBackupCodes(ctx context.Context, id string, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return authcore.ErrCredentialNotFound
	}
	record.BackupCodes = append([]string(nil), codes...)
	return nil
}

// ConsumeBackupCode describes the consumebackupcode operation and its observable behavior.
//
// ConsumeBackupCode may return an error when input validation, dependency calls, or security checks fail.
// ConsumeBackupCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ConsumeBackupCode(ctx context.Context, id, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return false, authcore.ErrCredentialNotFound
	}

	for i, stored := range record.BackupCodes {
		if stored == code {
			record.BackupCodes = append(record.BackupCodes[:i], record.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// SetMagicLink describes the setmagiclink operation and its observable behavior.
//
// SetMagicLink may return an error when input validation, dependency calls, or security checks fail.
// SetMagicLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) SetMagicLink(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return authcore.ErrCredentialNotFound
	}
	record.MagicLinkHash = tokenHash
	record.MagicLinkExpiresAt = expiresAt
	return nil
}

// ClaimMagicLink describes the claimmagiclink operation and its observable behavior.
//
// ClaimMagicLink may return an error when input validation, dependency calls, or security checks fail.
// ClaimMagicLink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ClaimMagicLink(ctx context.Context, tokenHash string, now time.Time) (authcore.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.byID {
		if record.MagicLinkHash != tokenHash || tokenHash == "" {
			continue
		}

		record.MagicLinkHash = ""
		if now.After(record.MagicLinkExpiresAt) {
			record.MagicLinkExpiresAt = time.Time{}
			return authcore.CredentialRecord{}, authcore.ErrMagicLinkExpired
		}
		record.MagicLinkExpiresAt = time.Time{}
		return copyRecord(record), nil
	}

	return authcore.CredentialRecord{}, authcore.ErrMagicLinkInvalid
}
