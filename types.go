package authcore

import (
	"context"
	"time"
)

// CredentialRecord is the full credential set attached to an identity. It carries
// the password digest, lockout counters, two-factor material, hashed backup codes'
// canonical forms, and the pending magic-link hash. Implementations of
// [CredentialStore] own the durable copy; the engine treats the store as
// authoritative and never caches records across calls.
type CredentialRecord struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	Roles     []string

	// PasswordHash is a PHC-encoded Argon2 digest, or empty for accounts that
	// sign in exclusively through magic links.
	PasswordHash string

	FailedAttempts int
	LockedUntil    time.Time

	TOTPSecret    string
	TOTPEnabled   bool
	TOTPEnabledAt time.Time
	BackupCodes   []string

	MagicLinkHash      string
	MagicLinkExpiresAt time.Time

	LastLoginAt time.Time
	LastLoginIP string
}

// LockoutState is the post-update lockout view returned by
// [CredentialStore.RecordLoginFailure].
type LockoutState struct {
	Attempts    int
	LockedUntil time.Time
}

// Locked reports whether the state carries an active lock at the given time.
func (s LockoutState) Locked(now time.Time) bool {
	return s.LockedUntil.After(now)
}

// CredentialStore is the primary interface that callers must implement to
// integrate authcore with their user database. The single-shot mutation methods
// (RecordLoginFailure, ClaimMagicLink, ConsumeBackupCode) carry atomicity
// contracts: each must execute as one read-modify-write in the store's native
// concurrency primitive (row-level update, serialized mutex, compare-and-swap)
// so concurrent callers observe a single consistent transition.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (CredentialRecord, error)
	GetByID(ctx context.Context, id string) (CredentialRecord, error)
	Create(ctx context.Context, record CredentialRecord) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// RecordLoginFailure atomically increments the failure counter. When the
	// counter reaches threshold the store must set LockedUntil = now + lockFor
	// and reset the counter to zero in the same update. The returned state
	// reflects the record after the update.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (LockoutState, error)

	// RecordLoginSuccess clears the failure counter and any lock, and stamps
	// the last-login time and IP.
	RecordLoginSuccess(ctx context.Context, id string, now time.Time, ip string) error

	SetTOTPSecret(ctx context.Context, id, secretBase32 string) error
	ActivateTOTP(ctx context.Context, id string, enabledAt time.Time) error
	DisableTOTP(ctx context.Context, id string) error
	ReplaceBackupCodes(ctx context.Context, id string, codes []string) error

	// ConsumeBackupCode atomically removes the canonical code from the record.
	// It returns true exactly once per code; a second call with the same code
	// returns false.
	ConsumeBackupCode(ctx context.Context, id, code string) (bool, error)

	SetMagicLink(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// ClaimMagicLink atomically clears the stored magic-link hash and returns
	// the owning record. Exactly one concurrent caller wins; losers receive
	// [ErrMagicLinkInvalid]. An expired hash is cleared and reported as
	// [ErrMagicLinkExpired].
	ClaimMagicLink(ctx context.Context, tokenHash string, now time.Time) (CredentialRecord, error)
}

// LoginAttempt is the sealed input to [Engine.Authenticate]. The three concrete
// variants are [PasswordAttempt], [MagicLinkAttempt], and [ProvisionAttempt];
// outside packages cannot add new variants.
type LoginAttempt interface {
	attemptKind() string
}

// PasswordAttempt is a password login, optionally carrying a second factor.
// When the account has TOTP enabled exactly one of TOTPCode or BackupCode must
// be provided.
type PasswordAttempt struct {
	Email      string
	Password   string
	TOTPCode   string
	BackupCode string
}

func (PasswordAttempt) attemptKind() string { return "password" }

// MagicLinkAttempt redeems a previously issued magic-link token.
type MagicLinkAttempt struct {
	Token string
}

func (MagicLinkAttempt) attemptKind() string { return "magic_link" }

// ProvisionAttempt mints a first session for a freshly provisioned credential
// without a proof exchange. Callers must gate this variant behind their own
// provisioning authorization.
type ProvisionAttempt struct {
	CredentialID string
}

func (ProvisionAttempt) attemptKind() string { return "provision" }

// LoginResult is returned by [Engine.Authenticate] on success. Token is the
// signed bearer token; SessionID equals the token's jti claim.
type LoginResult struct {
	Token        string
	CredentialID string
	SessionID    string
	ExpiresAt    time.Time
}

// Identity is the authenticated caller view returned by [Engine.Validate].
type Identity struct {
	CredentialID string
	Email        string
	Name         string
	AvatarURL    string
	Roles        []string
	SessionID    string
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TOTPSetup holds the enrollment material returned by
// [Engine.GenerateTOTPSetup]. SecretBase32 doubles as the manual entry key.
type TOTPSetup struct {
	SecretBase32 string
	ProvisionURI string
}

// MagicLink is returned by [Engine.IssueMagicLink]. For unknown accounts Token
// and URL are empty while the call still succeeds, so the HTTP layer can return
// an identical response either way. Only the mailer should branch on Token.
type MagicLink struct {
	Token     string
	URL       string
	ExpiresAt time.Time
}

// SessionInfo is the caller-facing session view returned by [Engine.Sessions].
// It never includes the bearer token; IsCurrent marks the session belonging to
// the presented token.
type SessionInfo struct {
	ID           string
	DeviceInfo   string
	IPAddress    string
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time
	IsCurrent    bool
}

// ProvisionInput is the input for [Engine.ProvisionCredential]. Password is
// optional; when empty the account can only sign in through magic links until
// a password is set.
type ProvisionInput struct {
	Email     string
	Name      string
	AvatarURL string
	Roles     []string
	Password  string
}
