package session

// Session defines a public type used by authcore APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	ID           string
	CredentialID string

	// TokenPrefix is the first 16 characters of the signature segment of the
	// JWT issued with this session. The full token is never persisted.
	TokenPrefix string

	DeviceInfo string
	IPAddress  string

	Active    bool
	RevokedAt int64

	CreatedAt    int64
	LastActiveAt int64
	ExpiresAt    int64
}
