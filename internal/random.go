package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
)

const magicTokenSize = 32

// NewMagicToken returns a 32-byte random token in compact base64url form.
// The plaintext is delivered to the user once; only its hash is persisted.
func NewMagicToken() (string, error) {
	var raw [magicTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the hex SHA-256 digest of a token string. Used for
// magic-link storage so a datastore leak never yields redeemable tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

const tokenPrefixLength = 16

// TokenPrefix derives the fixed-length persisted prefix for a bearer token.
// For JWTs the prefix is taken from the signature segment, which varies per
// issuance; the header segment is near constant and would collide. The full
// token is never persisted.
func TokenPrefix(token string) string {
	segment := token
	if i := strings.LastIndexByte(token, '.'); i >= 0 {
		segment = token[i+1:]
	}
	if len(segment) > tokenPrefixLength {
		segment = segment[:tokenPrefixLength]
	}
	return segment
}

const backupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewBackupCode returns a random uppercase-alphanumeric code of the given
// length. Each character is drawn independently with crypto/rand so the code
// carries full entropy with no modulo bias.
func NewBackupCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}

	return b.String(), nil
}
