// Package otp implements RFC 4226 HOTP and RFC 6238 TOTP verification together
// with the base32 secret codec, without external OTP libraries. Codes are
// compared in constant time.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const secretBytes = 20

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

// Manager verifies and provisions time-based one-time passwords.
type Manager struct {
	config Config
}

// NewManager creates a [Manager]. Zero-valued fields fall back to the
// authenticator-app defaults: 6 digits, 30 second period, SHA1, skew 1.
func NewManager(cfg Config) *Manager {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &Manager{config: cfg}
}

// GenerateSecret returns a fresh 160-bit secret in unpadded base32. Every
// enrollment gets its own secret; secrets are never derived or reused.
func (m *Manager) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return EncodeBase32(raw), nil
}

// ProvisionURI builds the otpauth:// enrollment URI consumed by authenticator
// apps, carrying the secret, issuer, period, digits, and algorithm.
func (m *Manager) ProvisionURI(secretBase32, account string) string {
	issuer := m.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(m.config.Period))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// CodeAt computes the code the secret yields at the given time. Servers use
// it to preview enrollment codes in trusted tooling; production verification
// goes through [Manager.VerifyCode].
func (m *Manager) CodeAt(secretBase32 string, now time.Time) (string, error) {
	secret, err := DecodeBase32(secretBase32)
	if err != nil {
		return "", err
	}
	if len(secret) == 0 {
		return "", errors.New("empty totp secret")
	}

	return hotpCode(secret, now.Unix()/int64(m.config.Period), m.config.Digits, m.config.Algorithm)
}

// VerifyCode checks code against the base32 secret at the given time,
// accepting counters within the configured skew (skew 1 tolerates roughly 90
// seconds of clock drift). A malformed secret or code is a verification
// failure, never an error: attackers learn nothing from the failure mode.
func (m *Manager) VerifyCode(secretBase32, code string, now time.Time) bool {
	ok, _ := m.verify(secretBase32, code, now)
	return ok
}

// VerifyCodeCounter is [Manager.VerifyCode] variant that also reports which
// counter matched, for callers that track last-used counters.
func (m *Manager) VerifyCodeCounter(secretBase32, code string, now time.Time) (bool, int64) {
	return m.verify(secretBase32, code, now)
}

func (m *Manager) verify(secretBase32, code string, now time.Time) (bool, int64) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !isNumericString(trimmed) {
		return false, 0
	}

	secret, err := DecodeBase32(secretBase32)
	if err != nil || len(secret) == 0 {
		return false, 0
	}

	baseCounter := now.Unix() / int64(m.config.Period)
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false, 0
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, counter
		}
	}

	return false, 0
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	// RFC 4226 dynamic truncation: low nibble of the final byte selects the
	// 31-bit window.
	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	code := bin % mod
	return fmt.Sprintf("%0*d", digits, code), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumericString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
