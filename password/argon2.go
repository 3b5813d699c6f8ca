// Package password provides Argon2id hashing with PHC-encoded digests and the
// portal's password strength policy.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxConcurrent bounds in-flight Argon2 computations across the hasher.
	// Hashing is deliberately memory- and CPU-expensive; the gate keeps a
	// burst of login attempts from starving unrelated request handlers.
	// Zero means unbounded.
	MaxConcurrent int
}

// Argon2 defines a public type used by authcore APIs.
//
// Argon2 instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Argon2 struct {
	config Config
	gate   chan struct{}
}

// NewArgon2 describes the newargon2 operation and its observable behavior.
//
// NewArgon2 may return an error when input validation, dependency calls, or security checks fail.
// NewArgon2 does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	a := &Argon2{config: cfg}
	if cfg.MaxConcurrent > 0 {
		a.gate = make(chan struct{}, cfg.MaxConcurrent)
	}

	return a, nil
}

func (a *Argon2) derive(password string, salt []byte, time, memory uint32, parallelism uint8, keyLength uint32) []byte {
	if a.gate != nil {
		a.gate <- struct{}{}
		defer func() { <-a.gate }()
	}

	return argon2.IDKey([]byte(password), salt, time, memory, parallelism, keyLength)
}

// Hash computes a PHC-encoded Argon2id digest for the password. Length and
// complexity checks belong to [Policy]; Hash processes raw string bytes exactly
// as provided, with no Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := a.derive(password, salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

// Verify recomputes the digest under the parameters embedded in encodedHash
// and compares in constant time.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	digest, err := decodeDigest(encodedHash)
	if err != nil {
		return false, err
	}

	computed := a.derive(password, digest.salt, digest.time, digest.memory, digest.parallelism, uint32(len(digest.hash)))

	return subtle.ConstantTimeCompare(computed, digest.hash) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced under weaker
// parameters than the hasher's current configuration. Callers rehash on the
// next successful login.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	digest, err := decodeDigest(encodedHash)
	if err != nil {
		return false, err
	}

	if a.config.Memory > digest.memory {
		return true, nil
	}
	if a.config.Time > digest.time {
		return true, nil
	}
	if a.config.Parallelism > digest.parallelism {
		return true, nil
	}
	if a.config.KeyLength != uint32(len(digest.hash)) {
		return true, nil
	}

	return false, nil
}

type digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func decodeDigest(encodedHash string) (digest, error) {
	var d digest

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return d, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return d, errors.New("unsupported algorithm")
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return d, errors.New("missing argon2 version")
	}
	v, err := strconv.Atoi(version)
	if err != nil || v != argon2.Version {
		return d, errors.New("unsupported argon2 version")
	}

	if err := parseParams(parts[3], &d); err != nil {
		return d, err
	}

	d.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return d, errors.New("invalid salt encoding")
	}
	if len(d.salt) < int(minSaltLength) {
		return d, errors.New("invalid salt length")
	}

	d.hash, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return d, errors.New("invalid hash encoding")
	}
	if len(d.hash) == 0 {
		return d, errors.New("invalid hash length")
	}

	return d, nil
}

func parseParams(part string, d *digest) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return errors.New("invalid parameter format")
	}

	var memorySet, timeSet, parallelismSet bool
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return errors.New("invalid parameter entry")
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return errors.New("invalid memory parameter")
			}
			d.memory = uint32(v)
			memorySet = true
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return errors.New("invalid time parameter")
			}
			d.time = uint32(v)
			timeSet = true
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return errors.New("invalid parallelism parameter")
			}
			d.parallelism = uint8(v)
			parallelismSet = true
		default:
			return errors.New("unsupported parameter")
		}
	}

	if !memorySet || !timeSet || !parallelismSet {
		return errors.New("missing parameters")
	}

	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	if cfg.MaxConcurrent < 0 {
		return errors.New("password max concurrent must be >= 0")
	}

	return nil
}
