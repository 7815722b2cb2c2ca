package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hasherScheme  = "pbkdf2-sha256"
	saltBytes     = 16
	derivedKeyLen = 32

	// DefaultHashIterations is the PBKDF2 cost factor used when none is
	// configured. Tunable per deployment; raising it only affects digests
	// created afterwards since the cost is embedded in each digest.
	DefaultHashIterations = 120000
)

// Hasher derives and verifies password digests. Implementations must be
// slow and adaptive; digests embed their own parameters so the cost factor
// can be raised without invalidating stored credentials.
type Hasher interface {
	// GenerateSalt produces a fresh unpredictable per-credential salt.
	GenerateSalt() (string, error)
	// Hash derives a digest. Deterministic for a given (plaintext, salt) pair.
	Hash(plaintext, salt string) (string, error)
	// Verify recomputes the digest under the parameters embedded in it and
	// compares in constant time. A malformed digest verifies false.
	Verify(plaintext, salt, digest string) bool
}

// PBKDF2Hasher implements Hasher with PBKDF2-SHA256.
// Digest layout: "pbkdf2-sha256$<iterations>$<base64 key>".
type PBKDF2Hasher struct {
	iterations int
}

// NewPBKDF2Hasher constructs a hasher. Iterations below 1 fall back to the
// default cost.
func NewPBKDF2Hasher(iterations int) *PBKDF2Hasher {
	if iterations < 1 {
		iterations = DefaultHashIterations
	}
	return &PBKDF2Hasher{iterations: iterations}
}

var _ Hasher = (*PBKDF2Hasher)(nil)

// GenerateSalt returns a random base64-encoded salt.
func (h *PBKDF2Hasher) GenerateSalt() (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(raw), nil
}

// Hash derives the digest for plaintext under salt at the configured cost.
func (h *PBKDF2Hasher) Hash(plaintext, salt string) (string, error) {
	if salt == "" {
		return "", fmt.Errorf("auth: salt required")
	}
	key := derive(plaintext, salt, h.iterations)
	return fmt.Sprintf("%s$%d$%s", hasherScheme, h.iterations, base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify recomputes the digest and compares in constant time. It never
// returns an error: malformed digests simply verify false.
func (h *PBKDF2Hasher) Verify(plaintext, salt, digest string) bool {
	parts := strings.Split(digest, "$")
	if len(parts) != 3 || parts[0] != hasherScheme {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 {
		return false
	}
	stored, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(stored) != derivedKeyLen {
		return false
	}
	computed := derive(plaintext, salt, iterations)
	return subtle.ConstantTimeCompare(stored, computed) == 1
}

func derive(plaintext, salt string, iterations int) []byte {
	return pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, derivedKeyLen, sha256.New)
}
