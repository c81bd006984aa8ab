// Package password hashes and verifies login passwords with PBKDF2-SHA256.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 iteration count for newly hashed
	// passwords. Hashes created with older counts keep verifying; the count
	// is stored in the hash string.
	DefaultIterations = 16384

	saltLength = 16
	keyLength  = 32

	scheme = "pbkdf2-sha256"
)

// ErrMismatch is returned by Verify when the password does not match.
var ErrMismatch = errors.New("password mismatch")

// Hasher derives and verifies password hashes. The zero value is not
// usable; construct with NewHasher.
type Hasher struct {
	iterations int
}

// NewHasher creates a Hasher with the given iteration count, or
// DefaultIterations when count is zero or negative.
func NewHasher(iterations int) *Hasher {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Hasher{iterations: iterations}
}

// Hash derives a salted hash of the password. The result is a
// self-describing string of the form
//
//	pbkdf2-sha256$<iterations>$<salt64>$<hash64>
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, h.iterations, keyLength, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s",
		scheme,
		h.iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify checks the password against a stored hash string. It returns
// ErrMismatch when the password is wrong and a descriptive error when the
// stored hash cannot be parsed.
func (h *Hasher) Verify(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != scheme {
		return fmt.Errorf("unsupported password hash format")
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("invalid iteration count %q", parts[1])
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("decode salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("decode hash: %w", err)
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrMismatch
	}
	return nil
}
