// Package crypto protects dataset payloads at rest with per-user derived keys.
//
// Keys are recomputed from (project code, user id, salt) on every call and
// never persisted. The identifiers live in the same system of record as the
// ciphertext, so this isolates users from each other but does not protect
// against an attacker who can read both the store and the salt.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the derived key length (AES-256).
	KeySize = 32
	// MinIterations is the PBKDF2 floor.
	MinIterations = 100_000
)

var (
	ErrMalformedIdentity = errors.New("malformed key identity")
	ErrMissingSalt       = errors.New("key derivation salt is required")
)

// KeyDeriver turns (project code, user id) into a symmetric key using a
// process-wide salt supplied at construction.
type KeyDeriver struct {
	salt       []byte
	iterations int
}

type KeyDeriverOption func(*KeyDeriver)

// WithIterations raises the iteration count. Values below MinIterations are ignored.
func WithIterations(n int) KeyDeriverOption {
	return func(d *KeyDeriver) {
		if n >= MinIterations {
			d.iterations = n
		}
	}
}

func NewKeyDeriver(salt []byte, opts ...KeyDeriverOption) (*KeyDeriver, error) {
	if len(salt) == 0 {
		return nil, ErrMissingSalt
	}
	d := &KeyDeriver{
		salt:       append([]byte(nil), salt...),
		iterations: MinIterations,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Derive returns the key for a user within a project.
func (d *KeyDeriver) Derive(projectCode string, userID int64) ([]byte, error) {
	return DeriveKey(projectCode, userID, d.salt, d.iterations)
}

// Fingerprint returns a short, salted digest of the key suitable for audit output.
func (d *KeyDeriver) Fingerprint(key []byte) string {
	return Fingerprint(key, d.salt)
}

// Description names the derivation scheme for status reporting.
func (d *KeyDeriver) Description() string {
	return fmt.Sprintf("PBKDF2-HMAC-SHA256 (%d iterations, per-user key)", d.iterations)
}

// DeriveKey is the stateless form of KeyDeriver.Derive.
func DeriveKey(projectCode string, userID int64, salt []byte, iterations int) ([]byte, error) {
	if strings.TrimSpace(projectCode) == "" {
		return nil, fmt.Errorf("%w: project code is empty", ErrMalformedIdentity)
	}
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrMalformedIdentity)
	}
	if len(salt) == 0 {
		return nil, ErrMissingSalt
	}
	if iterations < MinIterations {
		iterations = MinIterations
	}
	password := fmt.Sprintf("%s-user-%d", projectCode, userID)
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New), nil
}

// Fingerprint is the first 16 hex characters of SHA-256(salt || key).
func Fingerprint(key, salt []byte) string {
	h := sha256.New()
	h.Write(salt)
	h.Write(key)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
