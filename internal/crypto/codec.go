package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrDecryption covers wrong keys, tampering, truncation, and blobs that
// were never encrypted. No plaintext is returned alongside it.
var ErrDecryption = errors.New("decryption failed")

// Algorithm names the cipher for status reporting.
const Algorithm = "AES-256-GCM (authenticated, random 96-bit nonce per payload)"

// Codec performs authenticated encryption of opaque payloads.
type Codec struct {
	rand io.Reader
}

type CodecOption func(*Codec)

// WithRandom replaces the nonce source.
func WithRandom(r io.Reader) CodecOption {
	return func(c *Codec) {
		c.rand = r
	}
}

func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{rand: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext under key with a fresh nonce.
func (c *Codec) Encrypt(key, plaintext []byte) (Blob, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Blob{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return Blob{}, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - gcm.Overhead()
	return Blob{
		Format:     FormatAESGCMv1,
		Nonce:      nonce,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
	}, nil
}

// Decrypt verifies and opens blob. A blob with a non-encrypted format tag
// is rejected; the caller decides whether a legacy fallback applies.
func (c *Codec) Decrypt(key []byte, blob Blob) ([]byte, error) {
	if !blob.Format.IsEncrypted() {
		return nil, fmt.Errorf("%w: blob format %q is not encrypted", ErrDecryption, blob.Format)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if len(blob.Nonce) != gcm.NonceSize() || len(blob.Tag) != gcm.Overhead() {
		return nil, fmt.Errorf("%w: malformed blob", ErrDecryption)
	}
	sealed := make([]byte, 0, len(blob.Ciphertext)+len(blob.Tag))
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag...)
	plaintext, err := gcm.Open(nil, blob.Nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// EncryptJSON marshals v and encrypts the result.
func (c *Codec) EncryptJSON(key []byte, v any) (Blob, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Blob{}, fmt.Errorf("marshal payload: %w", err)
	}
	return c.Encrypt(key, raw)
}

// DecryptJSON decrypts blob and unmarshals it into v.
func (c *Codec) DecryptJSON(key []byte, blob Blob, v any) error {
	raw, err := c.Decrypt(key, blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
