package crypto

import (
	"fmt"
)

// Format tags an EncryptedBlob so readers never have to guess how a payload
// was written.
type Format string

const (
	// FormatAESGCMv1 is nonce || ciphertext || tag under AES-256-GCM.
	FormatAESGCMv1 Format = "aes256gcm.v1"
	// FormatPlain marks payloads stored before encryption existed.
	FormatPlain Format = "plain"
)

const (
	nonceSize = 12
	tagSize   = 16
)

func (f Format) IsEncrypted() bool {
	return f == FormatAESGCMv1
}

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatAESGCMv1, FormatPlain:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown blob format %q", s)
	}
}

// Blob is the versioned container stored for every dataset.
type Blob struct {
	Format     Format
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

// PlainBlob wraps legacy bytes that were never encrypted.
func PlainBlob(raw []byte) Blob {
	return Blob{Format: FormatPlain, Ciphertext: raw}
}

// Payload serializes the blob body. The format tag is stored alongside it.
func (b Blob) Payload() []byte {
	if !b.Format.IsEncrypted() {
		return append([]byte(nil), b.Ciphertext...)
	}
	out := make([]byte, 0, len(b.Nonce)+len(b.Ciphertext)+len(b.Tag))
	out = append(out, b.Nonce...)
	out = append(out, b.Ciphertext...)
	out = append(out, b.Tag...)
	return out
}

// ParseBlob splits a stored payload according to its format tag.
func ParseBlob(format Format, payload []byte) (Blob, error) {
	switch format {
	case FormatPlain:
		return PlainBlob(append([]byte(nil), payload...)), nil
	case FormatAESGCMv1:
		if len(payload) < nonceSize+tagSize {
			return Blob{}, fmt.Errorf("%w: payload too short", ErrDecryption)
		}
		body := payload[nonceSize : len(payload)-tagSize]
		return Blob{
			Format:     format,
			Nonce:      append([]byte(nil), payload[:nonceSize]...),
			Ciphertext: append([]byte(nil), body...),
			Tag:        append([]byte(nil), payload[len(payload)-tagSize:]...),
		}, nil
	default:
		return Blob{}, fmt.Errorf("unknown blob format %q", format)
	}
}
