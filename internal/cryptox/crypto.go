// Package cryptox implements the authenticated blob codec used for staged
// crash files and durable-store payloads: AES-256-GCM with a fresh random
// 96-bit nonce per call, nonce prepended to the ciphertext, and the combined
// buffer base64-encoded so blobs can travel as plain text.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
)

const (
	// KeySize is the required symmetric key length (AES-256).
	KeySize = 32

	nonceSize = 12
)

// Codec seals and opens text blobs with a fixed symmetric key.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a Codec from a 32-byte key. The key slice is not retained.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length %d, want %d", len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// EncryptString seals plaintext and returns base64(nonce || ciphertext).
// A new random nonce is generated on every call, so encrypting the same
// plaintext twice produces different blobs.
func (c *Codec) EncryptString(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString. Any failure (bad base64, truncated
// input, tag mismatch, wrong key) is reported as common.ErrDecrypt: the blob
// is unrecoverable with this key and callers must not retry the same bytes.
func (c *Codec) DecryptString(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", common.ErrDecrypt, err)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: blob shorter than nonce", common.ErrDecrypt)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecrypt, err)
	}
	return string(plaintext), nil
}
