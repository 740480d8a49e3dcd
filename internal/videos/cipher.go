package videos

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertextInvalid indicates a stored value could not be decrypted,
// typically because the encryption key changed or the row was tampered with.
var ErrCiphertextInvalid = errors.New("ciphertext invalid")

// Codec encrypts external video identifiers before they reach the store and
// decrypts them on the way out. AES-256-GCM with a random nonce; output is
// base64url so it can live in a text column.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec constructs a Codec from a 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// EncryptID seals the plaintext identifier.
func (c *Codec) EncryptID(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// DecryptID opens a value produced by EncryptID.
func (c *Codec) DecryptID(encoded string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextInvalid
	}

	if len(sealed) < c.aead.NonceSize() {
		return "", ErrCiphertextInvalid
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}

	return string(plaintext), nil
}
