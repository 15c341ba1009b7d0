// Package crypto seals provider credentials at rest with XChaCha20-Poly1305.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const KeySize = chacha20poly1305.KeySize

var ErrCiphertext = errors.New("ciphertext too short")

type AEAD struct{ aead cipher.AEAD }

func New(key []byte) (*AEAD, error) {
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("credential key: %w", err)
	}
	return &AEAD{aead: a}, nil
}

// NewFromBase64 accepts the key in standard or raw base64.
func NewFromBase64(s string) (*AEAD, error) {
	key, err := DecodeKey(s)
	if err != nil {
		return nil, err
	}
	return New(key)
}

func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("credential key is not base64: %w", err)
		}
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("credential key must decode to %d bytes (got %d)", KeySize, len(b))
	}
	return b, nil
}

// GenerateKey returns a fresh random key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts plaintext bound to ad. The random nonce is prepended.
func (a *AEAD) Seal(plaintext, ad []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(plaintext)+a.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return a.aead.Seal(nonce, nonce, plaintext, ad), nil
}

func (a *AEAD) Open(sealed, ad []byte) ([]byte, error) {
	ns := a.aead.NonceSize()
	if len(sealed) < ns+a.aead.Overhead() {
		return nil, ErrCiphertext
	}
	return a.aead.Open(nil, sealed[:ns], sealed[ns:], ad)
}

func (a *AEAD) EncryptToString(plaintext string) (string, error) {
	b, err := a.Seal([]byte(plaintext), nil)
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

func (a *AEAD) DecryptString(ciphertextB64 string) (string, error) {
	buf, err := base64.RawStdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", err
	}
	pt, err := a.Open(buf, nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
