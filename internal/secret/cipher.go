package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// ErrKeySize is returned when the encryption key is shorter than 32 bytes.
var ErrKeySize = errors.New("encryption key must be at least 32 bytes")

// ErrCiphertext is returned when a sealed value cannot be opened.
var ErrCiphertext = errors.New("sealed secret is malformed or was sealed with another key")

// Cipher seals account secrets with AES-256-GCM before they reach the store.
type Cipher struct {
	aead cipher.AEAD
}

// KeyBytes returns the first 32 bytes of key for AES-256.
func KeyBytes(key string) ([]byte, error) {
	b := []byte(key)
	if len(b) < 32 {
		return nil, ErrKeySize
	}
	return b[:32], nil
}

// NewCipher builds a Cipher from a raw key string (see KeyBytes).
func NewCipher(key string) (*Cipher, error) {
	kb, err := KeyBytes(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(kb)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Seal encrypts plaintext and returns base64(nonce+ciphertext).
// The username is bound as additional data so rows cannot be swapped between accounts.
func (c *Cipher) Seal(username, plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(username))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (c *Cipher) Open(username, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Join(ErrCiphertext, err)
	}
	n := c.aead.NonceSize()
	if len(raw) < n {
		return "", ErrCiphertext
	}
	plain, err := c.aead.Open(nil, raw[:n], raw[n:], []byte(username))
	if err != nil {
		return "", errors.Join(ErrCiphertext, err)
	}
	return string(plain), nil
}
