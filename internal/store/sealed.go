package store

import (
	"context"

	"github.com/soulteary/herald-otp/internal/secret"
)

// Sealed encrypts secrets before they reach the wrapped store.
type Sealed struct {
	next   SecretStore
	cipher *secret.Cipher
}

// NewSealed wraps next so secrets are stored as AES-GCM ciphertext.
func NewSealed(next SecretStore, c *secret.Cipher) *Sealed {
	return &Sealed{next: next, cipher: c}
}

func (s *Sealed) Create(ctx context.Context, username, plain string) error {
	enc, err := s.cipher.Seal(username, plain)
	if err != nil {
		return unavailable(err)
	}
	return s.next.Create(ctx, username, enc)
}

func (s *Sealed) GetSecret(ctx context.Context, username string) (string, error) {
	enc, err := s.next.GetSecret(ctx, username)
	if err != nil {
		return "", err
	}
	plain, err := s.cipher.Open(username, enc)
	if err != nil {
		return "", unavailable(err)
	}
	return plain, nil
}

func (s *Sealed) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *Sealed) Close() error {
	return s.next.Close()
}
