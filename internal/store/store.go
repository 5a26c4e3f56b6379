package store

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyExists is returned by Create when the username is taken.
	ErrAlreadyExists = errors.New("username already exists")
	// ErrNotFound is returned by GetSecret for an unknown username.
	ErrNotFound = errors.New("username not found")
	// ErrUnavailable wraps transport, connection and decoding failures of the backend.
	ErrUnavailable = errors.New("secret store unavailable")
)

// SecretStore persists one immutable secret per username.
//
// Create must be linearizable per username: across concurrent callers exactly
// one Create for a given username succeeds and every other returns ErrAlreadyExists.
// Implementations detect the conflict atomically in the backend, never with a
// read-before-write.
type SecretStore interface {
	Create(ctx context.Context, username, secret string) error
	GetSecret(ctx context.Context, username string) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Account is the persisted record.
type Account struct {
	Username  string `json:"username"`
	Secret    string `json:"secret"`
	CreatedAt int64  `json:"created_at"`
}

func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
