package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const accountPrefix = "otp:account:"

// Redis stores accounts as JSON values keyed by username.
type Redis struct {
	rdb *redis.Client
}

// NewRedis creates a Redis-backed SecretStore.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Create stores the account with SETNX so the uniqueness check and the write are one command.
func (s *Redis) Create(ctx context.Context, username, secret string) error {
	data, err := json.Marshal(Account{
		Username:  username,
		Secret:    secret,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return unavailable(err)
	}
	ok, err := s.rdb.SetNX(ctx, accountPrefix+username, data, 0).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

// GetSecret returns the secret for username, or ErrNotFound.
func (s *Redis) GetSecret(ctx context.Context, username string) (string, error) {
	data, err := s.rdb.Get(ctx, accountPrefix+username).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", unavailable(err)
	}
	var a Account
	if err := json.Unmarshal(data, &a); err != nil {
		return "", unavailable(err)
	}
	return a.Secret, nil
}

// Ping checks the Redis connection.
func (s *Redis) Ping(ctx context.Context) error {
	return unavailable(s.rdb.Ping(ctx).Err())
}

// Close closes the underlying client.
func (s *Redis) Close() error {
	return s.rdb.Close()
}
