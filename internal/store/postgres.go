package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

// SQLSTATE unique_violation
const pgUniqueViolation = "23505"

const (
	insertAccountSQL = `INSERT INTO users (username, secret) VALUES ($1, $2)`
	selectSecretSQL  = `SELECT secret FROM users WHERE username = $1`
)

// querier is the subset of *pgxpool.Pool used by Postgres.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Postgres stores accounts in the users table (see migrations).
type Postgres struct {
	db    querier
	close func()
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool, close: pool.Close}
}

// Create inserts the account. A duplicate username is reported by the unique
// constraint; the existing row is left untouched.
func (s *Postgres) Create(ctx context.Context, username, secret string) error {
	_, err := s.db.Exec(ctx, insertAccountSQL, username, secret)
	return mapPgError(err)
}

// GetSecret returns the secret for username, or ErrNotFound.
func (s *Postgres) GetSecret(ctx context.Context, username string) (string, error) {
	var secret string
	if err := s.db.QueryRow(ctx, selectSecretSQL, username).Scan(&secret); err != nil {
		return "", mapPgError(err)
	}
	return secret, nil
}

// Ping checks the pool.
func (s *Postgres) Ping(ctx context.Context) error {
	return unavailable(s.db.Ping(ctx))
}

// Close releases the pool.
func (s *Postgres) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrAlreadyExists
	}
	return unavailable(err)
}

// PostgresConfig configures Connect.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
	Retries  uint64
	Backoff  time.Duration
}

// Connect opens a pgx pool, retrying with exponential backoff until a ping succeeds.
func Connect(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, unavailable(err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}

	var pool *pgxpool.Pool
	b := retry.WithMaxRetries(cfg.Retries, retry.NewExponential(cfg.Backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return pool, nil
}
