package totp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
)

// ErrInvalidSecret is returned when a secret is empty or not valid base32.
var ErrInvalidSecret = errors.New("totp: invalid secret")

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config holds TOTP generation and validation options.
type Config struct {
	Issuer     string
	Period     uint
	Digits     otp.Digits
	Algo       otp.Algorithm
	Skew       uint
	SecretSize uint
}

// DigitsFromInt returns otp.Digits for 6 or 8.
func DigitsFromInt(n int) otp.Digits {
	if n == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

// DefaultConfig returns a config with period=30, digits=6, SHA1, skew=1 and 20-byte secrets.
func DefaultConfig(issuer string) Config {
	return Config{
		Issuer:     issuer,
		Period:     30,
		Digits:     otp.DigitsSix,
		Algo:       otp.AlgorithmSHA1,
		Skew:       1,
		SecretSize: 20,
	}
}

// Engine derives and verifies time-based codes. It holds no mutable state.
type Engine struct {
	cfg  Config
	rand io.Reader
}

// New returns an Engine, filling zero fields of cfg with defaults.
func New(cfg Config) *Engine {
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Digits != otp.DigitsSix && cfg.Digits != otp.DigitsEight {
		cfg.Digits = otp.DigitsSix
	}
	if cfg.SecretSize < 20 {
		cfg.SecretSize = 20
	}
	return &Engine{cfg: cfg, rand: rand.Reader}
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// GenerateSecret returns a fresh base32 (unpadded) secret of SecretSize random bytes.
func (e *Engine) GenerateSecret() (string, error) {
	raw := make([]byte, e.cfg.SecretSize)
	if _, err := io.ReadFull(e.rand, raw); err != nil {
		return "", err
	}
	return b32NoPadding.EncodeToString(raw), nil
}

// DeriveCode computes the HOTP value for the given counter (RFC 4226 dynamic truncation).
func (e *Engine) DeriveCode(secret string, counter uint64) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrInvalidSecret
	}
	code, err := hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    e.cfg.Digits,
		Algorithm: e.cfg.Algo,
	})
	if err != nil {
		return "", errors.Join(ErrInvalidSecret, err)
	}
	return code, nil
}

// CodeAt returns the code for the time step containing t.
func (e *Engine) CodeAt(secret string, t time.Time) (string, error) {
	return e.DeriveCode(secret, uint64(TimeStep(t, e.cfg.Period)))
}

// VerifyCode reports whether code matches secret at t within ±Skew steps.
// Malformed codes return false without any comparison. The error is non-nil
// only when the secret itself cannot be decoded.
func (e *Engine) VerifyCode(secret, code string, t time.Time) (bool, error) {
	if !e.wellFormed(code) {
		return false, nil
	}

	step := TimeStep(t, e.cfg.Period)
	skew := int64(e.cfg.Skew)
	match := 0
	// Every candidate is compared so the matching step is not observable.
	for i := -skew; i <= skew; i++ {
		counter := step + i
		if counter < 0 {
			continue
		}
		want, err := e.DeriveCode(secret, uint64(counter))
		if err != nil {
			return false, err
		}
		match |= subtle.ConstantTimeCompare([]byte(want), []byte(code))
	}
	return match == 1, nil
}

func (e *Engine) wellFormed(code string) bool {
	if len(code) != e.cfg.Digits.Length() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// ProvisioningURI builds the otpauth:// key URI for secret. An empty issuer
// falls back to the configured one.
func (e *Engine) ProvisioningURI(secret, accountName, issuer string) (string, error) {
	if issuer == "" {
		issuer = e.cfg.Issuer
	}
	raw, err := b32NoPadding.DecodeString(strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "=")))
	if err != nil || len(raw) == 0 {
		return "", ErrInvalidSecret
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      e.cfg.Period,
		Secret:      raw,
		Digits:      e.cfg.Digits,
		Algorithm:   e.cfg.Algo,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// TimeStep returns the time step (Unix / period) using integer floor division.
func TimeStep(now time.Time, period uint) int64 {
	if period == 0 {
		period = 30
	}
	u := now.Unix()
	p := int64(period)
	step := u / p
	if u%p != 0 && u < 0 {
		step--
	}
	return step
}
