// Package service enrolls usernames with TOTP secrets and verifies submitted codes.
//
// The Service holds no account state of its own. All shared state lives in the
// SecretStore; the only in-process memory is a bounded LRU of provisioning URIs,
// which are a pure function of (secret, username, issuer).
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	logger "github.com/soulteary/logger-kit"
	secure "github.com/soulteary/secure-kit"

	"github.com/soulteary/herald-otp/internal/metrics"
	"github.com/soulteary/herald-otp/internal/store"
	"github.com/soulteary/herald-otp/internal/totp"
)

var (
	// ErrInvalidInput is returned for a missing or empty username or code.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCode is returned when the code does not match within the skew window.
	ErrInvalidCode = errors.New("invalid otp")
	// ErrAlreadyExists is returned when registering a taken username.
	ErrAlreadyExists = store.ErrAlreadyExists
	// ErrNotFound is returned when verifying an unknown username.
	ErrNotFound = store.ErrNotFound
	// ErrStoreUnavailable wraps store failures and every other server-side fault.
	ErrStoreUnavailable = store.ErrUnavailable
)

var errNoEncoder = errors.New("service: no image encoder configured")

// DefaultURICacheSize is used when Options.URICacheSize is zero.
const DefaultURICacheSize = 128

// ImageEncoder renders a provisioning URI as an image (PNG).
type ImageEncoder interface {
	Encode(content string) ([]byte, error)
}

// Options configures New.
type Options struct {
	Engine       *totp.Engine
	Store        store.SecretStore
	Encoder      ImageEncoder
	Issuer       string
	URICacheSize int
	Logger       *logger.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Enrollment is the one-time registration response. Secret must reach the
// caller exactly once and is never logged.
type Enrollment struct {
	Username        string
	Secret          string
	ProvisioningURI string
}

type uriKey struct {
	secret, username, issuer string
}

// Service orchestrates the TOTP engine and the secret store.
type Service struct {
	engine  *totp.Engine
	store   store.SecretStore
	encoder ImageEncoder
	issuer  string
	uris    *lru.Cache[uriKey, string]
	log     *logger.Logger
	now     func() time.Time
}

// New validates opts and builds a Service.
func New(opts Options) (*Service, error) {
	if opts.Engine == nil || opts.Store == nil || opts.Logger == nil {
		return nil, errors.New("service: engine, store and logger are required")
	}
	size := opts.URICacheSize
	if size <= 0 {
		size = DefaultURICacheSize
	}
	uris, err := lru.New[uriKey, string](size)
	if err != nil {
		return nil, err
	}
	issuer := opts.Issuer
	if issuer == "" {
		issuer = opts.Engine.Config().Issuer
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		engine:  opts.Engine,
		store:   opts.Store,
		encoder: opts.Encoder,
		issuer:  issuer,
		uris:    uris,
		log:     opts.Logger,
		now:     now,
	}, nil
}

// Register creates an account for username with a fresh secret.
func (s *Service) Register(ctx context.Context, username string) (*Enrollment, error) {
	e, err := s.register(ctx, username)
	metrics.RecordRegister(resultOf(err), "json")
	return e, err
}

// RegisterWithQR registers username and returns the provisioning URI as a PNG.
// The image is rendered once per call and not retained.
func (s *Service) RegisterWithQR(ctx context.Context, username string) ([]byte, error) {
	if s.encoder == nil {
		metrics.RecordRegister("error", "qr")
		return nil, asUnavailable(errNoEncoder)
	}
	e, err := s.register(ctx, username)
	if err != nil {
		metrics.RecordRegister(resultOf(err), "qr")
		return nil, err
	}
	png, err := s.encoder.Encode(e.ProvisioningURI)
	if err != nil {
		// The account row exists; only the rendering failed.
		s.log.Warn().Err(err).Str("username", mask(username)).Msg("register: qr encode failed")
		metrics.RecordRegister("error", "qr")
		return nil, asUnavailable(err)
	}
	metrics.RecordRegister("success", "qr")
	return png, nil
}

func (s *Service) register(ctx context.Context, username string) (*Enrollment, error) {
	if blank(username) {
		return nil, ErrInvalidInput
	}
	secret, err := s.engine.GenerateSecret()
	if err != nil {
		s.log.Warn().Err(err).Msg("register: generate secret failed")
		return nil, asUnavailable(err)
	}
	// Derived before the insert so a failure here never leaves an orphaned row.
	uri, err := s.provisioningURI(secret, username)
	if err != nil {
		s.log.Warn().Err(err).Str("username", mask(username)).Msg("register: provisioning uri failed")
		return nil, asUnavailable(err)
	}
	if err := s.store.Create(ctx, username, secret); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.log.Info().Str("username", mask(username)).Msg("register: username taken")
			return nil, ErrAlreadyExists
		}
		s.log.Warn().Err(err).Str("username", mask(username)).Msg("register: store create failed")
		return nil, asUnavailable(err)
	}
	s.log.Info().Str("username", mask(username)).Msg("register: account created")
	return &Enrollment{Username: username, Secret: secret, ProvisioningURI: uri}, nil
}

// Verify checks code against the stored secret. It returns nil for a valid
// code and never modifies the account.
func (s *Service) Verify(ctx context.Context, username, code string) error {
	err := s.verify(ctx, username, code)
	metrics.RecordVerify(verifyResultOf(err))
	return err
}

func (s *Service) verify(ctx context.Context, username, code string) error {
	if blank(username) || code == "" {
		return ErrInvalidInput
	}
	secret, err := s.store.GetSecret(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		s.log.Warn().Err(err).Str("username", mask(username)).Msg("verify: store lookup failed")
		return asUnavailable(err)
	}
	ok, err := s.engine.VerifyCode(secret, code, s.now())
	if err != nil {
		s.log.Warn().Err(err).Str("username", mask(username)).Msg("verify: stored secret unusable")
		return asUnavailable(err)
	}
	if !ok {
		return ErrInvalidCode
	}
	return nil
}

func (s *Service) provisioningURI(secret, username string) (string, error) {
	k := uriKey{secret: secret, username: username, issuer: s.issuer}
	if uri, ok := s.uris.Get(k); ok {
		metrics.RecordURICache(true)
		return uri, nil
	}
	metrics.RecordURICache(false)
	uri, err := s.engine.ProvisioningURI(secret, username, s.issuer)
	if err != nil {
		return "", err
	}
	s.uris.Add(k, uri)
	return uri, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func mask(username string) string {
	return secure.MaskString(username, 4)
}

func asUnavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return errors.Join(ErrStoreUnavailable, err)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyExists):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

func verifyResultOf(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrInvalidCode):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
