package config

import (
	"encoding/json"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/soulteary/cli-kit/env"
	logger "github.com/soulteary/logger-kit"

	"github.com/soulteary/herald-otp/internal/totp"
)

var log *logger.Logger

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var (
	Port        = env.Get("PORT", ":8084")
	LogLevel    = env.Get("LOG_LEVEL", "info")
	ServiceName = env.Get("SERVICE_NAME", "herald-otp")

	// TOTP
	TOTPIssuer     = env.Get("TOTP_ISSUER", "MyApp")
	TOTPPeriod     = env.GetInt("TOTP_PERIOD", 30)
	TOTPDigits     = env.GetInt("TOTP_DIGITS", 6)
	TOTPSkew       = env.GetUint("TOTP_SKEW", 1)
	TOTPSecretSize = env.GetUint("TOTP_SECRET_SIZE", 20)

	// Provisioning URI cache and QR rendering
	URICacheSize = env.GetInt("URI_CACHE_SIZE", 128)
	QRSize       = env.GetInt("QR_SIZE", 256)

	// Secret store backend: "postgres" or "redis"
	StoreBackend = env.Get("STORE_BACKEND", BackendPostgres)

	// Postgres
	DBHost           = env.Get("DB_HOST", "localhost")
	DBPort           = env.GetInt("DB_PORT", 5490)
	DBName           = env.Get("DB_NAME", "otp")
	DBUser           = env.Get("DB_USER", "otp")
	DBPassword       = env.Get("DB_PASSWORD", "otp")
	DBSSLMode        = env.Get("DB_SSLMODE", "disable")
	DBMaxConns       = env.GetInt("DB_MAX_CONNS", 10)
	DBConnectRetries = env.GetUint("DB_CONNECT_RETRIES", 3)
	DBConnectBackoff = env.GetDuration("DB_CONNECT_BACKOFF", time.Second)

	// Redis
	RedisAddr     = env.Get("REDIS_ADDR", "localhost:6379")
	RedisPassword = env.Get("REDIS_PASSWORD", "")
	RedisDB       = env.GetInt("REDIS_DB", 0)

	// Optional encryption of secrets at rest (>= 32 bytes enables it)
	EncryptionKey = env.Get("SECRET_ENCRYPTION_KEY", "")

	// Service auth: API Key or HMAC
	APIKey       = env.Get("API_KEY", "")
	HMACSecret   = env.Get("HMAC_SECRET", "")
	HMACKeysJSON = env.Get("HERALD_OTP_HMAC_KEYS", "")

	hmacKeysMap      map[string]string
	hmacDefaultKeyID string
)

// Initialize sets the logger and parses HMAC keys if present.
func Initialize(l *logger.Logger) {
	log = l
	hmacKeysMap = nil
	hmacDefaultKeyID = ""
	if HMACKeysJSON != "" {
		if err := parseHMACKeys(); err != nil {
			log.Warn().Err(err).Msg("Failed to parse HERALD_OTP_HMAC_KEYS")
		} else {
			for keyID := range hmacKeysMap {
				hmacDefaultKeyID = keyID
				break
			}
		}
	}
	if StoreBackend != BackendPostgres && StoreBackend != BackendRedis {
		log.Warn().Str("backend", StoreBackend).Msg("unknown STORE_BACKEND; router setup will fail")
	}
}

func parseHMACKeys() error {
	return json.Unmarshal([]byte(HMACKeysJSON), &hmacKeysMap)
}

// DatabaseURL builds the Postgres connection URL from the DB_* variables.
func DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(DBUser, DBPassword),
		Host:   net.JoinHostPort(DBHost, strconv.Itoa(DBPort)),
		Path:   "/" + DBName,
	}
	if DBSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {DBSSLMode}}.Encode()
	}
	return u.String()
}

// TOTPConfig builds the engine configuration from the TOTP_* variables.
func TOTPConfig() totp.Config {
	cfg := totp.DefaultConfig(TOTPIssuer)
	if TOTPPeriod > 0 {
		cfg.Period = uint(TOTPPeriod)
	}
	cfg.Digits = totp.DigitsFromInt(TOTPDigits)
	cfg.Skew = uint(TOTPSkew)
	cfg.SecretSize = uint(TOTPSecretSize)
	return cfg
}

// EncryptionEnabled reports whether secrets are sealed before storage.
func EncryptionEnabled() bool {
	return len(EncryptionKey) >= 32
}

// GetHMACSecret returns the HMAC secret for the given key ID.
func GetHMACSecret(keyID string) string {
	if len(hmacKeysMap) > 0 {
		if keyID == "" {
			keyID = hmacDefaultKeyID
		}
		if s, ok := hmacKeysMap[keyID]; ok {
			return s
		}
		return ""
	}
	return HMACSecret
}

// HasHMACKeys returns true if multiple HMAC keys are configured.
func HasHMACKeys() bool {
	return len(hmacKeysMap) > 0
}

// AllowNoAuth returns true when no API key or HMAC is set (dev only).
func AllowNoAuth() bool {
	return APIKey == "" && HMACSecret == "" && !HasHMACKeys()
}
