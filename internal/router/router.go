package router

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	health "github.com/soulteary/health-kit"
	logger "github.com/soulteary/logger-kit"
	metricskit "github.com/soulteary/metrics-kit"
	middlewarekit "github.com/soulteary/middleware-kit"
	rediskit "github.com/soulteary/redis-kit/client"

	"github.com/soulteary/herald-otp/internal/config"
	"github.com/soulteary/herald-otp/internal/handler"
	"github.com/soulteary/herald-otp/internal/metrics"
	"github.com/soulteary/herald-otp/internal/qrcode"
	"github.com/soulteary/herald-otp/internal/secret"
	"github.com/soulteary/herald-otp/internal/service"
	"github.com/soulteary/herald-otp/internal/store"
	"github.com/soulteary/herald-otp/internal/totp"
)

const readyTimeout = 2 * time.Second

// Setup creates the secret store and service and mounts routes. Call
// config.Initialize(log) before this. The caller owns the returned store.
func Setup(app *fiber.App, log *logger.Logger) (store.SecretStore, error) {
	st, redisClient, err := openStore(context.Background(), log)
	if err != nil {
		return nil, err
	}
	if config.EncryptionEnabled() {
		c, err := secret.NewCipher(config.EncryptionKey)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st = store.NewSealed(st, c)
		log.Info().Msg("secrets are encrypted at rest")
	}

	svc, err := service.New(service.Options{
		Engine:       totp.New(config.TOTPConfig()),
		Store:        st,
		Encoder:      qrcode.NewEncoder(config.QRSize),
		Issuer:       config.TOTPIssuer,
		URICacheSize: config.URICacheSize,
		Logger:       log,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	app.Use(recover.New())
	app.Use(logger.FiberMiddleware(logger.MiddlewareConfig{
		Logger:           log,
		SkipPaths:        []string{"/healthz", "/readyz", "/metrics"},
		IncludeRequestID: true,
		IncludeLatency:   true,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization,X-Service,X-Signature,X-Timestamp,X-API-Key,X-Key-Id",
	}))

	healthConfig := health.DefaultConfig().WithServiceName(config.ServiceName)
	healthAgg := health.NewAggregator(healthConfig)
	if redisClient != nil {
		healthAgg.AddChecker(health.NewRedisChecker(redisClient))
	}
	app.Get("/healthz", health.FiberHandler(healthAgg))
	app.Get("/readyz", ready(st))

	app.Get("/metrics", metricskit.FiberHandlerFor(metrics.Registry))

	authHandler := middlewarekit.CombinedAuth(authConfig(log))

	parse := handler.ParseCredentials()
	requireUsername := handler.RequireUsername()
	app.Post("/register", authHandler, parse, requireUsername, handler.Register(svc))
	app.Post("/register/qr", authHandler, parse, requireUsername, handler.RegisterQR(svc))
	app.Post("/verify", authHandler, parse, requireUsername, handler.RequireOTP(), handler.Verify(svc))

	return st, nil
}

// authConfig sets a method only when its credentials are present; a nil
// config is what lets AllowNoAuth take effect.
func authConfig(log *logger.Logger) middlewarekit.AuthConfig {
	zerologLogger := log.Zerolog()
	cfg := middlewarekit.AuthConfig{
		AllowNoAuth: config.AllowNoAuth(),
		Logger:      &zerologLogger,
	}
	if config.HMACSecret != "" || config.HasHMACKeys() {
		cfg.HMACConfig = &middlewarekit.HMACConfig{
			KeyProvider: config.GetHMACSecret,
		}
	}
	if config.APIKey != "" {
		cfg.APIKeyConfig = &middlewarekit.APIKeyConfig{
			APIKey: config.APIKey,
		}
	}
	return cfg
}

// openStore connects the configured backend. The Redis client is returned for
// health checks and is nil for Postgres.
func openStore(ctx context.Context, log *logger.Logger) (store.SecretStore, *redis.Client, error) {
	switch config.StoreBackend {
	case config.BackendPostgres:
		pool, err := store.Connect(ctx, store.PostgresConfig{
			DSN:      config.DatabaseURL(),
			MaxConns: int32(config.DBMaxConns),
			Retries:  uint64(config.DBConnectRetries),
			Backoff:  config.DBConnectBackoff,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Str("host", config.DBHost).Str("db", config.DBName).Msg("postgres store ready")
		return store.NewPostgres(pool), nil, nil
	case config.BackendRedis:
		cfg := rediskit.DefaultConfig().
			WithAddr(config.RedisAddr).
			WithPassword(config.RedisPassword).
			WithDB(config.RedisDB)
		redisClient, err := rediskit.NewClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", config.RedisAddr).Msg("redis store ready")
		return store.NewRedis(redisClient), redisClient, nil
	default:
		return nil, nil, fmt.Errorf("router: unknown STORE_BACKEND %q", config.StoreBackend)
	}
}

// ready reports 503 while the secret store cannot be reached.
func ready(st store.SecretStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(handler.ErrorResponse{OK: false, Reason: "store_unavailable"})
		}
		return c.JSON(fiber.Map{"ok": true})
	}
}
