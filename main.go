package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"github.com/soulteary/logger-kit"
	version "github.com/soulteary/version-kit"

	"github.com/soulteary/herald-otp/internal/config"
	"github.com/soulteary/herald-otp/internal/router"
)

func showBanner() {
	pterm.DefaultBox.Println(
		putils.CenterText(
			"Herald OTP\n" +
				"TOTP Service (Register / QR / Verify)\n" +
				"Version: " + version.Version,
		),
	)
	time.Sleep(time.Millisecond)
}

func main() {
	showBanner()

	level, levelErr := logger.ParseLevel(config.LogLevel)
	if levelErr != nil {
		level = logger.InfoLevel
	}
	log := logger.New(logger.Config{
		Level:          level,
		ServiceName:    config.ServiceName,
		ServiceVersion: version.Version,
	})
	config.Initialize(log)
	if levelErr != nil {
		log.Warn().Err(levelErr).Str("level", config.LogLevel).Msg("invalid LOG_LEVEL, using info")
	}

	port := config.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	if config.EncryptionKey != "" && !config.EncryptionEnabled() {
		log.Warn().Msg("SECRET_ENCRYPTION_KEY shorter than 32 bytes; secrets will be stored in plaintext")
	}
	if config.AllowNoAuth() {
		log.Warn().Msg("no API_KEY or HMAC secret configured; routes are unauthenticated")
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: false})
	st, err := router.Setup(app, log)
	if err != nil {
		log.Fatal().Err(err).Msg("router setup failed")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("store close error")
		}
	}()
	log.Info().Str("backend", config.StoreBackend).Str("port", port).Msg("herald-otp starting")

	go func() {
		if err := app.Listen(port); err != nil {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown error")
	}
}
