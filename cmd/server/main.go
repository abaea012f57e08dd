package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/loginguard/auth-service/internal/app"
	"github.com/loginguard/auth-service/internal/pkg/config"
	"github.com/loginguard/auth-service/pkg/logger"
)

// @title LoginGuard Auth API
// @version 1.0
// @description Password login with lockout, CAPTCHA escalation and TOTP second factor.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "auth-service",
	})
	boot := logger.Component("bootstrap")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := app.New(ctx, cfg, log)
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to start")
	}

	if err := server.Run(ctx); err != nil {
		boot.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
