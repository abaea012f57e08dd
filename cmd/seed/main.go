package main

import (
	"context"
	"flag"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/loginguard/auth-service/internal/app"
	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/infrastructure/password"
	"github.com/loginguard/auth-service/internal/pkg/config"
	"github.com/loginguard/auth-service/pkg/logger"
)

// Development accounts. None of them has MFA enrolled, so the first login
// walks through setup.
var accounts = []app.SeedAccount{
	{Username: "admin", Email: "admin@example.com", Password: "admin123", Role: domain.RoleAdmin},
	{Username: "user1", Email: "user1@example.com", Password: "letmein", Role: domain.RoleUser},
	{Username: "user2", Email: "user2@example.com", Password: "welcome123", Role: domain.RoleUser},
}

func main() {
	reset := flag.Bool("reset", false, "delete every account before seeding")
	flag.Parse()

	cfg := config.Load()
	root := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Service: "auth-seed"})
	log := logger.Component("seed")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, root)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open account store")
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close account store")
		}
	}()

	if *reset {
		if err := stores.Accounts.DeleteAll(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to reset accounts")
		}
		log.Info().Msg("existing accounts deleted")
	}

	n, err := app.Seed(ctx, stores.Accounts, password.NewBcryptHasher(bcrypt.DefaultCost), accounts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	log.Info().Int("created", n).Msg("seeding finished")
}
