package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

// SeedAccount is one account created by the seeding command.
type SeedAccount struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Seed creates the given accounts, hashing through hasher. Accounts that
// already exist are skipped. It returns how many were created.
func Seed(ctx context.Context, accounts ports.AccountRepository, hasher ports.PasswordHasher, seeds []SeedAccount, log zerolog.Logger) (int, error) {
	created := 0
	for _, s := range seeds {
		hash, err := hasher.Hash(s.Password)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", s.Username, err)
		}
		account, err := accounts.Create(ctx, &domain.UserAccount{
			Username:     s.Username,
			Email:        s.Email,
			PasswordHash: hash,
			Role:         s.Role,
		})
		if errors.Is(err, domain.ErrAccountExists) {
			log.Info().Str("username", s.Username).Msg("account exists, skipping")
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", s.Username, err)
		}
		created++
		log.Info().Str("username", account.Username).Str("role", account.Role).Str("id", account.ID).Msg("account created")
	}
	return created, nil
}
