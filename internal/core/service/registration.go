package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

// Register creates an account with a hashed password. Role defaults to user.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.UserAccount, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidAccount)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if len(in.Password) > domain.MaxPasswordBytes {
		return nil, fmt.Errorf("%w: password longer than %d bytes", domain.ErrInvalidAccount, domain.MaxPasswordBytes)
	}
	if role != domain.RoleAdmin && role != domain.RoleUser {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidAccount, role)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.clock.Now()
	account := &domain.UserAccount{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", created.ID).Str("role", created.Role).Msg("account registered")
	return created, nil
}
