package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// Access token claim names shared with the session middleware.
const (
	ClaimUsername  = "username"
	ClaimRole      = "role"
	ClaimSessionID = "sid"
)

func (s *AuthService) issueAccessToken(account *domain.UserAccount, sessionToken string, now time.Time) (string, error) {
	if s.opts.JWTSecret == "" {
		return "", errors.New("issue access token: empty signing secret")
	}
	claims := jwt.MapClaims{
		"sub":          account.ID,
		ClaimUsername:  account.Username,
		ClaimRole:      account.Role,
		ClaimSessionID: sessionToken,
		"iat":          now.Unix(),
		"exp":          now.Add(s.opts.TokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return signed, nil
}
