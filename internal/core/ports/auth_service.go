package ports

import (
	"context"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// CredentialsInput is a single username/password submission.
type CredentialsInput struct {
	Username          string
	Password          string
	ChallengeResponse string
	ClientIP          string
	// PriorToken is the pending session the client still holds, if any.
	// It is discarded so a client never owns two pending sessions.
	PriorToken string
}

// MFAInput is a TOTP code submitted against a pending session.
type MFAInput struct {
	SessionToken string
	Code         string
	ClientIP     string
}

// RegisterInput creates a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// AuthService is the login orchestrator exposed to the transport layer.
type AuthService interface {
	SubmitCredentials(ctx context.Context, in CredentialsInput) (domain.Outcome, error)
	SubmitMFACode(ctx context.Context, in MFAInput) (domain.Outcome, error)
	Abandon(ctx context.Context, pendingToken string) error
	Logout(ctx context.Context, sessionToken, clientIP string) error
	ValidateSession(ctx context.Context, sessionToken string) (*domain.Session, error)
	Register(ctx context.Context, in RegisterInput) (*domain.UserAccount, error)
	UnlockAccount(ctx context.Context, username, actor string) (*domain.UserAccount, error)
}
