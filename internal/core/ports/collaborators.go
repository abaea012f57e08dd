package ports

import (
	"context"
	"time"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// PasswordHasher is the one-way password primitive. Compare must run in
// constant time with respect to the plaintext.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(hash, plaintext string) bool
}

// ChallengeVerifier checks a human-verification (CAPTCHA) response.
type ChallengeVerifier interface {
	Verify(ctx context.Context, response, clientIP string) (bool, error)
}

// EventSink receives structured audit events.
type EventSink interface {
	Emit(ctx context.Context, event domain.AuditEvent)
}

// AuditRepository persists audit events and reads back an account's trail,
// newest first.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuditEvent) error
	ListByUsername(ctx context.Context, username string, limit int) ([]domain.AuditEvent, error)
}
