package ports

import (
	"context"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// SessionMutation edits a stored session in place. Returning an error
// leaves the stored value untouched.
type SessionMutation func(*domain.Session) error

// SessionStore keeps pending and authenticated sessions. Entries must
// disappear once ExpiresAt has passed.
//
// Consume and Update are atomic with respect to every other call on the
// same token: a consumed session is handed to exactly one caller, and
// Update never recreates a session that was deleted or consumed.
type SessionStore interface {
	// Save writes a new session.
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
	// Consume removes the session and returns it, or ErrSessionNotFound.
	Consume(ctx context.Context, token string) (*domain.Session, error)
	// Update applies mutate to the stored session and returns the result,
	// or ErrSessionNotFound when the token is gone.
	Update(ctx context.Context, token string, mutate SessionMutation) (*domain.Session, error)
}
