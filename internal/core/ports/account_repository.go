package ports

import (
	"context"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// AccountMutation edits an account in place inside ApplyUpdate's critical
// section. Returning an error aborts the update without committing.
type AccountMutation func(account *domain.UserAccount) error

// AccountRepository is the credential store.
type AccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	FindByID(ctx context.Context, id string) (*domain.UserAccount, error)
	Create(ctx context.Context, account *domain.UserAccount) (*domain.UserAccount, error)

	// ApplyUpdate re-reads the account, runs mutate and commits the result.
	// Concurrent updates to the same id are serialized; updates to different
	// ids never block each other.
	ApplyUpdate(ctx context.Context, id string, mutate AccountMutation) (*domain.UserAccount, error)
}
