package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

const accountColumns = `id, username, email, password_hash, role, failed_attempts, locked_until,
	mfa_enabled, mfa_secret, last_login_at, last_login_ip, created_at, updated_at, version`

// AccountRepository implements ports.AccountRepository on an embedded
// SQLite database.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.UserAccount, error) {
	var (
		a           domain.UserAccount
		email       sql.NullString
		lockedUntil sql.NullInt64
		lastLoginAt sql.NullInt64
		mfaEnabled  int
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(&a.ID, &a.Username, &email, &a.PasswordHash, &a.Role, &a.FailedAttempts, &lockedUntil,
		&mfaEnabled, &a.MFASecret, &lastLoginAt, &a.LastLoginIP, &createdAt, &updatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	a.Email = email.String
	a.LockedUntil = fromNullUnix(lockedUntil)
	a.LastLoginAt = fromNullUnix(lastLoginAt)
	a.MFAEnabled = mfaEnabled == 1
	a.CreatedAt = fromUnix(createdAt)
	a.UpdatedAt = fromUnix(updatedAt)
	return &a, nil
}

func (r *AccountRepository) findOne(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, where string, arg any) (*domain.UserAccount, error) {
	a, err := scanAccount(q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find account: %v", domain.ErrStoreUnavailable, err)
	}
	return a, nil
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	return r.findOne(ctx, r.db, "username = ?", username)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	return r.findOne(ctx, r.db, "id = ?", id)
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.UserAccount) (*domain.UserAccount, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	created := account.Clone()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = now
	}
	created.Version = 1

	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.Username, nullString(created.Email), created.PasswordHash, created.Role,
		created.FailedAttempts, toNullUnix(created.LockedUntil), boolToInt(created.MFAEnabled), created.MFASecret,
		toNullUnix(created.LastLoginAt), created.LastLoginIP, created.CreatedAt.UnixNano(), created.UpdatedAt.UnixNano(),
		created.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("%w: insert account: %v", domain.ErrStoreUnavailable, err)
	}
	return created, nil
}

// ApplyUpdate runs mutate inside a transaction. The pool holds a single
// connection, so two updates never interleave; the version check also
// rejects writes from other processes sharing the file.
func (r *AccountRepository) ApplyUpdate(ctx context.Context, id string, mutate ports.AccountMutation) (*domain.UserAccount, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", domain.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := r.findOne(ctx, tx, "id = ?", id)
	if err != nil {
		return nil, err
	}

	working := current.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	if err := working.Validate(); err != nil {
		return nil, err
	}
	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().UTC()

	res, err := tx.ExecContext(ctx, `UPDATE accounts SET
		username = ?, email = ?, password_hash = ?, role = ?, failed_attempts = ?, locked_until = ?,
		mfa_enabled = ?, mfa_secret = ?, last_login_at = ?, last_login_ip = ?, updated_at = ?, version = ?
		WHERE id = ? AND version = ?`,
		working.Username, nullString(working.Email), working.PasswordHash, working.Role, working.FailedAttempts,
		toNullUnix(working.LockedUntil), boolToInt(working.MFAEnabled), working.MFASecret,
		toNullUnix(working.LastLoginAt), working.LastLoginIP, working.UpdatedAt.UnixNano(), working.Version,
		id, current.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("%w: update account: %v", domain.ErrStoreUnavailable, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("%w: update account: %v", domain.ErrStoreUnavailable, err)
	} else if n == 0 {
		return nil, domain.ErrConcurrentUpdate
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", domain.ErrStoreUnavailable, err)
	}
	return working, nil
}

// DeleteAll removes every account. Used by the seeding command.
func (r *AccountRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM accounts"); err != nil {
		return fmt.Errorf("%w: delete accounts: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping satisfies the readiness probe.
func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
