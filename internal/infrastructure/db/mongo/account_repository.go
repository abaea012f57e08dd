package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

const (
	collectionAccounts = "accounts"
	maxUpdateRetries   = 5
)

// AccountRepository implements ports.AccountRepository on MongoDB. Updates
// are compare-and-swap on the version field.
type AccountRepository struct {
	col *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{col: db.Collection(collectionAccounts)}
}

type mongoAccount struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Username       string             `bson:"username"`
	Email          string             `bson:"email,omitempty"`
	PasswordHash   string             `bson:"password_hash"`
	Role           string             `bson:"role"`
	FailedAttempts int                `bson:"failed_attempts"`
	LockedUntil    *time.Time         `bson:"locked_until,omitempty"`
	MFAEnabled     bool               `bson:"mfa_enabled"`
	MFASecret      string             `bson:"mfa_secret,omitempty"`
	LastLoginAt    *time.Time         `bson:"last_login_at,omitempty"`
	LastLoginIP    string             `bson:"last_login_ip,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
	Version        int64              `bson:"version"`
}

func toDocument(a *domain.UserAccount) mongoAccount {
	return mongoAccount{
		Username:       a.Username,
		Email:          a.Email,
		PasswordHash:   a.PasswordHash,
		Role:           a.Role,
		FailedAttempts: a.FailedAttempts,
		LockedUntil:    a.LockedUntil,
		MFAEnabled:     a.MFAEnabled,
		MFASecret:      a.MFASecret,
		LastLoginAt:    a.LastLoginAt,
		LastLoginIP:    a.LastLoginIP,
		CreatedAt:      a.CreatedAt.UTC(),
		UpdatedAt:      a.UpdatedAt.UTC(),
		Version:        a.Version,
	}
}

func (d mongoAccount) toDomain() *domain.UserAccount {
	return &domain.UserAccount{
		ID:             d.ID.Hex(),
		Username:       d.Username,
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		Role:           d.Role,
		FailedAttempts: d.FailedAttempts,
		LockedUntil:    utcPtr(d.LockedUntil),
		MFAEnabled:     d.MFAEnabled,
		MFASecret:      d.MFASecret,
		LastLoginAt:    utcPtr(d.LastLoginAt),
		LastLoginIP:    d.LastLoginIP,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
		Version:        d.Version,
	}
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.UserAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoAccount
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: find account: %v", domain.ErrStoreUnavailable, err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.UserAccount) (*domain.UserAccount, error) {
	if err := account.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	created := account.Clone()
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = now
	}
	created.Version = 1

	doc := toDocument(created)
	doc.ID = primitive.NewObjectID()
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("%w: insert account: %v", domain.ErrStoreUnavailable, err)
	}
	return doc.toDomain(), nil
}

// ApplyUpdate reads the document, applies mutate to a copy and writes it
// back only if the version is unchanged. On a lost race the read and the
// mutation are repeated, so mutate must derive everything from its argument.
func (r *AccountRepository) ApplyUpdate(ctx context.Context, id string, mutate ports.AccountMutation) (*domain.UserAccount, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		current, err := r.findOne(ctx, bson.M{"_id": oid})
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

		swapped, err := r.swap(ctx, oid, current.Version, working)
		if err != nil {
			return nil, err
		}
		if swapped {
			return working, nil
		}
	}
	return nil, domain.ErrConcurrentUpdate
}

func (r *AccountRepository) swap(ctx context.Context, oid primitive.ObjectID, expected int64, next *domain.UserAccount) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toDocument(next)
	doc.ID = oid
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": oid, "version": expected}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, domain.ErrAccountExists
		}
		return false, fmt.Errorf("%w: update account: %v", domain.ErrStoreUnavailable, err)
	}
	return res.MatchedCount == 1, nil
}

// DeleteAll removes every account. Used by the seeding command.
func (r *AccountRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("%w: delete accounts: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping satisfies the readiness probe.
func (r *AccountRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.col.Database().Client().Ping(ctx, nil)
}

// EnsureIndexes creates the unique username and email indexes.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
