package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/loginguard/auth-service/internal/core/domain"
)

const collectionAuditEvents = "audit_events"

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAuditEvents)}
}

type auditDocument struct {
	ID          string            `bson:"_id"`
	Event       string            `bson:"event"`
	Username    string            `bson:"username,omitempty"`
	UserID      string            `bson:"user_id,omitempty"`
	ClientIP    string            `bson:"client_ip,omitempty"`
	Timestamp   time.Time         `bson:"timestamp"`
	Fields      map[string]string `bson:"fields,omitempty"`
	ProcessedAt time.Time         `bson:"processed_at"`
}

// InsertEvent persists an audit event to the audit_events collection.
func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := auditDocument{
		ID:          event.ID,
		Event:       string(event.Kind),
		Username:    event.Username,
		UserID:      event.UserID,
		ClientIP:    event.ClientIP,
		Timestamp:   event.Timestamp.UTC(),
		Fields:      event.Fields,
		ProcessedAt: time.Now().UTC(),
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Redelivered event; already stored.
			return nil
		}
		return fmt.Errorf("%w: insert audit event: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ListByUsername returns the newest events recorded for username.
func (r *AuditRepository) ListByUsername(ctx context.Context, username string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list audit events: %v", domain.ErrStoreUnavailable, err)
	}
	defer cur.Close(ctx)

	var docs []auditDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode audit events: %v", domain.ErrStoreUnavailable, err)
	}

	out := make([]domain.AuditEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.AuditEvent{
			ID:        d.ID,
			Kind:      domain.AuditEventKind(d.Event),
			Username:  d.Username,
			UserID:    d.UserID,
			ClientIP:  d.ClientIP,
			Timestamp: d.Timestamp.UTC(),
			Fields:    d.Fields,
		})
	}
	return out, nil
}

// EnsureIndexes creates the per-user timeline index.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return err
}
