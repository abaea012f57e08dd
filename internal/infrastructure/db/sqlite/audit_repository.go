package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// AuditRepository implements ports.AuditRepository on the audit_events table.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuditEvent) error {
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	fields, err := json.Marshal(event.Fields)
	if err != nil {
		return fmt.Errorf("encode audit fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, kind, username, user_id, client_ip, ts, fields) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(event.Kind), event.Username, event.UserID, event.ClientIP, event.Timestamp.UTC().UnixNano(), string(fields))
	if err != nil {
		return fmt.Errorf("%w: insert audit event: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ListByUsername returns the most recent events for username, newest first.
func (r *AuditRepository) ListByUsername(ctx context.Context, username string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, username, user_id, client_ip, ts, fields FROM audit_events
		 WHERE username = ? ORDER BY ts DESC LIMIT ?`, username, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list audit events: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e      domain.AuditEvent
			kind   string
			ts     int64
			fields string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Username, &e.UserID, &e.ClientIP, &ts, &fields); err != nil {
			return nil, fmt.Errorf("%w: scan audit event: %v", domain.ErrStoreUnavailable, err)
		}
		e.Kind = domain.AuditEventKind(kind)
		e.Timestamp = fromUnix(ts)
		if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
			return nil, fmt.Errorf("decode audit fields: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
