package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

// maxUpdateRetries bounds optimistic retries when another client touches
// the key between WATCH and EXEC.
const maxUpdateRetries = 5

// SessionStore keeps pending and authenticated sessions in Redis.
// Key format: session:<token>. The key TTL mirrors the session's inactivity
// window so abandoned sessions disappear without a sweeper.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a SessionStore wrapping the given Redis client.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	ttl := session.TTL()
	if ttl <= 0 {
		return s.Delete(ctx, session.Token)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, key(session.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: save session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", domain.ErrStoreUnavailable, err)
	}
	return decode(raw)
}

// Consume uses GETDEL so exactly one caller receives the session.
func (s *SessionStore) Consume(ctx context.Context, token string) (*domain.Session, error) {
	raw, err := s.client.GetDel(ctx, key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: consume session: %v", domain.ErrStoreUnavailable, err)
	}
	return decode(raw)
}

// Update runs mutate under WATCH and writes back with SET XX, so a key
// deleted by a concurrent Logout or Consume is never written again.
func (s *SessionStore) Update(ctx context.Context, token string, mutate ports.SessionMutation) (*domain.Session, error) {
	k := key(token)
	var (
		updated *domain.Session
		// failed carries errors that must reach the caller unwrapped.
		failed error
	)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			failed = domain.ErrSessionNotFound
			return failed
		}
		if err != nil {
			return err
		}
		session, err := decode(raw)
		if err != nil {
			failed = err
			return err
		}
		if err := mutate(session); err != nil {
			failed = err
			return err
		}
		session.Token = token
		payload, err := json.Marshal(session)
		if err != nil {
			failed = fmt.Errorf("encode session: %w", err)
			return failed
		}

		var written *redis.BoolCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ttl := session.TTL(); ttl > 0 {
				written = pipe.SetXX(ctx, k, payload, ttl)
			} else {
				pipe.Del(ctx, k)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if written == nil || !written.Val() {
			failed = domain.ErrSessionNotFound
			return failed
		}
		updated = session
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		failed = nil
		err := s.client.Watch(ctx, txf, k)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case failed != nil:
			return nil, failed
		default:
			return nil, fmt.Errorf("%w: update session: %v", domain.ErrStoreUnavailable, err)
		}
	}
	return nil, domain.ErrConcurrentUpdate
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("%w: delete session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping satisfies the readiness probe.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decode(raw []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func key(token string) string {
	return "session:" + token
}
