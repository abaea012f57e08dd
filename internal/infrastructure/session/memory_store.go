// Package session holds the in-process session store used when no Redis
// instance is configured.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

// MemoryStore is a mutex-guarded map of sessions. Expired entries are
// dropped on read and by the janitor started with Run.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	clock    ports.Clock
	log      zerolog.Logger
}

func NewMemoryStore(clock ports.Clock, log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		clock:    clock,
		log:      log,
	}
}

func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	m.sessions[s.Token] = *s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (*domain.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.Expired(m.clock.Now()) {
		m.mu.Lock()
		if cur, ok := m.sessions[token]; ok && cur.Expired(m.clock.Now()) {
			delete(m.sessions, token)
		}
		m.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	delete(m.sessions, token)
	if s.Expired(m.clock.Now()) {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

// Update holds the write lock across mutate, so concurrent updates on one
// token are applied one after the other.
func (m *MemoryStore) Update(_ context.Context, token string, mutate ports.SessionMutation) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.Expired(m.clock.Now()) {
		delete(m.sessions, token)
		return nil, domain.ErrSessionNotFound
	}
	if err := mutate(&s); err != nil {
		return nil, err
	}
	s.Token = token
	m.sessions[token] = s
	return &s, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Sweep removes every expired session and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, token)
			n++
		}
	}
	return n
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run sweeps on every tick until ctx is cancelled.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug().Int("dropped", n).Msg("expired sessions swept")
			}
		}
	}
}
