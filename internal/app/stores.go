// Package app is the composition root: it turns a Config into connected
// stores, the login orchestrator and the HTTP server.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/loginguard/auth-service/internal/core/ports"
	"github.com/loginguard/auth-service/internal/infrastructure/db/mongo"
	"github.com/loginguard/auth-service/internal/infrastructure/db/redis"
	"github.com/loginguard/auth-service/internal/infrastructure/db/sqlite"
	"github.com/loginguard/auth-service/internal/infrastructure/session"
	"github.com/loginguard/auth-service/internal/pkg/config"
)

// AccountStore is an account repository that can also be pinged and wiped.
type AccountStore interface {
	ports.AccountRepository
	DeleteAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// SessionBackend is a session store that can be pinged.
type SessionBackend interface {
	ports.SessionStore
	Ping(ctx context.Context) error
}

// Stores bundles the persistent backends selected by STORE_DRIVER.
type Stores struct {
	Accounts AccountStore
	Audit    ports.AuditRepository
	closers  []func(context.Context) error
}

// Close releases every connection opened by OpenStores.
func (s *Stores) Close(ctx context.Context) error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStores connects the account and audit store.
func OpenStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLite.Path})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("sqlite store opened")
		return &Stores{
			Accounts: sqlite.NewAccountRepository(db),
			Audit:    sqlite.NewAuditRepository(db),
			closers:  []func(context.Context) error{func(context.Context) error { return db.Close() }},
		}, nil

	case "mongo":
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		accounts := mongo.NewAccountRepository(db)
		audit := mongo.NewAuditRepository(db)
		if err := mongo.EnsureIndexes(ctx, accounts, audit); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongo store connected")
		return &Stores{
			Accounts: accounts,
			Audit:    audit,
			closers:  []func(context.Context) error{client.Disconnect},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Sessions is the session backend selected by SESSION_BACKEND.
type Sessions struct {
	Store SessionBackend
	// Janitor sweeps expired sessions; nil when the backend expires keys itself.
	Janitor *session.MemoryStore
	close   func() error
}

func (s *Sessions) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenSessions connects the session backend.
func OpenSessions(ctx context.Context, cfg *config.Config, clock ports.Clock, log zerolog.Logger) (*Sessions, error) {
	switch cfg.Sessions.Backend {
	case "memory":
		mem := session.NewMemoryStore(clock, log.With().Str("component", "session_store").Logger())
		log.Warn().Msg("in-memory session store: sessions are lost on restart and not shared between replicas")
		return &Sessions{Store: mem, Janitor: mem}, nil

	case "redis":
		client, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis session store connected")
		return &Sessions{Store: redis.NewSessionStore(client), close: client.Close}, nil

	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}
