// Package redis stores sessions in Redis with native key expiry.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// Config holds the connection settings for the session backend.
type Config struct {
	Addr string
	DB   int
	// PingTimeout bounds the startup connectivity check. Zero means 5s.
	PingTimeout time.Duration
}

// Session reads and writes sit on the login path, so socket timeouts are
// kept well below the HTTP request budget.
const (
	dialTimeout  = 2 * time.Second
	ioTimeout    = 500 * time.Millisecond
	pingFallback = 5 * time.Second
)

// Connect returns a client that answered a PING. The client is closed when
// the ping fails.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = pingFallback
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis %s: %v", domain.ErrStoreUnavailable, cfg.Addr, err)
	}
	return client, nil
}
