package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// unreachableClient points at a closed port so every command fails fast.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSessionStore_KeyFormat(t *testing.T) {
	if got := key("abc"); got != "session:abc" {
		t.Fatalf("key = %q", got)
	}
}

func TestSessionStore_WrapsTransportErrors(t *testing.T) {
	store := NewSessionStore(unreachableClient(t))
	now := time.Now()
	sess := &domain.Session{Token: "tok", LastSeenAt: now, ExpiresAt: now.Add(time.Minute)}

	if err := store.Save(context.Background(), sess); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("Save: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Get(context.Background(), "tok"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("Get: expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.Delete(context.Background(), "tok"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("Delete: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.Consume(context.Background(), "tok"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("Consume: expected ErrStoreUnavailable, got %v", err)
	}
	called := false
	_, err := store.Update(context.Background(), "tok", func(*domain.Session) error {
		called = true
		return nil
	})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("Update: expected ErrStoreUnavailable, got %v", err)
	}
	if called {
		t.Fatal("Update must not run the mutation without reading the session")
	}
}
