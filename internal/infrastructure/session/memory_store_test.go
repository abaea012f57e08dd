package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/pkg/clock"
)

func newSession(token string, now time.Time, ttl time.Duration) *domain.Session {
	s := &domain.Session{Token: token, UserID: "u1", Stage: domain.StageMFAVerify, CreatedAt: now}
	s.Touch(now, ttl)
	return s
}

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSession("a", clk.Now(), time.Minute)))
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	// Mutating the returned copy must not leak into the store.
	got.MFAFailures = 4
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, again.MFAFailures)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStore_ExpiredSessionIsGone(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSession("a", clk.Now(), time.Minute)))
	clk.Advance(time.Minute)

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_Sweep(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSession("short", clk.Now(), time.Minute)))
	require.NoError(t, store.Save(ctx, newSession("long", clk.Now(), time.Hour)))
	clk.Advance(2 * time.Minute)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
	_, err := store.Get(ctx, "long")
	assert.NoError(t, err)
}

func TestMemoryStore_RunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore(clock.System{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMemoryStore_ConsumeHandsOutOnce(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newSession("a", clk.Now(), time.Minute)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "a"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_ConsumeExpired(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newSession("a", clk.Now(), time.Minute)))
	clk.Advance(time.Minute)

	_, err := store.Consume(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_UpdateSerializesMutations(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newSession("a", clk.Now(), time.Minute)))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "a", func(s *domain.Session) error {
				s.MFAFailures++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, n, got.MFAFailures)
}

func TestMemoryStore_UpdateNeverRecreates(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newSession("a", clk.Now(), time.Minute)))
	require.NoError(t, store.Delete(ctx, "a"))

	_, err := store.Update(ctx, "a", func(s *domain.Session) error {
		s.Touch(clk.Now(), time.Hour)
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_UpdateAbortsOnMutationError(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clk, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newSession("a", clk.Now(), time.Minute)))

	boom := errors.New("boom")
	_, err := store.Update(ctx, "a", func(s *domain.Session) error {
		s.MFAFailures = 9
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, got.MFAFailures)
}
