package app

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/loginguard/auth-service/internal/api"
	"github.com/loginguard/auth-service/internal/api/handler"
	"github.com/loginguard/auth-service/internal/core/mfa"
	"github.com/loginguard/auth-service/internal/core/policy"
	"github.com/loginguard/auth-service/internal/core/service"
	"github.com/loginguard/auth-service/internal/infrastructure/audit"
	"github.com/loginguard/auth-service/internal/infrastructure/captcha"
	"github.com/loginguard/auth-service/internal/infrastructure/password"
	"github.com/loginguard/auth-service/internal/pkg/clock"
	"github.com/loginguard/auth-service/internal/pkg/config"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Minute
)

// App is a fully wired server.
type App struct {
	cfg        *config.Config
	log        zerolog.Logger
	stores     *Stores
	sessions   *Sessions
	dispatcher *audit.Dispatcher
	echo       *echo.Echo
}

// Option customises New.
type Option func(*options)

type options struct {
	registry *prometheus.Registry
}

// WithRegistry records HTTP metrics on reg instead of the default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// New connects every backend and assembles the HTTP server.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	clk := clock.System{}

	stores, err := OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	sessions, err := OpenSessions(ctx, cfg, clk, log)
	if err != nil {
		_ = stores.Close(ctx)
		return nil, err
	}

	dispatcher := audit.NewDispatcher(cfg.Audit.Workers, stores.Audit, log.With().Str("component", "audit").Logger())
	sink := audit.NewSink(log.With().Str("component", "auth_events").Logger(), dispatcher)

	if cfg.Captcha.Secret == "" {
		log.Warn().Msg("RECAPTCHA_SECRET not set: challenged logins cannot succeed")
	}

	svc, err := service.NewAuthService(service.Deps{
		Accounts:   stores.Accounts,
		Sessions:   sessions.Store,
		Hasher:     password.NewBcryptHasher(bcrypt.DefaultCost),
		Challenges: captcha.NewRecaptcha(cfg.Captcha.Secret, cfg.Captcha.VerifyURL, &http.Client{Timeout: 5 * time.Second}),
		MFA:        mfa.NewEngine(cfg.MFA.Issuer, rand.Reader),
		Events:     sink,
		Clock:      clk,
	}, service.Options{
		Lockout: policy.Lockout{
			Threshold:     cfg.Policy.LockoutThreshold,
			Duration:      cfg.Policy.LockoutDuration,
			ChallengeLow:  cfg.Policy.ChallengeLow,
			ChallengeHigh: cfg.Policy.ChallengeHigh,
		},
		PendingTTL:     cfg.Sessions.PendingTTL,
		SessionTTL:     cfg.Sessions.TTL,
		TokenTTL:       cfg.Sessions.TokenTTL,
		MaxMFAFailures: cfg.MFA.MaxFailures,
		JWTSecret:      cfg.JWTSecret,
	}, log.With().Str("component", "orchestrator").Logger())
	if err != nil {
		_ = sessions.Close()
		_ = stores.Close(ctx)
		return nil, err
	}

	e := api.NewRouter(api.RouterDeps{
		AuthService: svc,
		Audit:       stores.Audit,
		Readiness: map[string]handler.Pinger{
			"account_store": stores.Accounts,
			"session_store": sessions.Store,
		},
		JWTSecret:          cfg.JWTSecret,
		LoginRatePerMinute: cfg.HTTP.LoginRatePerMinute,
		Log:                log.With().Str("component", "http").Logger(),
		Registry:           o.registry,
	})

	return &App{
		cfg:        cfg,
		log:        log,
		stores:     stores,
		sessions:   sessions,
		dispatcher: dispatcher,
		echo:       e,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully:
// the listener stops first, queued audit events are flushed, and the
// stores are closed last.
func (a *App) Run(ctx context.Context) error {
	workers, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	a.dispatcher.Start(workers)
	if a.sessions.Janitor != nil {
		go a.sessions.Janitor.Run(workers, janitorInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("port", a.cfg.Port).Str("env", a.cfg.Env).Msg("server starting")
		if err := a.echo.Start(":" + a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server...")
	case runErr = <-errCh:
		a.log.Error().Err(runErr).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("server shutdown failed")
	}
	stopWorkers()
	a.dispatcher.Wait()
	a.Close(shutdownCtx)

	a.log.Info().Msg("server gracefully stopped")
	return runErr
}

// Handler exposes the router, mainly for in-process tests.
func (a *App) Handler() http.Handler {
	return a.echo
}

// Close releases the session backend and the stores.
func (a *App) Close(ctx context.Context) {
	if err := a.sessions.Close(); err != nil {
		a.log.Error().Err(err).Msg("session store close failed")
	}
	if err := a.stores.Close(ctx); err != nil {
		a.log.Error().Err(err).Msg("store close failed")
	}
}
