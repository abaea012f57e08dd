package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/loginguard/auth-service/docs"
	"github.com/loginguard/auth-service/internal/api/handler"
	"github.com/loginguard/auth-service/internal/api/middleware"
	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

// RouterDeps are the collaborators the HTTP layer needs.
type RouterDeps struct {
	AuthService        ports.AuthService
	Audit              handler.AuditReader
	Readiness          map[string]handler.Pinger
	JWTSecret          string
	LoginRatePerMinute int
	Log                zerolog.Logger
	// Registry receives the HTTP metrics. Nil means the default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsMiddlewareConfig(deps.Registry)))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	adminHandler := handler.NewAdminHandler(deps.AuthService, deps.Audit)
	session := middleware.Session(deps.JWTSecret, deps.AuthService)
	loginLimit := middleware.LoginRateLimit(deps.LoginRatePerMinute)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/login", authHandler.Login, loginLimit)
	auth.POST("/mfa", authHandler.VerifyMFA, loginLimit)
	auth.POST("/mfa/abandon", authHandler.Abandon)
	auth.POST("/logout", authHandler.Logout, session)
	auth.GET("/me", authHandler.Me, session)

	// --- Admin routes ---
	admin := e.Group("/admin", session, middleware.RBAC(domain.RoleAdmin))
	admin.POST("/accounts", adminHandler.CreateAccount)
	admin.POST("/accounts/:username/unlock", adminHandler.Unlock)
	admin.GET("/accounts/:username/events", adminHandler.Events)

	// --- Health probes (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(deps.Readiness).Readiness)

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(metricsHandlerConfig(deps.Registry)))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func metricsMiddlewareConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{
		Namespace: "auth",
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health" || c.Path() == "/health/ready"
		},
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func metricsHandlerConfig(reg *prometheus.Registry) echoprometheus.HandlerConfig {
	var cfg echoprometheus.HandlerConfig
	if reg != nil {
		cfg.Gatherer = reg
	}
	return cfg
}

// requestLogger writes one zerolog line per request. Bodies are never
// logged since they carry passwords and codes.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURIPath:   true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= 500 {
				evt = log.Error().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
