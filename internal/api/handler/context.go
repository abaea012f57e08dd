package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// Context keys written by the Session middleware.
const (
	CtxSession  = "session"
	CtxUsername = "username"
	CtxRole     = "role"
)

// ctxSession returns the authenticated session injected by the Session
// middleware. Its absence means the route was registered without the
// middleware, which is reported as 401 rather than a panic.
func ctxSession(c echo.Context) (*domain.Session, error) {
	s, _ := c.Get(CtxSession).(*domain.Session)
	if s == nil || s.Token == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return s, nil
}
