package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// SessionValidator resolves the live session behind an access token.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionToken string) (*domain.Session, error)
}

// Session validates the bearer JWT, then checks that the session it names
// is still alive. A logged-out or idle-expired session rejects the request
// even while the JWT itself has not expired.
func Session(jwtSecret string, sessions SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			sid, _ := claims["sid"].(string)
			if sid == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			sess, err := sessions.ValidateSession(c.Request().Context(), sid)
			if errors.Is(err, domain.ErrSessionNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
			}
			if err != nil {
				return err
			}
			if sub, _ := claims["sub"].(string); sub != sess.UserID {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set("session", sess)
			c.Set("username", sess.Username)
			c.Set("role", sess.Role)

			return next(c)
		}
	}
}
