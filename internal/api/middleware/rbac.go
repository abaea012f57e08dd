package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// RBAC admits only sessions whose role is in allowedRoles. It must run
// after Session, which puts the role on the context.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if _, ok := allowed[role]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
