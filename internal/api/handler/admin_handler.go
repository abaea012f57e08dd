package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// AuditReader is the read side of the audit store used by the admin API.
type AuditReader interface {
	ListByUsername(ctx context.Context, username string, limit int) ([]domain.AuditEvent, error)
}

// AdminHandler serves account administration. Routes are guarded by the
// Session and RBAC(admin) middleware.
type AdminHandler struct {
	authService ports.AuthService
	audit       AuditReader
}

func NewAdminHandler(authService ports.AuthService, audit AuditReader) *AdminHandler {
	return &AdminHandler{authService: authService, audit: audit}
}

// CreateAccount registers a new account.
//
// @Summary      Create an account
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerRequest  true  "Account"
// @Success      201   {object}  accountResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /admin/accounts [post]
func (h *AdminHandler) CreateAccount(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	account, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toAccountResponse(account))
}

// Unlock clears an account's lock and failure counter.
//
// @Summary      Unlock an account
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  accountResponse
// @Failure      403       {object}  errorResponse
// @Failure      404       {object}  errorResponse
// @Router       /admin/accounts/{username}/unlock [post]
func (h *AdminHandler) Unlock(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	account, err := h.authService.UnlockAccount(c.Request().Context(), c.Param("username"), sess.Username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// Events lists the newest audit events of an account.
//
// @Summary      Account audit trail
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        username  path      string  true   "Username"
// @Param        limit     query     int     false  "Max events (default 50, max 500)"
// @Success      200       {array}   auditEventResponse
// @Failure      400       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Router       /admin/accounts/{username}/events [get]
func (h *AdminHandler) Events(c echo.Context) error {
	limit := defaultEventLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.audit.ListByUsername(c.Request().Context(), c.Param("username"), limit)
	if err != nil {
		return err
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:        e.ID,
			Event:     string(e.Kind),
			ClientIP:  e.ClientIP,
			Timestamp: e.Timestamp,
			Fields:    e.Fields,
		})
	}
	return c.JSON(http.StatusOK, out)
}
