package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/loginguard/auth-service/internal/api/metrics"
	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

const (
	stepCredentials = "credentials"
	stepMFA         = "mfa"
)

// AuthHandler exposes the login protocol over HTTP.
type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login submits username and password.
//
// @Summary      Submit credentials
// @Description  First login step. Answers with an MFA step, a CAPTCHA demand, a lock or a generic rejection.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  loginResponse
// @Failure      401   {object}  loginResponse
// @Failure      403   {object}  loginResponse
// @Failure      422   {object}  errorResponse
// @Failure      423   {object}  loginResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	start := time.Now()
	out, err := h.authService.SubmitCredentials(c.Request().Context(), ports.CredentialsInput{
		Username:          req.Username,
		Password:          req.Password,
		ChallengeResponse: req.CaptchaResponse,
		ClientIP:          c.RealIP(),
		PriorToken:        req.MFAToken,
	})
	if err != nil {
		return err
	}
	return respondOutcome(c, stepCredentials, start, out)
}

// VerifyMFA submits a TOTP code against the pending session.
//
// @Summary      Submit TOTP code
// @Description  Second login step. Completes enrollment on first use and issues the access token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      mfaRequest  true  "Pending session and code"
// @Success      200   {object}  loginResponse
// @Failure      401   {object}  loginResponse
// @Failure      422   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/mfa [post]
func (h *AuthHandler) VerifyMFA(c echo.Context) error {
	var req mfaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	start := time.Now()
	out, err := h.authService.SubmitMFACode(c.Request().Context(), ports.MFAInput{
		SessionToken: req.MFAToken,
		Code:         req.Code,
		ClientIP:     c.RealIP(),
	})
	if err != nil {
		return err
	}
	return respondOutcome(c, stepMFA, start, out)
}

// Abandon discards a pending session.
//
// @Summary      Abandon a pending login
// @Tags         auth
// @Accept       json
// @Param        body  body  abandonRequest  true  "Pending session"
// @Success      204
// @Failure      422   {object}  errorResponse
// @Router       /auth/mfa/abandon [post]
func (h *AuthHandler) Abandon(c echo.Context) error {
	var req abandonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if err := h.authService.Abandon(c.Request().Context(), req.MFAToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Logout destroys the caller's authenticated session.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401   {object}  errorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), sess.Token, c.RealIP()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me describes the caller's session.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	sess, err := ctxSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{
		UserID:    sess.UserID,
		Username:  sess.Username,
		Role:      sess.Role,
		ClientIP:  sess.ClientIP,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

func respondOutcome(c echo.Context, step string, start time.Time, out domain.Outcome) error {
	metrics.LoginOutcomesTotal.WithLabelValues(step, string(out.Kind)).Inc()
	metrics.LoginStepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())

	if out.Kind == domain.OutcomeLocked {
		c.Response().Header().Set("Retry-After", retryAfterHeader(out))
	}
	return c.JSON(outcomeStatus(out.Kind), toLoginResponse(out))
}
