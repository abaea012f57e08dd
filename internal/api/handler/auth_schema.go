package handler

import (
	"time"

	"github.com/loginguard/auth-service/internal/core/domain"
)

type loginRequest struct {
	Username        string `json:"username"         validate:"required,max=64"`
	Password        string `json:"password"         validate:"required,max=256"`
	CaptchaResponse string `json:"captcha_response" validate:"max=4096"`
	MFAToken        string `json:"mfa_token"        validate:"max=128"`
}

type mfaRequest struct {
	MFAToken string `json:"mfa_token" validate:"required,max=128"`
	Code     string `json:"code"      validate:"required,max=16"`
}

type abandonRequest struct {
	MFAToken string `json:"mfa_token" validate:"required,max=128"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email"    validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role"     validate:"omitempty,oneof=admin user"`
}

// loginResponse is the body of every login step. Status mirrors the outcome
// kind; the remaining fields are set only when they apply to it.
type loginResponse struct {
	Status            string           `json:"status"`
	Message           string           `json:"message"`
	MFAToken          string           `json:"mfa_token,omitempty"`
	Secret            string           `json:"secret,omitempty"`
	ProvisioningURI   string           `json:"provisioning_uri,omitempty"`
	AccessToken       string           `json:"access_token,omitempty"`
	TokenType         string           `json:"token_type,omitempty"`
	RetryAfterSeconds int              `json:"retry_after_seconds,omitempty"`
	User              *accountResponse `json:"user,omitempty"`
}

type accountResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	Role        string     `json:"role"`
	MFAEnabled  bool       `json:"mfa_enabled"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP string     `json:"last_login_ip,omitempty"`
}

type sessionResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ClientIP  string    `json:"client_ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type auditEventResponse struct {
	ID        string            `json:"id"`
	Event     string            `json:"event"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toAccountResponse(a *domain.UserAccount) *accountResponse {
	if a == nil {
		return nil
	}
	return &accountResponse{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Role:        a.Role,
		MFAEnabled:  a.MFAEnabled,
		LockedUntil: a.LockedUntil,
		LastLoginAt: a.LastLoginAt,
		LastLoginIP: a.LastLoginIP,
	}
}
