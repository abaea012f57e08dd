package domain

import "time"

// SessionStage is the position of a client in the login state machine.
type SessionStage string

const (
	StageMFASetup      SessionStage = "mfa_setup"
	StageMFAVerify     SessionStage = "mfa_verify"
	StageAuthenticated SessionStage = "authenticated"
)

// IsPending reports whether the stage still waits for a TOTP code.
func (s SessionStage) IsPending() bool {
	return s == StageMFASetup || s == StageMFAVerify
}

// Session is server-side state keyed by an unguessable token. Pending
// sessions bridge the password check and the MFA step; authenticated ones
// back the access token issued after MFA.
type Session struct {
	Token       string       `json:"token"`
	UserID      string       `json:"user_id"`
	Username    string       `json:"username"`
	Role        string       `json:"role"`
	Stage       SessionStage `json:"stage"`
	ClientIP    string       `json:"client_ip,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	LastSeenAt  time.Time    `json:"last_seen_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	MFAFailures int          `json:"mfa_failures,omitempty"`
}

// Expired reports whether the inactivity window has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Touch slides the inactivity window forward.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.LastSeenAt = now
	s.ExpiresAt = now.Add(ttl)
}

// TTL is the remaining lifetime measured from the last activity.
func (s *Session) TTL() time.Duration {
	return s.ExpiresAt.Sub(s.LastSeenAt)
}
