package domain

import "time"

// AuditEventKind names a security-relevant step of the login protocol.
type AuditEventKind string

const (
	EventPasswordFailure     AuditEventKind = "password_failure"
	EventAccountLockout      AuditEventKind = "account_lockout"
	EventLockedLoginAttempt  AuditEventKind = "locked_login_attempt"
	EventCaptchaTrigger      AuditEventKind = "captcha_trigger"
	EventInvalidTOTP         AuditEventKind = "invalid_totp"
	EventMFAAttemptsExceeded AuditEventKind = "mfa_attempts_exceeded"
	EventMFASetupSuccess     AuditEventKind = "mfa_setup_success"
	EventLoginSuccess        AuditEventKind = "login_success"
	EventLogout              AuditEventKind = "logout"
	EventAccountUnlocked     AuditEventKind = "account_unlocked"
)

// AuditEvent is emitted for every protocol decision. Fields only ever carry
// identifiers and counts, never passwords, secrets or codes.
type AuditEvent struct {
	ID        string            `json:"id"`
	Kind      AuditEventKind    `json:"event"`
	Username  string            `json:"username"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}
