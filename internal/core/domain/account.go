package domain

import (
	"fmt"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// UserAccount models a login identity together with its lockout and MFA state.
type UserAccount struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email,omitempty"`
	PasswordHash   string     `json:"-"`
	Role           string     `json:"role"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
	MFAEnabled     bool       `json:"mfa_enabled"`
	MFASecret      string     `json:"-"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP    string     `json:"last_login_ip,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Version        int64      `json:"-"`
}

// HasMFASecret reports whether a shared TOTP secret has been provisioned.
func (a *UserAccount) HasMFASecret() bool {
	return a.MFASecret != ""
}

// Validate checks the invariants every store enforces before committing.
func (a *UserAccount) Validate() error {
	if a.Username == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidAccount)
	}
	if a.FailedAttempts < 0 {
		return fmt.Errorf("%w: negative failed attempts", ErrInvalidAccount)
	}
	if a.MFAEnabled && !a.HasMFASecret() {
		return fmt.Errorf("%w: mfa enabled without secret", ErrInvalidAccount)
	}
	return nil
}

// Clone returns a deep copy so callers never share pointer fields.
func (a *UserAccount) Clone() *UserAccount {
	if a == nil {
		return nil
	}
	c := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		c.LockedUntil = &t
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
