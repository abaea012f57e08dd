// Package mfa implements TOTP enrollment and verification (RFC 6238) on top
// of github.com/pquerna/otp.
//
// Codes are 6 digits, SHA1, 30-second steps, and a submitted code is accepted
// for the current step and one step either side to absorb clock drift.
package mfa

import (
	"encoding/base32"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/loginguard/auth-service/internal/core/domain"
)

const (
	// SecretSize is the shared secret length in bytes (160 bits).
	SecretSize = 20
	Period     = 30
	Skew       = 1
	Digits     = otp.DigitsSix
)

// State is the enrollment state of an account.
type State int

const (
	NotEnrolled State = iota
	PendingEnrollment
	Enrolled
)

func (s State) String() string {
	switch s {
	case PendingEnrollment:
		return "pending_enrollment"
	case Enrolled:
		return "enrolled"
	default:
		return "not_enrolled"
	}
}

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Engine generates secrets and checks codes. It is safe for concurrent use
// as long as the random source is.
type Engine struct {
	issuer string
	rand   io.Reader
	opts   totp.ValidateOpts
}

// NewEngine returns an Engine labelling provisioning URIs with issuer and
// drawing secrets from random, which must be a CSPRNG.
func NewEngine(issuer string, random io.Reader) *Engine {
	return &Engine{
		issuer: issuer,
		rand:   random,
		opts: totp.ValidateOpts{
			Period:    Period,
			Skew:      Skew,
			Digits:    Digits,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
}

// State derives the enrollment state from the account fields.
func (e *Engine) State(account domain.UserAccount) State {
	switch {
	case account.MFAEnabled && account.HasMFASecret():
		return Enrolled
	case account.HasMFASecret():
		return PendingEnrollment
	default:
		return NotEnrolled
	}
}

// GenerateSecret returns a fresh base32 secret without padding.
func (e *Engine) GenerateSecret() (string, error) {
	raw := make([]byte, SecretSize)
	if _, err := io.ReadFull(e.rand, raw); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// BeginEnrollment provisions a secret when the account has none. It is
// idempotent: an existing secret is kept and changed is false.
func (e *Engine) BeginEnrollment(account domain.UserAccount) (domain.UserAccount, bool, error) {
	if account.HasMFASecret() {
		return account, false, nil
	}
	secret, err := e.GenerateSecret()
	if err != nil {
		return account, false, err
	}
	account.MFASecret = secret
	account.MFAEnabled = false
	return account, true, nil
}

// ProvisioningURI builds the otpauth:// URI an authenticator app scans.
// The same account always yields the same URI.
func (e *Engine) ProvisioningURI(account domain.UserAccount) (string, error) {
	if !account.HasMFASecret() {
		return "", domain.ErrMFANotEnrolled
	}
	raw, err := b32.DecodeString(strings.ToUpper(strings.TrimSpace(account.MFASecret)))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: account.Username,
		Period:      Period,
		SecretSize:  uint(len(raw)),
		Secret:      raw,
		Digits:      Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// VerifyCode reports whether code matches secret at now, or one step before
// or after. Malformed codes are rejected without error.
func (e *Engine) VerifyCode(secret, code string, now time.Time) bool {
	if secret == "" || !wellFormed(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now.UTC(), e.opts)
	if err != nil {
		return false
	}
	return ok
}

// CompleteEnrollment marks MFA as enabled. It must only be called after
// VerifyCode succeeded for the account's pending secret.
func (e *Engine) CompleteEnrollment(account domain.UserAccount) (domain.UserAccount, error) {
	if !account.HasMFASecret() {
		return account, domain.ErrMFANotEnrolled
	}
	account.MFAEnabled = true
	return account, nil
}

// CodeAt returns the code valid for secret at t.
func (e *Engine) CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), e.opts)
}

func wellFormed(code string) bool {
	if len(code) != Digits.Length() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
