// Package policy holds the pure decision rules of the login protocol:
// progressive lockout and CAPTCHA escalation. Nothing here reads a clock or
// touches storage; callers pass the account and the current time in.
package policy

import (
	"time"

	"github.com/loginguard/auth-service/internal/core/domain"
)

const (
	DefaultLockThreshold = 5
	DefaultLockDuration  = 5 * time.Minute
	DefaultChallengeLow  = 3
	DefaultChallengeHigh = 5
)

// LockStatus is the derived lockout state of an account.
type LockStatus int

const (
	Unlocked LockStatus = iota
	Locked
	// LockExpired means lockedUntil is set but already in the past; the
	// caller must clear it before continuing.
	LockExpired
)

func (s LockStatus) String() string {
	switch s {
	case Locked:
		return "locked"
	case LockExpired:
		return "lock_expired"
	default:
		return "unlocked"
	}
}

// LockState is the result of Evaluate.
type LockState struct {
	Status    LockStatus
	Remaining time.Duration
}

// Lockout holds the thresholds. The zero value is not usable; build it with
// NewLockout or fill every field.
type Lockout struct {
	Threshold     int
	Duration      time.Duration
	ChallengeLow  int
	ChallengeHigh int
}

// NewLockout returns the policy with default thresholds.
func NewLockout() Lockout {
	return Lockout{
		Threshold:     DefaultLockThreshold,
		Duration:      DefaultLockDuration,
		ChallengeLow:  DefaultChallengeLow,
		ChallengeHigh: DefaultChallengeHigh,
	}
}

// Evaluate derives the lock state of account at now.
func (p Lockout) Evaluate(account domain.UserAccount, now time.Time) LockState {
	if account.LockedUntil == nil {
		return LockState{Status: Unlocked}
	}
	if account.LockedUntil.After(now) {
		return LockState{Status: Locked, Remaining: account.LockedUntil.Sub(now)}
	}
	return LockState{Status: LockExpired}
}

// ClearExpiredLock drops an elapsed lock and keeps the failure counter.
func (p Lockout) ClearExpiredLock(account domain.UserAccount) domain.UserAccount {
	account.LockedUntil = nil
	return account
}

// RecordFailure counts one failed password check. When the counter reaches
// the threshold the account is locked and the counter reset in the same
// value; lockedNow reports that transition.
func (p Lockout) RecordFailure(account domain.UserAccount, now time.Time) (domain.UserAccount, bool) {
	account.FailedAttempts++
	if account.FailedAttempts < p.Threshold {
		return account, false
	}
	until := now.Add(p.Duration)
	account.LockedUntil = &until
	account.FailedAttempts = 0
	return account, true
}

// RecordSuccess resets the counter and any lock.
func (p Lockout) RecordSuccess(account domain.UserAccount) domain.UserAccount {
	account.FailedAttempts = 0
	account.LockedUntil = nil
	return account
}
