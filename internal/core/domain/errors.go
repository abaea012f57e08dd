package domain

import "errors"

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidAccount     = errors.New("invalid account state")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrMFANotEnrolled     = errors.New("mfa secret not provisioned")
	ErrForbidden          = errors.New("access forbidden")

	// ErrStoreUnavailable wraps any infrastructure failure of a backing store.
	// It is fatal for the request and never retried with stale data.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConcurrentUpdate is returned when an optimistic update keeps losing
	// to concurrent writers.
	ErrConcurrentUpdate = errors.New("concurrent account update")
)
