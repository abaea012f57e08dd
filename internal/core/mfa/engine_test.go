package mfa

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loginguard/auth-service/internal/core/domain"
)

var now = time.Date(2026, 5, 1, 12, 0, 10, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine("LoginGuard", rand.Reader)
}

func enrolledSecret(t *testing.T, e *Engine) string {
	t.Helper()
	secret, err := e.GenerateSecret()
	require.NoError(t, err)
	return secret
}

func TestGenerateSecret_Entropy(t *testing.T) {
	e := newTestEngine(t)
	secret := enrolledSecret(t, e)

	raw, err := b32.DecodeString(secret)
	require.NoError(t, err)
	assert.Len(t, raw, SecretSize)
	assert.NotContains(t, secret, "=")
	assert.NotEqual(t, secret, enrolledSecret(t, e))
}

func TestGenerateSecret_RandomFailure(t *testing.T) {
	e := NewEngine("LoginGuard", bytes.NewReader([]byte{1, 2, 3}))
	_, err := e.GenerateSecret()
	require.Error(t, err)
}

func TestVerifyCode_SkewWindow(t *testing.T) {
	e := newTestEngine(t)
	secret := enrolledSecret(t, e)

	accepted := []time.Duration{0, -30 * time.Second, 30 * time.Second}
	for _, off := range accepted {
		code, err := e.CodeAt(secret, now.Add(off))
		require.NoError(t, err)
		assert.True(t, e.VerifyCode(secret, code, now), "offset %s should be accepted", off)
	}

	rejected := []time.Duration{-60 * time.Second, 60 * time.Second}
	for _, off := range rejected {
		code, err := e.CodeAt(secret, now.Add(off))
		require.NoError(t, err)
		assert.False(t, e.VerifyCode(secret, code, now), "offset %s should be rejected", off)
	}
}

func TestVerifyCode_MalformedInput(t *testing.T) {
	e := newTestEngine(t)
	secret := enrolledSecret(t, e)

	for _, code := range []string{"", "12345", "1234567", "12a456", " 12345", "１２３４５６"} {
		assert.False(t, e.VerifyCode(secret, code, now), "code %q", code)
	}
	assert.False(t, e.VerifyCode("", "123456", now))
	assert.False(t, e.VerifyCode("not base32 !!", "123456", now))
}

func TestBeginEnrollment_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	acct := domain.UserAccount{Username: "alice"}
	assert.Equal(t, NotEnrolled, e.State(acct))

	acct, changed, err := e.BeginEnrollment(acct)
	require.NoError(t, err)
	require.True(t, changed)
	require.NotEmpty(t, acct.MFASecret)
	assert.Equal(t, PendingEnrollment, e.State(acct))

	again, changed, err := e.BeginEnrollment(acct)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, acct.MFASecret, again.MFASecret)
}

func TestCompleteEnrollment(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CompleteEnrollment(domain.UserAccount{Username: "bob"})
	require.True(t, errors.Is(err, domain.ErrMFANotEnrolled))

	acct, _, err := e.BeginEnrollment(domain.UserAccount{Username: "bob"})
	require.NoError(t, err)
	acct, err = e.CompleteEnrollment(acct)
	require.NoError(t, err)
	assert.True(t, acct.MFAEnabled)
	assert.Equal(t, Enrolled, e.State(acct))
	assert.NoError(t, acct.Validate())
}

func TestProvisioningURI_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	acct, _, err := e.BeginEnrollment(domain.UserAccount{Username: "carol"})
	require.NoError(t, err)

	uri, err := e.ProvisioningURI(acct)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"))
	assert.Contains(t, uri, "secret="+acct.MFASecret)
	assert.Contains(t, uri, "issuer=LoginGuard")
	assert.Contains(t, uri, "carol")

	again, err := e.ProvisioningURI(acct)
	require.NoError(t, err)
	assert.Equal(t, uri, again)
}

func TestProvisioningURI_NoSecret(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ProvisioningURI(domain.UserAccount{Username: "dave"})
	assert.ErrorIs(t, err, domain.ErrMFANotEnrolled)
}
