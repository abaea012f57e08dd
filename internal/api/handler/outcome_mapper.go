package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/loginguard/auth-service/internal/core/domain"
)

// outcomeStatus maps a login outcome to its HTTP status code.
//
//	authenticated, mfa_*_required        → 200
//	invalid_credentials, invalid_mfa_code → 401
//	session_expired                      → 401
//	challenge_required                   → 403
//	locked                               → 423 (+ Retry-After)
func outcomeStatus(kind domain.OutcomeKind) int {
	switch kind {
	case domain.OutcomeAuthenticated, domain.OutcomeMFASetupRequired, domain.OutcomeMFAVerifyRequired:
		return http.StatusOK
	case domain.OutcomeChallengeRequired:
		return http.StatusForbidden
	case domain.OutcomeLocked:
		return http.StatusLocked
	default:
		return http.StatusUnauthorized
	}
}

func toLoginResponse(out domain.Outcome) loginResponse {
	resp := loginResponse{
		Status:  string(out.Kind),
		Message: out.Message,
	}
	switch out.Kind {
	case domain.OutcomeLocked:
		resp.RetryAfterSeconds = retryAfterSeconds(out)
	case domain.OutcomeMFASetupRequired:
		resp.MFAToken = out.SessionToken
		resp.Secret = out.Secret
		resp.ProvisioningURI = out.ProvisioningURI
	case domain.OutcomeMFAVerifyRequired:
		resp.MFAToken = out.SessionToken
	case domain.OutcomeAuthenticated:
		resp.AccessToken = out.AccessToken
		resp.TokenType = "Bearer"
		resp.User = toAccountResponse(out.Account)
	}
	return resp
}

// retryAfterSeconds rounds the remaining lock time up so a client that
// waits exactly that long is never rejected again.
func retryAfterSeconds(out domain.Outcome) int {
	return int(math.Ceil(out.Remaining.Seconds()))
}

func retryAfterHeader(out domain.Outcome) string {
	return strconv.Itoa(retryAfterSeconds(out))
}
