package domain

import "time"

// OutcomeKind tags the result of a login protocol step.
type OutcomeKind string

const (
	OutcomeLocked             OutcomeKind = "locked"
	OutcomeChallengeRequired  OutcomeKind = "challenge_required"
	OutcomeInvalidCredentials OutcomeKind = "invalid_credentials"
	OutcomeMFASetupRequired   OutcomeKind = "mfa_setup_required"
	OutcomeMFAVerifyRequired  OutcomeKind = "mfa_verify_required"
	OutcomeInvalidMFACode     OutcomeKind = "invalid_mfa_code"
	OutcomeSessionExpired     OutcomeKind = "session_expired"
	OutcomeAuthenticated      OutcomeKind = "authenticated"
)

// User-facing messages. The invalid credentials message is shared by the
// unknown-user and wrong-password paths.
const (
	MsgInvalidCredentials = "Invalid username or password."
	MsgLocked             = "Account temporarily locked. Try again later."
	MsgChallengeRequired  = "Please complete the CAPTCHA to continue."
	MsgMFASetupRequired   = "Scan the provisioning code with your authenticator app and enter the code."
	MsgMFAVerifyRequired  = "Enter the code from your authenticator app."
	MsgInvalidMFACode     = "Invalid authentication code."
	MsgSessionExpired     = "Your login session expired. Please sign in again."
	MsgAuthenticated      = "Login successful."
)

// Outcome is a tagged variant; only the fields relevant to Kind are set.
type Outcome struct {
	Kind    OutcomeKind
	Message string

	// Locked
	Remaining time.Duration

	// MFASetupRequired
	Secret          string
	ProvisioningURI string

	// MFASetupRequired, MFAVerifyRequired (pending token) and
	// Authenticated (rotated session token).
	SessionToken string

	// Authenticated
	AccessToken string
	Account     *UserAccount
}

func Locked(remaining time.Duration) Outcome {
	return Outcome{Kind: OutcomeLocked, Message: MsgLocked, Remaining: remaining}
}

func ChallengeRequired() Outcome {
	return Outcome{Kind: OutcomeChallengeRequired, Message: MsgChallengeRequired}
}

func InvalidCredentials() Outcome {
	return Outcome{Kind: OutcomeInvalidCredentials, Message: MsgInvalidCredentials}
}

func MFASetupRequired(secret, uri, token string) Outcome {
	return Outcome{
		Kind:            OutcomeMFASetupRequired,
		Message:         MsgMFASetupRequired,
		Secret:          secret,
		ProvisioningURI: uri,
		SessionToken:    token,
	}
}

func MFAVerifyRequired(token string) Outcome {
	return Outcome{Kind: OutcomeMFAVerifyRequired, Message: MsgMFAVerifyRequired, SessionToken: token}
}

func InvalidMFACode() Outcome {
	return Outcome{Kind: OutcomeInvalidMFACode, Message: MsgInvalidMFACode}
}

func SessionExpired() Outcome {
	return Outcome{Kind: OutcomeSessionExpired, Message: MsgSessionExpired}
}

func Authenticated(account *UserAccount, sessionToken, accessToken string) Outcome {
	return Outcome{
		Kind:         OutcomeAuthenticated,
		Message:      MsgAuthenticated,
		Account:      account,
		SessionToken: sessionToken,
		AccessToken:  accessToken,
	}
}
