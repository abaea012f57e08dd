package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/mfa"
	"github.com/loginguard/auth-service/internal/core/policy"
	"github.com/loginguard/auth-service/internal/core/ports"
)

const (
	defaultPendingTTL     = 5 * time.Minute
	defaultSessionTTL     = 8 * time.Hour
	defaultTokenTTL       = 24 * time.Hour
	defaultMaxMFAFailures = 5
	sessionTokenBytes     = 32
)

// errLockedConcurrently aborts an account update when another request locked
// the account between our read and our write.
var errLockedConcurrently = errors.New("account locked by concurrent request")

// Deps are the collaborators of AuthService.
type Deps struct {
	Accounts   ports.AccountRepository
	Sessions   ports.SessionStore
	Hasher     ports.PasswordHasher
	Challenges ports.ChallengeVerifier
	MFA        *mfa.Engine
	Events     ports.EventSink
	Clock      ports.Clock
	// Rand is the CSPRNG for session tokens. Defaults to crypto/rand.
	Rand io.Reader
}

// Options tune the protocol. Zero values fall back to defaults.
type Options struct {
	Lockout        policy.Lockout
	PendingTTL     time.Duration
	SessionTTL     time.Duration
	TokenTTL       time.Duration
	MaxMFAFailures int
	JWTSecret      string
}

// AuthService drives the login state machine: credentials, lockout, CAPTCHA
// escalation, TOTP enrollment/verification and session lifecycle.
type AuthService struct {
	accounts   ports.AccountRepository
	sessions   ports.SessionStore
	hasher     ports.PasswordHasher
	challenges ports.ChallengeVerifier
	mfa        *mfa.Engine
	events     ports.EventSink
	clock      ports.Clock
	rand       io.Reader
	policy     policy.Lockout
	opts       Options
	dummyHash  string
	log        zerolog.Logger
}

func NewAuthService(deps Deps, opts Options, log zerolog.Logger) (*AuthService, error) {
	if deps.Accounts == nil || deps.Sessions == nil || deps.Hasher == nil ||
		deps.Challenges == nil || deps.MFA == nil || deps.Events == nil || deps.Clock == nil {
		return nil, errors.New("auth service: missing dependency")
	}
	if deps.Rand == nil {
		deps.Rand = rand.Reader
	}
	if opts.Lockout.Threshold <= 0 {
		opts.Lockout = policy.NewLockout()
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = defaultPendingTTL
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.MaxMFAFailures <= 0 {
		opts.MaxMFAFailures = defaultMaxMFAFailures
	}

	// Unknown usernames are checked against this hash so both failure
	// paths pay for one password comparison.
	filler := make([]byte, 24)
	if _, err := io.ReadFull(deps.Rand, filler); err != nil {
		return nil, fmt.Errorf("auth service: seed dummy hash: %w", err)
	}
	dummy, err := deps.Hasher.Hash(base64.RawStdEncoding.EncodeToString(filler))
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy hash: %w", err)
	}

	return &AuthService{
		accounts:   deps.Accounts,
		sessions:   deps.Sessions,
		hasher:     deps.Hasher,
		challenges: deps.Challenges,
		mfa:        deps.MFA,
		events:     deps.Events,
		clock:      deps.Clock,
		rand:       deps.Rand,
		policy:     opts.Lockout,
		opts:       opts,
		dummyHash:  dummy,
		log:        log,
	}, nil
}

// SubmitCredentials runs the password half of the protocol.
func (s *AuthService) SubmitCredentials(ctx context.Context, in ports.CredentialsInput) (domain.Outcome, error) {
	if in.PriorToken != "" {
		if err := s.Abandon(ctx, in.PriorToken); err != nil {
			return domain.Outcome{}, fmt.Errorf("submit credentials: %w", err)
		}
	}

	account, err := s.accounts.FindByUsername(ctx, in.Username)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.hasher.Compare(s.dummyHash, in.Password)
		s.emit(ctx, domain.EventPasswordFailure, in.Username, "", in.ClientIP, nil)
		return domain.InvalidCredentials(), nil
	}
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("submit credentials: %w", err)
	}

	now := s.clock.Now()
	switch st := s.policy.Evaluate(*account, now); st.Status {
	case policy.Locked:
		return s.rejectLocked(ctx, account, in.ClientIP, st.Remaining), nil
	case policy.LockExpired:
		account, err = s.clearExpiredLock(ctx, account.ID, now)
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("submit credentials: %w", err)
		}
		if st := s.policy.Evaluate(*account, now); st.Status == policy.Locked {
			return s.rejectLocked(ctx, account, in.ClientIP, st.Remaining), nil
		}
	}

	if s.policy.RequiresChallenge(account.FailedAttempts) {
		ok, err := s.verifyChallenge(ctx, in)
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("submit credentials: %w", err)
		}
		if !ok {
			s.emit(ctx, domain.EventCaptchaTrigger, account.Username, account.ID, in.ClientIP, map[string]string{
				"failed_attempts": fmt.Sprint(account.FailedAttempts),
			})
			return domain.ChallengeRequired(), nil
		}
	}

	if !s.hasher.Compare(account.PasswordHash, in.Password) {
		return s.passwordFailed(ctx, account, in.ClientIP, now)
	}
	return s.passwordAccepted(ctx, account, in.ClientIP, now)
}

func (s *AuthService) rejectLocked(ctx context.Context, account *domain.UserAccount, clientIP string, remaining time.Duration) domain.Outcome {
	s.emit(ctx, domain.EventLockedLoginAttempt, account.Username, account.ID, clientIP, map[string]string{
		"remaining_seconds": fmt.Sprint(int(remaining.Seconds())),
	})
	return domain.Locked(remaining)
}

func (s *AuthService) clearExpiredLock(ctx context.Context, id string, now time.Time) (*domain.UserAccount, error) {
	return s.accounts.ApplyUpdate(ctx, id, func(a *domain.UserAccount) error {
		if s.policy.Evaluate(*a, now).Status == policy.LockExpired {
			*a = s.policy.ClearExpiredLock(*a)
		}
		return nil
	})
}

func (s *AuthService) verifyChallenge(ctx context.Context, in ports.CredentialsInput) (bool, error) {
	if in.ChallengeResponse == "" {
		return false, nil
	}
	return s.challenges.Verify(ctx, in.ChallengeResponse, in.ClientIP)
}

func (s *AuthService) passwordFailed(ctx context.Context, account *domain.UserAccount, clientIP string, now time.Time) (domain.Outcome, error) {
	var (
		lockedNow  bool
		concurrent policy.LockState
	)
	updated, err := s.accounts.ApplyUpdate(ctx, account.ID, func(a *domain.UserAccount) error {
		lockedNow = false
		switch st := s.policy.Evaluate(*a, now); st.Status {
		case policy.Locked:
			concurrent = st
			return errLockedConcurrently
		case policy.LockExpired:
			*a = s.policy.ClearExpiredLock(*a)
		}
		*a, lockedNow = s.policy.RecordFailure(*a, now)
		return nil
	})
	if errors.Is(err, errLockedConcurrently) {
		return s.rejectLocked(ctx, account, clientIP, concurrent.Remaining), nil
	}
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("record failure: %w", err)
	}

	if lockedNow {
		remaining := updated.LockedUntil.Sub(now)
		s.emit(ctx, domain.EventAccountLockout, updated.Username, updated.ID, clientIP, map[string]string{
			"lock_seconds": fmt.Sprint(int(remaining.Seconds())),
		})
		return domain.Locked(remaining), nil
	}

	s.emit(ctx, domain.EventPasswordFailure, updated.Username, updated.ID, clientIP, map[string]string{
		"failed_attempts": fmt.Sprint(updated.FailedAttempts),
	})
	return domain.InvalidCredentials(), nil
}

func (s *AuthService) passwordAccepted(ctx context.Context, account *domain.UserAccount, clientIP string, now time.Time) (domain.Outcome, error) {
	var (
		provisioned bool
		concurrent  policy.LockState
	)
	updated, err := s.accounts.ApplyUpdate(ctx, account.ID, func(a *domain.UserAccount) error {
		provisioned = false
		if st := s.policy.Evaluate(*a, now); st.Status == policy.Locked {
			concurrent = st
			return errLockedConcurrently
		}
		*a = s.policy.RecordSuccess(*a)
		next, changed, err := s.mfa.BeginEnrollment(*a)
		if err != nil {
			return err
		}
		*a, provisioned = next, changed
		return nil
	})
	if errors.Is(err, errLockedConcurrently) {
		return s.rejectLocked(ctx, account, clientIP, concurrent.Remaining), nil
	}
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("record success: %w", err)
	}
	if provisioned {
		s.log.Debug().Str("user_id", updated.ID).Msg("mfa secret provisioned")
	}

	stage := domain.StageMFASetup
	if s.mfa.State(*updated) == mfa.Enrolled {
		stage = domain.StageMFAVerify
	}

	session, err := s.openSession(ctx, updated, stage, clientIP, now, s.opts.PendingTTL)
	if err != nil {
		return domain.Outcome{}, err
	}
	if stage == domain.StageMFAVerify {
		return domain.MFAVerifyRequired(session.Token), nil
	}

	uri, err := s.mfa.ProvisioningURI(*updated)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("provisioning uri: %w", err)
	}
	return domain.MFASetupRequired(updated.MFASecret, uri, session.Token), nil
}

// SubmitMFACode runs the TOTP half of the protocol against a pending session.
func (s *AuthService) SubmitMFACode(ctx context.Context, in ports.MFAInput) (domain.Outcome, error) {
	now := s.clock.Now()
	session, err := s.loadSession(ctx, in.SessionToken, now)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("submit mfa code: %w", err)
	}
	if session == nil || !session.Stage.IsPending() {
		return domain.SessionExpired(), nil
	}

	account, err := s.accounts.FindByID(ctx, session.UserID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.dropSession(ctx, session.Token)
		return domain.SessionExpired(), nil
	}
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("submit mfa code: %w", err)
	}

	if !s.mfa.VerifyCode(account.MFASecret, in.Code, now) {
		return s.codeRejected(ctx, session, account, in.ClientIP, now)
	}

	// Only one caller can redeem a pending session; a concurrent request
	// with the same code finds it gone.
	if _, err := s.sessions.Consume(ctx, session.Token); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.SessionExpired(), nil
		}
		return domain.Outcome{}, fmt.Errorf("redeem session: %w", err)
	}

	enrolling := session.Stage == domain.StageMFASetup
	updated, err := s.accounts.ApplyUpdate(ctx, account.ID, func(a *domain.UserAccount) error {
		if enrolling {
			next, err := s.mfa.CompleteEnrollment(*a)
			if err != nil {
				return err
			}
			*a = next
		}
		at := now
		a.LastLoginAt = &at
		a.LastLoginIP = in.ClientIP
		return nil
	})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("complete login: %w", err)
	}

	mfaState := "existing"
	if enrolling {
		mfaState = "enrolled"
		s.emit(ctx, domain.EventMFASetupSuccess, updated.Username, updated.ID, in.ClientIP, nil)
	}

	// The pending token never becomes the authenticated one.
	authenticated, err := s.openSession(ctx, updated, domain.StageAuthenticated, in.ClientIP, now, s.opts.SessionTTL)
	if err != nil {
		return domain.Outcome{}, err
	}
	accessToken, err := s.issueAccessToken(updated, authenticated.Token, now)
	if err != nil {
		s.dropSession(ctx, authenticated.Token)
		return domain.Outcome{}, err
	}

	s.emit(ctx, domain.EventLoginSuccess, updated.Username, updated.ID, in.ClientIP, map[string]string{
		"mfa": mfaState,
	})
	return domain.Authenticated(updated, authenticated.Token, accessToken), nil
}

func (s *AuthService) codeRejected(ctx context.Context, session *domain.Session, account *domain.UserAccount, clientIP string, now time.Time) (domain.Outcome, error) {
	updated, err := s.sessions.Update(ctx, session.Token, func(sess *domain.Session) error {
		if !sess.Stage.IsPending() || sess.Expired(now) {
			return domain.ErrSessionNotFound
		}
		sess.MFAFailures++
		sess.Touch(now, s.opts.PendingTTL)
		return nil
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.SessionExpired(), nil
	}
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("record mfa failure: %w", err)
	}

	s.emit(ctx, domain.EventInvalidTOTP, account.Username, account.ID, clientIP, map[string]string{
		"stage":    string(updated.Stage),
		"attempts": fmt.Sprintf("%d/%d", updated.MFAFailures, s.opts.MaxMFAFailures),
	})
	if updated.MFAFailures < s.opts.MaxMFAFailures {
		return domain.InvalidMFACode(), nil
	}

	// Several requests can push the counter past the cap; the one that
	// consumes the session reports it.
	if _, err := s.sessions.Consume(ctx, updated.Token); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.SessionExpired(), nil
		}
		return domain.Outcome{}, fmt.Errorf("drop session: %w", err)
	}
	s.emit(ctx, domain.EventMFAAttemptsExceeded, account.Username, account.ID, clientIP, nil)
	return domain.SessionExpired(), nil
}

// Abandon destroys a pending session. Unknown tokens are ignored.
func (s *AuthService) Abandon(ctx context.Context, pendingToken string) error {
	session, err := s.loadSession(ctx, pendingToken, s.clock.Now())
	if err != nil {
		return err
	}
	// A token's stage never changes, so the peek above is enough to keep
	// Abandon away from authenticated sessions.
	if session == nil || !session.Stage.IsPending() {
		return nil
	}
	if _, err := s.sessions.Consume(ctx, session.Token); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	return nil
}

// Logout destroys an authenticated session.
func (s *AuthService) Logout(ctx context.Context, sessionToken, clientIP string) error {
	session, err := s.loadSession(ctx, sessionToken, s.clock.Now())
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if session == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, session.Token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.emit(ctx, domain.EventLogout, session.Username, session.UserID, clientIP, nil)
	return nil
}

// ValidateSession resolves an authenticated session and slides its
// inactivity window.
func (s *AuthService) ValidateSession(ctx context.Context, sessionToken string) (*domain.Session, error) {
	now := s.clock.Now()
	session, err := s.loadSession(ctx, sessionToken, now)
	if err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}
	if session == nil || session.Stage != domain.StageAuthenticated {
		return nil, domain.ErrSessionNotFound
	}
	// Update never writes a session back once Logout has deleted it.
	touched, err := s.sessions.Update(ctx, session.Token, func(sess *domain.Session) error {
		if sess.Stage != domain.StageAuthenticated || sess.Expired(now) {
			return domain.ErrSessionNotFound
		}
		sess.Touch(now, s.opts.SessionTTL)
		return nil
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}
	return touched, nil
}

// UnlockAccount clears a lock and the failure counter on behalf of actor.
func (s *AuthService) UnlockAccount(ctx context.Context, username, actor string) (*domain.UserAccount, error) {
	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	updated, err := s.accounts.ApplyUpdate(ctx, account.ID, func(a *domain.UserAccount) error {
		*a = s.policy.RecordSuccess(*a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unlock account: %w", err)
	}
	s.emit(ctx, domain.EventAccountUnlocked, updated.Username, updated.ID, "", map[string]string{
		"actor": actor,
	})
	return updated, nil
}

// loadSession returns nil, nil for unknown or expired tokens; expired ones
// are removed.
func (s *AuthService) loadSession(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.Expired(now) {
		s.dropSession(ctx, token)
		return nil, nil
	}
	return session, nil
}

func (s *AuthService) openSession(ctx context.Context, account *domain.UserAccount, stage domain.SessionStage, clientIP string, now time.Time, ttl time.Duration) (*domain.Session, error) {
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	session := &domain.Session{
		Token:     token,
		UserID:    account.ID,
		Username:  account.Username,
		Role:      account.Role,
		Stage:     stage,
		ClientIP:  clientIP,
		CreatedAt: now,
	}
	session.Touch(now, ttl)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return session, nil
}

func (s *AuthService) dropSession(ctx context.Context, token string) {
	if err := s.sessions.Delete(ctx, token); err != nil {
		s.log.Warn().Err(err).Msg("failed to delete session")
	}
}

func (s *AuthService) newToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := io.ReadFull(s.rand, buf); err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *AuthService) emit(ctx context.Context, kind domain.AuditEventKind, username, userID, clientIP string, fields map[string]string) {
	s.events.Emit(ctx, domain.AuditEvent{
		Kind:      kind,
		Username:  username,
		UserID:    userID,
		ClientIP:  clientIP,
		Timestamp: s.clock.Now(),
		Fields:    fields,
	})
}
