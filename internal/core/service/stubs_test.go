package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/mfa"
	"github.com/loginguard/auth-service/internal/core/ports"
	"github.com/loginguard/auth-service/internal/pkg/clock"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubAccountRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.UserAccount
	nextID  int
	failErr error
	updates int
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{byID: make(map[string]*domain.UserAccount)}
}

func (r *stubAccountRepo) FindByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	for _, a := range r.byID {
		if a.Username == username {
			return a.Clone(), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.UserAccount) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Username == account.Username {
			return nil, domain.ErrAccountExists
		}
	}
	r.nextID++
	c := account.Clone()
	c.ID = fmt.Sprintf("u%d", r.nextID)
	r.byID[c.ID] = c
	return c.Clone(), nil
}

func (r *stubAccountRepo) ApplyUpdate(_ context.Context, id string, mutate ports.AccountMutation) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	current, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	working := current.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	if err := working.Validate(); err != nil {
		return nil, err
	}
	working.Version++
	r.byID[id] = working
	r.updates++
	return working.Clone(), nil
}

func (r *stubAccountRepo) get(t *testing.T, username string) *domain.UserAccount {
	t.Helper()
	a, err := r.FindByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("account %s: %v", username, err)
	}
	return a
}

type stubSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	// afterGet, when set, runs once right after the next Get returns its
	// copy, standing in for a request that lands in between.
	afterGet func()
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *stubSessionStore) Save(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *session
	s.sessions[session.Token] = &c
	return nil
}

func (s *stubSessionStore) Get(_ context.Context, token string) (*domain.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	var c domain.Session
	if ok {
		c = *sess
	}
	hook := s.afterGet
	s.afterGet = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &c, nil
}

func (s *stubSessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *stubSessionStore) Consume(_ context.Context, token string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	delete(s.sessions, token)
	return sess, nil
}

func (s *stubSessionStore) Update(_ context.Context, token string, mutate ports.SessionMutation) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := *sess
	if err := mutate(&c); err != nil {
		return nil, err
	}
	s.sessions[token] = &c
	out := c
	return &out, nil
}

func (s *stubSessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *stubSessionStore) countStage(stage domain.SessionStage) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.Stage == stage {
			n++
		}
	}
	return n
}

// stubHasher prefixes instead of hashing and counts comparisons.
type stubHasher struct {
	mu       sync.Mutex
	compares int
}

func (h *stubHasher) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (h *stubHasher) Compare(hash, plaintext string) bool {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return subtle.ConstantTimeCompare([]byte(hash), []byte("hashed:"+plaintext)) == 1
}

func (h *stubHasher) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.compares
}

type stubChallenge struct {
	valid string
	err   error
	calls int
}

func (c *stubChallenge) Verify(_ context.Context, response, _ string) (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return response == c.valid, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, e domain.AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) kinds() []domain.AuditEventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

func (s *recordingSink) last() domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return domain.AuditEvent{}
	}
	return s.events[len(s.events)-1]
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

const (
	testSecret   = "jwt-test-secret"
	testPassword = "correct horse"
	testIP       = "203.0.113.7"
)

type harness struct {
	svc        *AuthService
	accounts   *stubAccountRepo
	sessions   *stubSessionStore
	hasher     *stubHasher
	challenges *stubChallenge
	sink       *recordingSink
	clock      *clock.Manual
	mfa        *mfa.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		accounts:   newStubAccountRepo(),
		sessions:   newStubSessionStore(),
		hasher:     &stubHasher{},
		challenges: &stubChallenge{valid: "captcha-ok"},
		sink:       &recordingSink{},
		clock:      clock.NewManual(time.Now()),
		mfa:        mfa.NewEngine("LoginGuard", rand.Reader),
	}
	svc, err := NewAuthService(Deps{
		Accounts:   h.accounts,
		Sessions:   h.sessions,
		Hasher:     h.hasher,
		Challenges: h.challenges,
		MFA:        h.mfa,
		Events:     h.sink,
		Clock:      h.clock,
	}, Options{JWTSecret: testSecret}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	h.svc = svc
	return h
}

func (h *harness) register(t *testing.T, username string) *domain.UserAccount {
	t.Helper()
	a, err := h.svc.Register(context.Background(), ports.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return a
}

func (h *harness) login(t *testing.T, username, password string) domain.Outcome {
	t.Helper()
	out, err := h.svc.SubmitCredentials(context.Background(), ports.CredentialsInput{
		Username: username,
		Password: password,
		ClientIP: testIP,
	})
	if err != nil {
		t.Fatalf("SubmitCredentials: %v", err)
	}
	return out
}

func (h *harness) submitCode(t *testing.T, token, code string) domain.Outcome {
	t.Helper()
	out, err := h.svc.SubmitMFACode(context.Background(), ports.MFAInput{
		SessionToken: token,
		Code:         code,
		ClientIP:     testIP,
	})
	if err != nil {
		t.Fatalf("SubmitMFACode: %v", err)
	}
	return out
}

func (h *harness) currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := h.mfa.CodeAt(secret, h.clock.Now())
	if err != nil {
		t.Fatalf("CodeAt: %v", err)
	}
	return code
}

// wrongCode returns a well-formed code that differs from the current one.
func (h *harness) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	code := h.currentCode(t, secret)
	if code == "000000" {
		return "999999"
	}
	return "000000"
}

// enroll walks an account through password + MFA setup and returns the
// shared secret.
func (h *harness) enroll(t *testing.T, username string) string {
	t.Helper()
	out := h.login(t, username, testPassword)
	if out.Kind != domain.OutcomeMFASetupRequired {
		t.Fatalf("expected mfa setup, got %s", out.Kind)
	}
	done := h.submitCode(t, out.SessionToken, h.currentCode(t, out.Secret))
	if done.Kind != domain.OutcomeAuthenticated {
		t.Fatalf("expected authenticated, got %s", done.Kind)
	}
	return out.Secret
}

func hasKind(kinds []domain.AuditEventKind, want domain.AuditEventKind) bool {
	for _, k := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
