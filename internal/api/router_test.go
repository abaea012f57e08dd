package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/loginguard/auth-service/internal/api/handler"
	"github.com/loginguard/auth-service/internal/core/domain"
	"github.com/loginguard/auth-service/internal/core/ports"
)

const routerSecret = "router-secret"

// fakeAuth serves fixed sessions and answers every login with a generic
// rejection.
type fakeAuth struct {
	sessions map[string]*domain.Session
}

func (f *fakeAuth) SubmitCredentials(context.Context, ports.CredentialsInput) (domain.Outcome, error) {
	return domain.InvalidCredentials(), nil
}

func (f *fakeAuth) SubmitMFACode(context.Context, ports.MFAInput) (domain.Outcome, error) {
	return domain.SessionExpired(), nil
}

func (f *fakeAuth) Abandon(context.Context, string) error { return nil }

func (f *fakeAuth) Logout(context.Context, string, string) error { return nil }

func (f *fakeAuth) ValidateSession(_ context.Context, token string) (*domain.Session, error) {
	s, ok := f.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeAuth) Register(_ context.Context, in ports.RegisterInput) (*domain.UserAccount, error) {
	return &domain.UserAccount{ID: "new", Username: in.Username, Role: domain.RoleUser}, nil
}

func (f *fakeAuth) UnlockAccount(_ context.Context, username, _ string) (*domain.UserAccount, error) {
	return &domain.UserAccount{ID: "u2", Username: username, Role: domain.RoleUser}, nil
}

type noAudit struct{}

func (noAudit) ListByUsername(context.Context, string, int) ([]domain.AuditEvent, error) {
	return nil, nil
}

func newTestRouter() http.Handler {
	auth := &fakeAuth{sessions: map[string]*domain.Session{
		"admin-session": {Token: "admin-session", UserID: "a1", Username: "admin", Role: domain.RoleAdmin, Stage: domain.StageAuthenticated},
		"user-session":  {Token: "user-session", UserID: "u1", Username: "user1", Role: domain.RoleUser, Stage: domain.StageAuthenticated},
	}}
	return NewRouter(RouterDeps{
		AuthService:        auth,
		Audit:              noAudit{},
		Readiness:          map[string]handler.Pinger{},
		JWTSecret:          routerSecret,
		LoginRatePerMinute: 7,
		Log:                zerolog.Nop(),
		Registry:           prometheus.NewRegistry(),
	})
}

func bearer(t *testing.T, sub, sid string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"sid": sid,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(routerSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + signed
}

func do(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.50:1000"
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Guards(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		code   int
	}{
		{"liveness", http.MethodGet, "/health", "", http.StatusOK},
		{"readiness", http.MethodGet, "/health/ready", "", http.StatusOK},
		{"me without token", http.MethodGet, "/auth/me", "", http.StatusUnauthorized},
		{"me with session", http.MethodGet, "/auth/me", bearer(t, "u1", "user-session"), http.StatusOK},
		{"me after logout", http.MethodGet, "/auth/me", bearer(t, "u1", "gone"), http.StatusUnauthorized},
		{"admin as user", http.MethodPost, "/admin/accounts/user2/unlock", bearer(t, "u1", "user-session"), http.StatusForbidden},
		{"admin as admin", http.MethodPost, "/admin/accounts/user2/unlock", bearer(t, "a1", "admin-session"), http.StatusOK},
		{"admin events", http.MethodGet, "/admin/accounts/user2/events", bearer(t, "a1", "admin-session"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(r, tt.method, tt.path, tt.auth, ""); rec.Code != tt.code {
				t.Fatalf("expected %d, got %d (%s)", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_LoginIsRateLimited(t *testing.T) {
	r := newTestRouter()
	body := `{"username":"user1","password":"wrong"}`

	for i := 0; i < 7; i++ {
		if rec := do(r, http.MethodPost, "/auth/login", "", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := do(r, http.MethodPost, "/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
}
