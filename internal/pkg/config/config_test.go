package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Port != "8080" || cfg.Store.Driver != "mongo" || cfg.Sessions.Backend != "redis" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Policy.LockoutThreshold != 5 || cfg.Policy.LockoutDuration != 5*time.Minute {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Policy)
	}
	if cfg.Policy.ChallengeLow != 3 || cfg.Policy.ChallengeHigh != 5 {
		t.Fatalf("unexpected challenge defaults: %+v", cfg.Policy)
	}
	if cfg.Sessions.PendingTTL != 5*time.Minute || cfg.MFA.Issuer != "LoginGuard" {
		t.Fatalf("unexpected session/mfa defaults: %+v %+v", cfg.Sessions, cfg.MFA)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"STORE_DRIVER":      "sqlite",
		"SQLITE_PATH":       ":memory:",
		"SESSION_BACKEND":   "memory",
		"LOCKOUT_THRESHOLD": "3",
		"LOCKOUT_DURATION":  "90s",
		"ENV":               "production",
	}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Store.Driver != "sqlite" || cfg.SQLite.Path != ":memory:" || cfg.Sessions.Backend != "memory" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Policy.LockoutThreshold != 3 || cfg.Policy.LockoutDuration != 90*time.Second {
		t.Fatalf("policy overrides not applied: %+v", cfg.Policy)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production")
	}
}

func TestLoadFrom_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown store", map[string]string{"STORE_DRIVER": "postgres"}, "STORE_DRIVER"},
		{"unknown sessions", map[string]string{"SESSION_BACKEND": "disk"}, "SESSION_BACKEND"},
		{"zero threshold", map[string]string{"LOCKOUT_THRESHOLD": "0"}, "LOCKOUT_THRESHOLD"},
		{"inverted band", map[string]string{"CHALLENGE_LOW": "6"}, "CHALLENGE_LOW"},
		{"bad duration", map[string]string{"LOCKOUT_DURATION": "soon"}, "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(tt.env))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
