package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Store    StoreConfig
	Mongo    MongoConfig
	SQLite   SQLiteConfig
	Sessions SessionConfig
	Redis    RedisConfig
	Policy   PolicyConfig
	MFA      MFAConfig
	Captcha  CaptchaConfig
	HTTP     HTTPConfig
	Audit    AuditConfig
}

// StoreConfig selects the account store backend: mongo or sqlite.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER, default=mongo"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=auth_service"`
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH, default=auth.db"`
}

// SessionConfig selects where sessions live (redis or memory) and how long
// they survive without activity.
type SessionConfig struct {
	Backend    string        `env:"SESSION_BACKEND,     default=redis"`
	PendingTTL time.Duration `env:"PENDING_SESSION_TTL, default=5m"`
	TTL        time.Duration `env:"SESSION_TTL,         default=8h"`
	TokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL,    default=24h"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type PolicyConfig struct {
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD, default=5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION,  default=5m"`
	ChallengeLow     int           `env:"CHALLENGE_LOW,     default=3"`
	ChallengeHigh    int           `env:"CHALLENGE_HIGH,    default=5"`
}

type MFAConfig struct {
	Issuer      string `env:"MFA_ISSUER,       default=LoginGuard"`
	MaxFailures int    `env:"MFA_MAX_FAILURES, default=5"`
}

type CaptchaConfig struct {
	Secret    string `env:"RECAPTCHA_SECRET"`
	VerifyURL string `env:"RECAPTCHA_VERIFY_URL, default=https://www.google.com/recaptcha/api/siteverify"`
}

type HTTPConfig struct {
	LoginRatePerMinute int `env:"LOGIN_RATE_PER_MINUTE, default=7"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom processes cfg from an arbitrary lookuper and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "mongo", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be mongo or sqlite, got %q", c.Store.Driver))
	}
	switch c.Sessions.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND must be redis or memory, got %q", c.Sessions.Backend))
	}
	if c.Policy.LockoutThreshold < 1 {
		errs = append(errs, errors.New("LOCKOUT_THRESHOLD must be at least 1"))
	}
	if c.Policy.LockoutDuration <= 0 {
		errs = append(errs, errors.New("LOCKOUT_DURATION must be positive"))
	}
	if c.Policy.ChallengeLow > c.Policy.ChallengeHigh {
		errs = append(errs, errors.New("CHALLENGE_LOW must not exceed CHALLENGE_HIGH"))
	}
	if c.Sessions.PendingTTL <= 0 || c.Sessions.TTL <= 0 || c.Sessions.TokenTTL <= 0 {
		errs = append(errs, errors.New("session and token lifetimes must be positive"))
	}
	if c.MFA.MaxFailures < 1 {
		errs = append(errs, errors.New("MFA_MAX_FAILURES must be at least 1"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
