// Package config loads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Portal configures cmd/portal.
type Portal struct {
	Addr           string        `env:"RECRUITGATE_PORTAL_ADDR"          envDefault:":8080"`
	GRPCAddr       string        `env:"RECRUITGATE_PORTAL_GRPC_ADDR"     envDefault:":9090"`
	Origin         string        `env:"RECRUITGATE_PORTAL_ORIGIN"        envDefault:"http://localhost:8080"`
	BackendURL     string        `env:"RECRUITGATE_BACKEND_URL"          envDefault:"http://localhost:8081"`
	BackendTimeout time.Duration `env:"RECRUITGATE_BACKEND_TIMEOUT"      envDefault:"10s"`
	BackendRPS     float64       `env:"RECRUITGATE_BACKEND_RPS"          envDefault:"50"`
	BackendBurst   int           `env:"RECRUITGATE_BACKEND_BURST"        envDefault:"100"`
	StoreDriver    string        `env:"RECRUITGATE_TOKENSTORE_DRIVER"    envDefault:"memory"`
	StoreDSN       string        `env:"RECRUITGATE_TOKENSTORE_DSN"`
	MigrateOnBoot  bool          `env:"RECRUITGATE_TOKENSTORE_MIGRATE"   envDefault:"true"`
	TokenSecret    string        `env:"RECRUITGATE_TOKEN_SECRET"`
	CookieSecure   bool          `env:"RECRUITGATE_COOKIE_SECURE"        envDefault:"false"`
	ProfileIdleTTL time.Duration `env:"RECRUITGATE_PROFILE_IDLE_TTL"     envDefault:"30m"`
	RateBurst      int           `env:"RECRUITGATE_RATE_BURST"           envDefault:"40"`
	RatePerSecond  float64       `env:"RECRUITGATE_RATE_PER_SECOND"      envDefault:"20"`
	MaxBodyBytes   int64         `env:"RECRUITGATE_MAX_BODY_BYTES"       envDefault:"6291456"`
	TrustProxy     bool          `env:"RECRUITGATE_TRUST_FORWARDED_FOR"  envDefault:"false"`
	HealthInterval time.Duration `env:"RECRUITGATE_HEALTH_INTERVAL"      envDefault:"10s"`
	LogLevel       string        `env:"RECRUITGATE_LOG_LEVEL"            envDefault:"info"`
	LogFile        string        `env:"RECRUITGATE_LOG_FILE"`
}

// DevAPI configures cmd/devapi.
type DevAPI struct {
	Addr           string        `env:"RECRUITGATE_DEVAPI_ADDR"         envDefault:":8081"`
	Secret         string        `env:"RECRUITGATE_TOKEN_SECRET,required"`
	TokenTTL       time.Duration `env:"RECRUITGATE_TOKEN_TTL"           envDefault:"4h"`
	SeedUser       string        `env:"RECRUITGATE_SEED_USER"           envDefault:"admin"`
	SeedEmail      string        `env:"RECRUITGATE_SEED_EMAIL"          envDefault:"admin@recruitgate.local"`
	SeedPassword   string        `env:"RECRUITGATE_SEED_PASSWORD"`
	SeedRole       string        `env:"RECRUITGATE_SEED_ROLE"           envDefault:"ADMIN"`
	AllowedOrigins []string      `env:"RECRUITGATE_ALLOWED_ORIGINS"     envSeparator:","`
	LogLevel       string        `env:"RECRUITGATE_LOG_LEVEL"           envDefault:"info"`
	LogFile        string        `env:"RECRUITGATE_LOG_FILE"`
}

// Migrate configures cmd/migrate.
type Migrate struct {
	Driver   string `env:"RECRUITGATE_TOKENSTORE_DRIVER" envDefault:"postgres"`
	DSN      string `env:"RECRUITGATE_TOKENSTORE_DSN"`
	Table    string `env:"RECRUITGATE_MIGRATIONS_TABLE"  envDefault:"schema_migrations"`
	LogLevel string `env:"RECRUITGATE_LOG_LEVEL"         envDefault:"info"`
}

// LoadDotEnv loads each file into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadPortal reads portal settings.
func LoadPortal() (Portal, error) {
	var cfg Portal
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Portal) Validate() error {
	u, err := url.Parse(c.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: portal origin %q must be an absolute URL", c.Origin)
	}
	switch strings.ToLower(strings.TrimSpace(c.StoreDriver)) {
	case "memory":
	case "postgres", "pgx", "postgresql", "sqlite", "sqlite3":
		if strings.TrimSpace(c.StoreDSN) == "" {
			return fmt.Errorf("config: RECRUITGATE_TOKENSTORE_DSN is required for driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("config: unsupported token store driver %q", c.StoreDriver)
	}
	if c.ProfileIdleTTL <= 0 {
		return errors.New("config: profile idle ttl must be positive")
	}
	return nil
}

// LoadDevAPI reads dev backend settings.
func LoadDevAPI() (DevAPI, error) {
	var cfg DevAPI
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.SeedUser != "" && len(cfg.SeedPassword) < 6 {
		return cfg, errors.New("config: RECRUITGATE_SEED_PASSWORD must be at least 6 characters when a seed user is set")
	}
	return cfg, nil
}

// LoadMigrate reads migration tool settings.
func LoadMigrate() (Migrate, error) {
	var cfg Migrate
	err := parse(&cfg)
	return cfg, err
}

func parse(target any) error {
	if err := LoadDotEnv(envFile()); err != nil {
		return err
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func envFile() string {
	if f := strings.TrimSpace(os.Getenv("RECRUITGATE_ENV_FILE")); f != "" {
		return f
	}
	return ".env"
}
