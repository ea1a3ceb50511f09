// Package config loads runtime settings from the environment.
//
// Values come from HOMEWISE_* variables. A .env file in the working
// directory is read first when present; variables already set in the
// process environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "HOMEWISE"

// Environment names accepted by HOMEWISE_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// S3 fields are read as HOMEWISE_S3_*.
type S3 struct {
	Endpoint  string `envconfig:"ENDPOINT"`
	Bucket    string `envconfig:"BUCKET"`
	Region    string `envconfig:"REGION" default:"us-east-1"`
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`
	PublicURL string `envconfig:"PUBLIC_URL"`
}

// Enabled reports whether enough settings are present to talk to a bucket.
func (s S3) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"homewise.db"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	AuthSecret               string        `envconfig:"AUTH_SECRET" required:"true"`
	SessionTTL               time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	OneTimeTokenTTL          time.Duration `envconfig:"ONE_TIME_TOKEN_TTL" default:"24h"`
	RequireEmailVerification bool          `envconfig:"REQUIRE_EMAIL_VERIFICATION" default:"true"`

	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	MailFrom     string `envconfig:"MAIL_FROM" default:"Homewise <no-reply@home-wise.app>"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	OutboxInterval    time.Duration `envconfig:"OUTBOX_INTERVAL" default:"5s"`
	OutboxMaxAttempts int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"8"`

	S3 S3
}

// Load reads an optional .env file and decodes the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("invalid %s_ENV %q", envPrefix, c.Env)
	}
	if strings.TrimSpace(c.AuthSecret) == "" {
		return fmt.Errorf("%s_AUTH_SECRET is required", envPrefix)
	}
	if len(c.AuthSecret) < 16 && c.Env == EnvProduction {
		return fmt.Errorf("%s_AUTH_SECRET must be at least 16 characters in production", envPrefix)
	}
	if c.OutboxMaxAttempts < 1 {
		return fmt.Errorf("%s_OUTBOX_MAX_ATTEMPTS must be positive", envPrefix)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// LogFormat returns the slog handler format for the environment.
func (c *Config) LogFormat() string {
	if c.IsProduction() {
		return "json"
	}
	return "text"
}
