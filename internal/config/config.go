// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads accounts configuration from defaults, a YAML file,
// ACCOUNTS_* environment variables and command-line flags, in that order of
// increasing precedence.
package config

import (
	"net/url"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/logging"
)

// Config is the full accounts configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	SMTP     SMTPConfig     `koanf:"smtp" yaml:"smtp"`
	Reset    ResetConfig    `koanf:"reset" yaml:"reset"`
	Remember RememberConfig `koanf:"remember" yaml:"remember"`
	Hasher   HasherConfig   `koanf:"hasher" yaml:"hasher"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Metrics  MetricsConfig  `koanf:"metrics" yaml:"metrics"`
	Session  SessionConfig  `koanf:"session" yaml:"session"`
}

// DatabaseConfig locates the users table.
type DatabaseConfig struct {
	URL            string        `koanf:"url" yaml:"url" jsonschema:"description=PostgreSQL connection URL"`
	MaxConns       int32         `koanf:"max_conns" yaml:"max_conns" jsonschema:"minimum=1"`
	Timeout        time.Duration `koanf:"timeout" yaml:"timeout" jsonschema:"description=Deadline for the store work of one operation"`
	AutoMigrate    bool          `koanf:"auto_migrate" yaml:"auto_migrate"`
	StartupRetries uint64        `koanf:"startup_retries" yaml:"startup_retries"`
}

// SMTPConfig configures reset link delivery. An empty host prints links to
// stdout instead.
type SMTPConfig struct {
	Host     string `koanf:"host" yaml:"host"`
	Port     int    `koanf:"port" yaml:"port" jsonschema:"minimum=1,maximum=65535"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
	From     string `koanf:"from" yaml:"from"`
}

// ResetConfig configures password reset links.
type ResetConfig struct {
	BaseURL string `koanf:"base_url" yaml:"base_url" jsonschema:"description=Page that accepts ?reset_token="`
}

// RememberConfig configures remember-me tokens.
type RememberConfig struct {
	Secret string        `koanf:"secret" yaml:"secret" jsonschema:"minLength=32"`
	TTL    time.Duration `koanf:"ttl" yaml:"ttl"`
}

// HasherConfig holds the argon2id cost parameters.
type HasherConfig struct {
	MemoryKiB   uint32 `koanf:"memory_kib" yaml:"memory_kib" jsonschema:"minimum=8"`
	Iterations  uint32 `koanf:"iterations" yaml:"iterations" jsonschema:"minimum=1"`
	Parallelism uint8  `koanf:"parallelism" yaml:"parallelism" jsonschema:"minimum=1"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `koanf:"format" yaml:"format" jsonschema:"enum=json,enum=text"`
}

// MetricsConfig configures the Pushgateway push at the end of each command.
type MetricsConfig struct {
	PushURL string `koanf:"push_url" yaml:"push_url"`
	Job     string `koanf:"job" yaml:"job"`
}

// SessionConfig locates the client-side session file.
type SessionConfig struct {
	// File defaults to the XDG state directory when empty.
	File string `koanf:"file" yaml:"file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			MaxConns:       4,
			Timeout:        auth.DefaultOperationTimeout,
			AutoMigrate:    true,
			StartupRetries: 5,
		},
		SMTP: SMTPConfig{Port: 587},
		Reset: ResetConfig{
			BaseURL: "http://localhost:8501/",
		},
		Remember: RememberConfig{TTL: auth.RememberTokenExpiry},
		Hasher: HasherConfig{
			MemoryKiB:   auth.DefaultArgon2Params.Memory,
			Iterations:  auth.DefaultArgon2Params.Time,
			Parallelism: auth.DefaultArgon2Params.Threads,
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Job: "accounts"},
	}
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}

// ValidateDatabase checks only what commands that touch the store need.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "database.url is required")
	}
	if c.Database.Timeout <= 0 {
		return invalid("database.timeout", "database.timeout must be positive")
	}
	if c.Database.MaxConns < 1 {
		return invalid("database.max_conns", "database.max_conns must be at least 1")
	}
	return nil
}

// Validate checks everything the account service needs.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if len(c.Remember.Secret) < auth.MinRememberSecretLen {
		return invalid("remember.secret", "remember.secret must be at least %d bytes", auth.MinRememberSecretLen)
	}
	if c.Remember.TTL <= 0 {
		return invalid("remember.ttl", "remember.ttl must be positive")
	}
	u, err := url.Parse(c.Reset.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("reset.base_url", "reset.base_url must be an absolute URL")
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return invalid("smtp.from", "smtp.from is required when smtp.host is set")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return invalid("smtp.port", "smtp.port must be between 1 and 65535")
	}
	if c.Hasher.Iterations < 1 || c.Hasher.Parallelism < 1 || c.Hasher.MemoryKiB < 8*uint32(c.Hasher.Parallelism) {
		return invalid("hasher", "hasher needs iterations >= 1, parallelism >= 1 and memory_kib >= 8*parallelism")
	}
	return c.ValidateLog()
}

// ValidateLog checks the logging section.
func (c *Config) ValidateLog() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if !logging.ValidFormat(c.Log.Format) {
		return invalid("log.format", "log.format %q is not one of json, text", c.Log.Format)
	}
	return nil
}

// Argon2Params converts the hasher section into argon2id parameters.
func (c *Config) Argon2Params() auth.Argon2Params {
	p := auth.DefaultArgon2Params
	p.Memory = c.Hasher.MemoryKiB
	p.Time = c.Hasher.Iterations
	p.Threads = c.Hasher.Parallelism
	return p
}
