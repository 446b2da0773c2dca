// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/postgres"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/notify"
	"github.com/holomush/accounts/internal/store"
)

// newPostgresService wires the account service onto PostgreSQL. Pending
// migrations are applied first unless database.auto_migrate is off.
func newPostgresService(ctx context.Context, env ServiceEnv, migrators func(string) (Migrator, error)) (*auth.Service, func(), error) {
	cfg := env.Config
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	pool, err := store.Open(ctx, store.PoolOptions{
		URL:            cfg.Database.URL,
		MaxConns:       cfg.Database.MaxConns,
		StartupRetries: cfg.Database.StartupRetries,
		Logger:         env.Logger,
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, migrators, env.Logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	svc, err := buildService(cfg, postgres.NewUserRepository(pool), env)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return svc, pool.Close, nil
}

// buildService assembles the service around any user repository.
func buildService(cfg *config.Config, users auth.UserRepository, env ServiceEnv) (*auth.Service, error) {
	remember, err := auth.NewRememberTokens([]byte(cfg.Remember.Secret), cfg.Remember.TTL)
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(cfg, env.Logger, env.Out)
	if err != nil {
		return nil, err
	}

	opts := []auth.Option{
		auth.WithLogger(env.Logger),
		auth.WithOperationTimeout(cfg.Database.Timeout),
	}
	if env.Metrics != nil {
		opts = append(opts, auth.WithMetrics(env.Metrics))
	}
	return auth.NewService(users, auth.NewArgon2idHasherWithParams(cfg.Argon2Params()), remember, notifier, opts...)
}

// newNotifier mails reset links when smtp.host is set and prints them
// otherwise.
func newNotifier(cfg *config.Config, logger *slog.Logger, out io.Writer) (auth.Notifier, error) {
	if cfg.SMTP.Host == "" {
		logger.Warn("smtp.host is not set, reset links are printed instead of mailed")
		return notify.NewWriterNotifier(out, cfg.Reset.BaseURL), nil
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:         cfg.SMTP.Host,
		Port:         cfg.SMTP.Port,
		Username:     cfg.SMTP.Username,
		Password:     cfg.SMTP.Password,
		From:         cfg.SMTP.From,
		ResetBaseURL: cfg.Reset.BaseURL,
	}, logger)
}

func autoMigrate(databaseURL string, migrators func(string) (Migrator, error), logger *slog.Logger) error {
	m, err := migrators(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	return nil
}
