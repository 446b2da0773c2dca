// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store"
	"github.com/holomush/accounts/internal/xdg"
)

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ServiceFactory builds the account service for one invocation. The
	// returned func releases whatever the service holds.
	// Default: newPostgresService
	ServiceFactory func(ctx context.Context, env ServiceEnv) (*auth.Service, func(), error)

	// MigratorFactory opens a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// Prompter reads emails and passwords from the user.
	// Default: newTermPrompter on the command's stdin
	Prompter Prompter

	// ConfigFileGetter returns the config path used when --config is unset.
	// Default: xdg.ConfigFile
	ConfigFileGetter func() (string, error)

	// SessionFileGetter returns the session path used when session.file is unset.
	// Default: xdg.SessionFile
	SessionFileGetter func() (string, error)

	// MetricsPusher pushes the invocation's metrics to a Pushgateway.
	// Default: observability.Push
	MetricsPusher func(ctx context.Context, url, job string, g prometheus.Gatherer) error
}

// ServiceEnv is what a ServiceFactory builds from.
type ServiceEnv struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics auth.MetricsRecorder
	// Out receives reset links when no SMTP host is configured.
	Out io.Writer
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.ServiceFactory == nil {
		migrators := out.MigratorFactory
		out.ServiceFactory = func(ctx context.Context, env ServiceEnv) (*auth.Service, func(), error) {
			return newPostgresService(ctx, env, migrators)
		}
	}
	if out.ConfigFileGetter == nil {
		out.ConfigFileGetter = xdg.ConfigFile
	}
	if out.SessionFileGetter == nil {
		out.SessionFileGetter = xdg.SessionFile
	}
	if out.MetricsPusher == nil {
		out.MetricsPusher = observability.Push
	}
	return &out
}
