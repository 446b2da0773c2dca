// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/logging"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/pkg/errutil"
)

// metricsPushTimeout bounds the Pushgateway push at the end of a command.
const metricsPushTimeout = 5 * time.Second

// app is the state shared by the commands of one invocation.
type app struct {
	deps          *Deps
	configFile    string
	passwordStdin bool

	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
}

// NewRootCmd creates the root command for the accounts CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	a := &app{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage email/password accounts",
		Long: `accounts manages email/password accounts stored in PostgreSQL:
signup, login with remember-me, password reset by email, profile
editing, and user administration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/accounts/config.yaml)")
	flags.BoolVar(&a.passwordStdin, "password-stdin", false, "read passwords from stdin without confirmation")
	config.RegisterFlags(flags)

	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newSignupCmd(a))
	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newWhoamiCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newResetCmd(a))
	cmd.AddCommand(newProfileCmd(a))
	cmd.AddCommand(newPasswordCmd(a))
	cmd.AddCommand(newUsersCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

// setup loads configuration and logging before any subcommand runs.
func (a *app) setup(cmd *cobra.Command) error {
	// Without a home directory there is simply no default file.
	defaultFile, _ := a.deps.ConfigFileGetter()

	cfg, err := config.Load(config.LoadOptions{
		File:        a.configFile,
		DefaultFile: defaultFile,
		Flags:       cmd.Flags(),
	})
	if err != nil {
		return err
	}
	if err := cfg.ValidateLog(); err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.Setup(logging.Options{
		Service: "accounts",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})
	a.registry, a.metrics = observability.NewRegistry()
	return nil
}

// prompter returns the configured prompter or one bound to cmd's streams.
func (a *app) prompter(cmd *cobra.Command) Prompter {
	if a.deps.Prompter != nil {
		return a.deps.Prompter
	}
	return newTermPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// withService runs fn with a service built for this invocation, then
// releases it and pushes the invocation's metrics.
func (a *app) withService(fn func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		svc, release, err := a.deps.ServiceFactory(ctx, ServiceEnv{
			Config:  a.cfg,
			Logger:  a.logger,
			Metrics: a.metrics,
			Out:     cmd.OutOrStdout(),
		})
		if err != nil {
			return err
		}
		defer func() {
			if release != nil {
				release()
			}
			a.pushMetrics(ctx)
		}()

		return fn(ctx, cmd, svc)
	}
}

func (a *app) pushMetrics(ctx context.Context) {
	if a.cfg.Metrics.PushURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsPushTimeout)
	defer cancel()
	if err := a.deps.MetricsPusher(ctx, a.cfg.Metrics.PushURL, a.cfg.Metrics.Job, a.registry); err != nil {
		errutil.LogWarn(ctx, a.logger, "metrics push failed", err)
	}
}

// sessionFile returns the session file of this invocation.
func (a *app) sessionFile() (sessionFile, error) {
	if a.cfg.Session.File != "" {
		return sessionFile{path: a.cfg.Session.File}, nil
	}
	path, err := a.deps.SessionFileGetter()
	if err != nil {
		return sessionFile{}, oops.With("operation", "locate session file").Wrap(err)
	}
	return sessionFile{path: path}, nil
}
