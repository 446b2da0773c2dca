// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Manage the PostgreSQL schema of the users table. Without a
subcommand, all pending migrations are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMigrateUp(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMigrateUp(cmd)
		},
	})

	var yes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMigrateDown(cmd, yes)
		},
	}
	down.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMigrateStatus(cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied without running it",
		Long: `Mark a version as applied without running it. Use this to clear a
dirty schema after fixing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return a.withMigrator(func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Forced schema version %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer, got %q", s)
	}
	return version, nil
}

func (a *app) withMigrator(fn func(Migrator) error) error {
	if err := a.cfg.ValidateDatabase(); err != nil {
		return err
	}

	m, err := a.deps.MigratorFactory(a.cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			a.logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	return fn(m)
}

func (a *app) runMigrateUp(cmd *cobra.Command) error {
	return a.withMigrator(func(m Migrator) error {
		if err := m.Up(); err != nil {
			return err
		}
		st, err := m.Status()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema is at version %d\n", st.Version)
		return nil
	})
}

func (a *app) runMigrateDown(cmd *cobra.Command, yes bool) error {
	if !yes {
		answer, err := a.prompter(cmd).Line("Roll back all migrations and drop every account? Type yes to confirm")
		if err != nil {
			return err
		}
		if answer != "yes" {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
			return nil
		}
	}
	return a.withMigrator(func(m Migrator) error {
		if err := m.Down(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back")
		return nil
	})
}

func (a *app) runMigrateStatus(cmd *cobra.Command) error {
	return a.withMigrator(func(m Migrator) error {
		st, err := m.Status()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		current := "none"
		if st.Version > 0 {
			current = fmt.Sprintf("%d (%s)", st.Version, st.Name)
		}
		_, _ = fmt.Fprintf(out, "Version: %s\n", current)
		_, _ = fmt.Fprintf(out, "Dirty:   %s\n", yesNo(st.Dirty))
		_, _ = fmt.Fprintf(out, "Applied: %s\n", joinOrNone(st.Applied))
		_, _ = fmt.Fprintf(out, "Pending: %s\n", joinOrNone(st.Pending))
		return nil
	})
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
