// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and check configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check a config file",
		Long: `Check a config file against the schema, then check the merged
configuration (file, environment and flags) for missing or invalid
values. Without an argument the --config file is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configFile
			if len(args) == 1 {
				path = args[0]
			}
			return a.runConfigValidate(cmd, path)
		},
	})

	return cmd
}

func (a *app) runConfigValidate(cmd *cobra.Command, path string) error {
	cfg := a.cfg
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
		if err := config.ValidateYAML(data); err != nil {
			return oops.With("path", path).Wrap(err)
		}
		if path != a.configFile {
			if cfg, err = config.Load(config.LoadOptions{File: path, Flags: cmd.Flags()}); err != nil {
				return err
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if path == "" {
		path = "configuration"
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
	return nil
}
