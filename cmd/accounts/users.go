// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/auth"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer accounts (admin only)",
		Long: `Administer accounts. Every subcommand requires an administrator
login, which is checked against the stored account on each call.`,
	}

	cmd.AddCommand(newUsersListCmd(a))
	cmd.AddCommand(newUsersShowCmd(a))
	cmd.AddCommand(newUsersUpdateCmd(a))
	cmd.AddCommand(newUsersDeleteCmd(a))
	cmd.AddCommand(newUsersToggleCmd(a, "activate", "activated", "Reactivate an account", func(ctx context.Context, svc *auth.Service, caller *auth.SessionState, id ulid.ULID) error {
		return svc.SetActive(ctx, caller, id, true)
	}))
	cmd.AddCommand(newUsersToggleCmd(a, "deactivate", "deactivated", "Deactivate an account so it can no longer log in", func(ctx context.Context, svc *auth.Service, caller *auth.SessionState, id ulid.ULID) error {
		return svc.SetActive(ctx, caller, id, false)
	}))
	cmd.AddCommand(newUsersToggleCmd(a, "promote", "promoted", "Grant administrator rights", func(ctx context.Context, svc *auth.Service, caller *auth.SessionState, id ulid.ULID) error {
		return svc.SetAdmin(ctx, caller, id, true)
	}))
	cmd.AddCommand(newUsersToggleCmd(a, "demote", "demoted", "Revoke administrator rights", func(ctx context.Context, svc *auth.Service, caller *auth.SessionState, id ulid.ULID) error {
		return svc.SetAdmin(ctx, caller, id, false)
	}))
	return cmd
}

// parseUserID accepts a ULID as printed by users list.
func parseUserID(s string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return ulid.ULID{}, oops.Code(auth.CodeValidation).
			With("field", "id").
			Errorf("invalid user id %q", s)
	}
	return id, nil
}

func newUsersListCmd(a *app) *cobra.Command {
	var search, output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Long:  `List accounts, optionally only those whose name or email contains --search (case-insensitive).`,
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by name or email")
	addOutputFlag(cmd, &output)

	cmd.RunE = a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
		if err := validateOutput(output); err != nil {
			return err
		}
		caller, err := a.caller(ctx, cmd, svc)
		if err != nil {
			return err
		}
		users, err := svc.ListUsers(ctx, caller, search)
		if err != nil {
			return err
		}
		if len(users) == 0 && output == outputTable {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No accounts found")
			return nil
		}
		return printProfiles(cmd.OutOrStdout(), output, users)
	})
	return cmd
}

func newUsersShowCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
	}
	addOutputFlag(cmd, &output)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		if err := validateOutput(output); err != nil {
			return err
		}
		return a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
			caller, err := a.caller(ctx, cmd, svc)
			if err != nil {
				return err
			}
			user, err := svc.GetUser(ctx, caller, id)
			if err != nil {
				return err
			}
			return printProfile(cmd.OutOrStdout(), output, user)
		})(cmd, args)
	}
	return cmd
}

func newUsersUpdateCmd(a *app) *cobra.Command {
	var email, output string
	profile := &profileFlags{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an account's email and profile",
		Long:  `Update an account. Fields whose flags are not given keep their values.`,
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	profile.register(cmd)
	addOutputFlag(cmd, &output)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		if err := validateOutput(output); err != nil {
			return err
		}
		return a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
			caller, err := a.caller(ctx, cmd, svc)
			if err != nil {
				return err
			}
			current, err := svc.GetUser(ctx, caller, id)
			if err != nil {
				return err
			}

			newEmail := current.Email
			if cmd.Flags().Changed("email") {
				newEmail = email
			}
			updated, err := svc.UpdateUser(ctx, caller, id, newEmail, profile.apply(cmd, current.Profile))
			if err != nil {
				return err
			}
			return printProfile(cmd.OutOrStdout(), output, updated)
		})(cmd, args)
	}
	return cmd
}

func newUsersDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Long:  `Delete an account permanently. Administrators cannot delete themselves.`,
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		return a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
			caller, err := a.caller(ctx, cmd, svc)
			if err != nil {
				return err
			}
			if !yes {
				answer, err := a.prompter(cmd).Line(fmt.Sprintf("Delete account %s? Type yes to confirm", id))
				if err != nil {
					return err
				}
				if answer != "yes" {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			if err := svc.DeleteUser(ctx, caller, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %s\n", id)
			return nil
		})(cmd, args)
	}
	return cmd
}

func newUsersToggleCmd(a *app, use, past, short string, apply func(context.Context, *auth.Service, *auth.SessionState, ulid.ULID) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		return a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
			caller, err := a.caller(ctx, cmd, svc)
			if err != nil {
				return err
			}
			if err := apply(ctx, svc, caller, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Account %s %s\n", id, past)
			return nil
		})(cmd, args)
	}
	return cmd
}
