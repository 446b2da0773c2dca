// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/auth"
)

func newResetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a forgotten password",
	}
	cmd.AddCommand(newResetRequestCmd(a))
	cmd.AddCommand(newResetConfirmCmd(a))
	return cmd
}

func newResetRequestCmd(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Email a password reset link",
		Long: `Email a single-use password reset link that expires after 30 minutes.
The reply is the same whether or not an account uses the address.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (prompted when empty)")

	cmd.RunE = a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
		if email == "" {
			var err error
			if email, err = a.prompter(cmd).Line("Email"); err != nil {
				return err
			}
		}
		if err := svc.RequestPasswordReset(ctx, email); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "If an account exists for that address, a reset link has been sent.")
		return nil
	})
	return cmd
}

func newResetConfirmCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Choose a new password with a reset token",
		Long: `Choose a new password using the token from a reset link. The token is
checked before the new password is prompted for and works only once.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&token, "token", "", "reset token from the link (prompted when empty)")

	cmd.RunE = a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
		p := a.prompter(cmd)
		if token == "" {
			var err error
			if token, err = p.Line("Reset token"); err != nil {
				return err
			}
		}

		owner, err := svc.ValidateResetToken(ctx, token)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Resetting the password of %s\n", owner.Email)

		password, confirm, err := promptNewPassword(p, "New password", !a.passwordStdin)
		if err != nil {
			return err
		}
		if err := svc.ResetPassword(ctx, token, password, confirm); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Password updated. You can now log in.")
		return nil
	})
	return cmd
}
