// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/pkg/errutil"
)

// profileFlags binds the editable profile fields to command flags. Only
// flags the user set are applied, so updates keep untouched fields.
type profileFlags struct {
	name, company, companyEmail, jobTitle, website, phone, country, state, address string
}

func (p *profileFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.name, "name", "", "full name")
	f.StringVar(&p.company, "company", "", "company name")
	f.StringVar(&p.companyEmail, "company-email", "", "company email")
	f.StringVar(&p.jobTitle, "job-title", "", "job title")
	f.StringVar(&p.website, "website", "", "company website")
	f.StringVar(&p.phone, "phone", "", "contact number")
	f.StringVar(&p.country, "country", "", "country")
	f.StringVar(&p.state, "state", "", "state or region")
	f.StringVar(&p.address, "address", "", "postal address")
}

func (p *profileFlags) apply(cmd *cobra.Command, base auth.Profile) auth.Profile {
	set := func(flag string, dst *string, val string) {
		if cmd.Flags().Changed(flag) {
			*dst = val
		}
	}
	set("name", &base.Name, p.name)
	set("company", &base.CompanyName, p.company)
	set("company-email", &base.CompanyEmail, p.companyEmail)
	set("job-title", &base.JobTitle, p.jobTitle)
	set("website", &base.CompanyWebsite, p.website)
	set("phone", &base.Phone, p.phone)
	set("country", &base.Country, p.country)
	set("state", &base.State, p.state)
	set("address", &base.Address, p.address)
	return base
}

func newSignupCmd(a *app) *cobra.Command {
	var email string
	profile := &profileFlags{}

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long: `Create an account. The password is prompted for. The first account
ever created is the administrator.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (prompted when empty)")
	profile.register(cmd)

	cmd.RunE = a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
		p := a.prompter(cmd)
		if email == "" {
			var err error
			if email, err = p.Line("Email"); err != nil {
				return err
			}
		}
		password, confirm, err := promptNewPassword(p, "Password", !a.passwordStdin)
		if err != nil {
			return err
		}

		public, err := svc.Signup(ctx, auth.SignupRequest{
			Email:           email,
			Password:        password,
			ConfirmPassword: confirm,
			Profile:         profile.apply(cmd, auth.Profile{}),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Created account %s for %s\n", public.ID, public.Email)
		if public.IsAdmin {
			_, _ = fmt.Fprintln(out, "This is the first account and has administrator rights.")
		}
		return nil
	})
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var (
		email    string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in",
		Long: `Log in with email and password. With --remember a remember-me token
is saved to the session file so later commands run as this account;
without it the login only checks the credentials.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (prompted when empty)")
	cmd.Flags().BoolVar(&remember, "remember", false, "stay logged in for later commands")

	cmd.RunE = a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
		session, err := a.login(ctx, cmd, svc, email, remember)
		if err != nil {
			return err
		}

		sf, err := a.sessionFile()
		if err != nil {
			return err
		}
		if err := sf.Save(session); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Logged in as %s\n", session.User.Email)
		if session.HasRememberToken() {
			_, _ = fmt.Fprintf(out, "Remembered until %s\n", session.RememberExpiresAt.Format("2006-01-02 15:04 MST"))
		}
		return nil
	})
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
	}
	addOutputFlag(cmd, &output)

	cmd.RunE = a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
		if err := validateOutput(output); err != nil {
			return err
		}
		session, err := a.caller(ctx, cmd, svc)
		if err != nil {
			return err
		}
		return printProfile(cmd.OutOrStdout(), output, &session.User)
	})
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Log out and revoke remember-me tokens",
		Long: `Log out. Every remember-me token of the account is revoked, which
also signs out other machines that saved one.`,
		Args: cobra.NoArgs,
	}

	cmd.RunE = a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
		sf, err := a.sessionFile()
		if err != nil {
			return err
		}
		saved, err := sf.Load()
		if err != nil {
			errutil.LogWarn(ctx, a.logger, "ignoring unreadable session file", err)
		}
		if !saved.HasRememberToken() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
			return sf.Remove()
		}

		// Only a token that still resumes may revoke anything.
		session, err := svc.Resume(ctx, saved.RememberToken)
		switch {
		case err == nil:
			if err := svc.Logout(ctx, session); err != nil {
				return err
			}
		case auth.HasCode(err, auth.CodeStoreUnavailable):
			return err
		}

		if err := sf.Remove(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	})
	return cmd
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your own profile",
	}

	var (
		email  string
		output string
	)
	profile := &profileFlags{}
	update := &cobra.Command{
		Use:   "update",
		Short: "Update your email and profile fields",
		Long:  `Update your email and profile. Fields whose flags are not given keep their values.`,
		Args:  cobra.NoArgs,
	}
	update.Flags().StringVar(&email, "email", "", "new email address")
	profile.register(update)
	addOutputFlag(update, &output)

	update.RunE = a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
		if err := validateOutput(output); err != nil {
			return err
		}
		session, err := a.caller(ctx, cmd, svc)
		if err != nil {
			return err
		}

		newEmail := session.User.Email
		if cmd.Flags().Changed("email") {
			newEmail = email
		}
		updated, err := svc.UpdateOwnProfile(ctx, session, newEmail, profile.apply(cmd, session.User.Profile))
		if err != nil {
			return err
		}
		a.keepSession(ctx, updated)
		return printProfile(cmd.OutOrStdout(), output, &updated.User)
	})

	cmd.AddCommand(update)
	return cmd
}

func newPasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage your password",
	}

	change := &cobra.Command{
		Use:   "change",
		Short: "Change your password",
		Long: `Change your password. The current password is required, and every
remember-me token of the account is revoked.`,
		Args: cobra.NoArgs,
	}
	change.RunE = a.withService(func(ctx context.Context, cmd *cobra.Command, svc *auth.Service) error {
		session, err := a.caller(ctx, cmd, svc)
		if err != nil {
			return err
		}

		p := a.prompter(cmd)
		current, err := p.Password("Current password")
		if err != nil {
			return err
		}
		password, confirm, err := promptNewPassword(p, "New password", !a.passwordStdin)
		if err != nil {
			return err
		}
		if confirm != nil && *confirm != password {
			return oops.Code(auth.CodeValidation).With("field", "confirm_password").Errorf("passwords do not match")
		}

		updated, err := svc.ChangePassword(ctx, session, current, password)
		if err != nil {
			return err
		}
		a.keepSession(ctx, updated)
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Password changed. Other remembered logins were signed out.")
		return nil
	})

	cmd.AddCommand(change)
	return cmd
}

// caller returns the session commands act as: the saved remember-me
// session when it still resumes, otherwise a fresh password login. A
// rejected saved session is discarded rather than reported.
func (a *app) caller(ctx context.Context, cmd *cobra.Command, svc *auth.Service) (*auth.SessionState, error) {
	sf, err := a.sessionFile()
	if err != nil {
		return nil, err
	}
	saved, err := sf.Load()
	if err != nil {
		errutil.LogWarn(ctx, a.logger, "ignoring unreadable session file", err)
	}

	if saved.HasRememberToken() {
		session, err := svc.Resume(ctx, saved.RememberToken)
		switch {
		case err == nil:
			a.keepSession(ctx, session)
			return session, nil
		case auth.HasCode(err, auth.CodeStoreUnavailable):
			return nil, err
		}
		a.logger.InfoContext(ctx, "saved login rejected", "code", auth.Code(err))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), auth.UserMessage(err))
		if rmErr := sf.Remove(); rmErr != nil {
			errutil.LogWarn(ctx, a.logger, "failed to remove rejected session", rmErr)
		}
	}

	return a.login(ctx, cmd, svc, "", false)
}

// login prompts for whatever credentials are missing and logs in.
func (a *app) login(ctx context.Context, cmd *cobra.Command, svc *auth.Service, email string, remember bool) (*auth.SessionState, error) {
	p := a.prompter(cmd)
	if email == "" {
		var err error
		if email, err = p.Line("Email"); err != nil {
			return nil, err
		}
	}
	password, err := p.Password("Password")
	if err != nil {
		return nil, err
	}
	return svc.Login(ctx, auth.LoginRequest{Email: email, Password: password, Remember: remember})
}

// keepSession refreshes the saved session after an operation returned a
// new one. Sessions without a remember-me token were never saved.
func (a *app) keepSession(ctx context.Context, session *auth.SessionState) {
	if !session.HasRememberToken() {
		return
	}
	sf, err := a.sessionFile()
	if err == nil {
		err = sf.Save(session)
	}
	if err != nil {
		errutil.LogWarn(ctx, a.logger, "failed to update session file", err)
	}
}
