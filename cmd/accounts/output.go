// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/holomush/accounts/internal/auth"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func addOutputFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVarP(dst, "output", "o", outputTable, "output format (table, json, yaml)")
}

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return oops.Code("INVALID_OUTPUT").Errorf("output must be table, json or yaml, got %q", format)
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	var (
		data []byte
		err  error
	)
	if format == outputYAML {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return oops.Code("OUTPUT_FAILED").With("format", format).Wrap(err)
	}
	_, err = w.Write(data)
	return err
}

// printProfiles writes a list of accounts.
func printProfiles(w io.Writer, format string, users []auth.PublicProfile) error {
	if format != outputTable {
		return writeStructured(w, format, users)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tADMIN\tACTIVE\tLAST LOGIN")
	for _, u := range users {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Email, dash(u.Profile.Name), yesNo(u.IsAdmin), yesNo(u.IsActive), formatLastLogin(u.LastLoginAt))
	}
	return tw.Flush()
}

// printProfile writes one account with every profile field.
func printProfile(w io.Writer, format string, u *auth.PublicProfile) error {
	if format != outputTable {
		return writeStructured(w, format, u)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"ID", u.ID.String()},
		{"Email", u.Email},
		{"Name", dash(u.Profile.Name)},
		{"Company", dash(u.Profile.CompanyName)},
		{"Company email", dash(u.Profile.CompanyEmail)},
		{"Job title", dash(u.Profile.JobTitle)},
		{"Website", dash(u.Profile.CompanyWebsite)},
		{"Phone", dash(u.Profile.Phone)},
		{"Country", dash(u.Profile.Country)},
		{"State", dash(u.Profile.State)},
		{"Address", dash(u.Profile.Address)},
		{"Admin", yesNo(u.IsAdmin)},
		{"Active", yesNo(u.IsActive)},
		{"Created", u.CreatedAt.Format(time.RFC3339)},
		{"Last login", formatLastLogin(u.LastLoginAt)},
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatLastLogin(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

// errorMessage renders err for the terminal. Account errors use their
// user-facing text; everything else keeps its own message.
func errorMessage(err error) string {
	if strings.HasPrefix(auth.Code(err), "AUTH_") {
		return auth.UserMessage(err)
	}
	return err.Error()
}
