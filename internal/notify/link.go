// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers password reset links.
package notify

import (
	"net/url"

	"github.com/samber/oops"
)

// ResetTokenParam is the query parameter that carries the reset token.
const ResetTokenParam = "reset_token"

// ResetLink appends the token to baseURL as ?reset_token=<token>. Any query
// already on baseURL is kept.
func ResetLink(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", oops.Code("RESET_LINK_INVALID").With("base_url", baseURL).Wrap(err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", oops.Code("RESET_LINK_INVALID").
			With("base_url", baseURL).
			Errorf("reset base url must be absolute")
	}
	q := u.Query()
	q.Set(ResetTokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
