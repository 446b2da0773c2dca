// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"
)

// SessionState is the client-side view of an authenticated user. It is
// returned by Login and Resume and passed back explicitly into every call
// that acts on behalf of a caller.
type SessionState struct {
	Authenticated     bool          `json:"authenticated"`
	User              PublicProfile `json:"user"`
	RememberToken     string        `json:"remember_token,omitempty"`
	RememberExpiresAt time.Time     `json:"remember_expires_at,omitempty"`
}

func newSession(user *User) *SessionState {
	return &SessionState{
		Authenticated: true,
		User:          user.Public(),
	}
}

// IsAdmin reports whether the session claims admin rights.
func (s *SessionState) IsAdmin() bool {
	return s != nil && s.Authenticated && s.User.IsAdmin
}

// HasRememberToken reports whether the session carries a remember-me token.
func (s *SessionState) HasRememberToken() bool {
	return s != nil && s.RememberToken != ""
}

// Clear resets the session to the logged-out state.
func (s *SessionState) Clear() {
	if s == nil {
		return
	}
	*s = SessionState{}
}
