// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// requireUser loads the caller of an operation. A cleared or
// unauthenticated session is rejected before the store is touched.
func (s *Service) requireUser(ctx context.Context, caller *SessionState) (*User, error) {
	if caller == nil || !caller.Authenticated {
		return nil, oops.Code(CodeForbidden).Errorf("login required")
	}
	user, err := s.users.GetByID(ctx, caller.User.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeForbidden).
				With("user_id", caller.User.ID.String()).
				Errorf("caller account no longer exists")
		}
		return nil, s.storeError("get caller", err)
	}
	if !user.IsActive {
		return nil, oops.Code(CodeAccountDeactivated).
			With("user_id", user.ID.String()).
			Errorf("account deactivated")
	}
	return user, nil
}

// requireAdmin is the authorization boundary for account administration.
// The session must claim admin and the stored record must still agree.
func (s *Service) requireAdmin(ctx context.Context, caller *SessionState) (*User, error) {
	if !caller.IsAdmin() {
		return nil, oops.Code(CodeForbidden).Errorf("admin rights required")
	}
	actor, err := s.requireUser(ctx, caller)
	if err != nil {
		if HasCode(err, CodeAccountDeactivated) {
			return nil, oops.Code(CodeForbidden).Errorf("admin rights required")
		}
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, oops.Code(CodeForbidden).
			With("user_id", actor.ID.String()).
			Errorf("admin rights required")
	}
	return actor, nil
}

func forbidSelf(actor *User, target ulid.ULID, action string) error {
	if actor.ID == target {
		return oops.Code(CodeForbidden).
			With("user_id", target.String()).
			Errorf("admins cannot %s their own account", action)
	}
	return nil
}

// ListUsers returns every account whose name or email contains filter,
// ignoring case. An empty filter lists all accounts.
func (s *Service) ListUsers(ctx context.Context, caller *SessionState, filter string) (_ []PublicProfile, err error) {
	ctx, done := s.begin(ctx, "list_users")
	defer func() { done(err) }()

	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx, strings.TrimSpace(filter))
	if err != nil {
		return nil, s.storeError("list users", err)
	}

	out := make([]PublicProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// GetUser returns one account.
func (s *Service) GetUser(ctx context.Context, caller *SessionState, id ulid.ULID) (_ *PublicProfile, err error) {
	ctx, done := s.begin(ctx, "get_user")
	defer func() { done(err) }()

	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError("get user by id", err)
	}
	public := user.Public()
	return &public, nil
}

// UpdateUser replaces the email and profile of any account.
func (s *Service) UpdateUser(ctx context.Context, caller *SessionState, id ulid.ULID, email string, profile Profile) (_ *PublicProfile, err error) {
	ctx, done := s.begin(ctx, "update_user")
	defer func() { done(err) }()

	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	return s.updateProfile(ctx, id, email, profile)
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, caller *SessionState, id ulid.ULID) (err error) {
	ctx, done := s.begin(ctx, "delete_user")
	defer func() { done(err) }()

	actor, err := s.requireAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if err := forbidSelf(actor, id, "delete"); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return s.storeError("delete user", err)
	}
	s.logger.InfoContext(ctx, "account deleted",
		"user_id", id.String(),
		"actor_id", actor.ID.String(),
	)
	return nil
}

// SetActive activates or deactivates an account. Deactivation also revokes
// the account's remember-me tokens.
func (s *Service) SetActive(ctx context.Context, caller *SessionState, id ulid.ULID, active bool) (err error) {
	ctx, done := s.begin(ctx, "set_active")
	defer func() { done(err) }()

	actor, err := s.requireAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !active {
		if err := forbidSelf(actor, id, "deactivate"); err != nil {
			return err
		}
	}

	if err := s.users.SetActive(ctx, id, active); err != nil {
		return s.storeError("set active", err)
	}
	if !active {
		if _, revokeErr := s.users.RevokeRememberTokens(ctx, id); revokeErr != nil {
			s.warnBestEffort(ctx, "revoke_remember", id, revokeErr)
		}
	}

	s.logger.InfoContext(ctx, "account activation changed",
		"user_id", id.String(),
		"actor_id", actor.ID.String(),
		"active", active,
	)
	return nil
}

// SetAdmin grants or revokes admin rights. Admins cannot demote themselves,
// so the last admin cannot lock everyone out by accident.
func (s *Service) SetAdmin(ctx context.Context, caller *SessionState, id ulid.ULID, admin bool) (err error) {
	ctx, done := s.begin(ctx, "set_admin")
	defer func() { done(err) }()

	actor, err := s.requireAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !admin {
		if err := forbidSelf(actor, id, "demote"); err != nil {
			return err
		}
	}

	if err := s.users.SetAdmin(ctx, id, admin); err != nil {
		return s.storeError("set admin", err)
	}

	s.logger.InfoContext(ctx, "account admin flag changed",
		"user_id", id.String(),
		"actor_id", actor.ID.String(),
		"admin", admin,
	)
	return nil
}

// UpdateOwnProfile lets the caller edit their own email and profile. The
// returned session reflects the stored values and keeps any remember token.
func (s *Service) UpdateOwnProfile(ctx context.Context, caller *SessionState, email string, profile Profile) (_ *SessionState, err error) {
	ctx, done := s.begin(ctx, "update_profile")
	defer func() { done(err) }()

	user, err := s.requireUser(ctx, caller)
	if err != nil {
		return nil, err
	}

	public, err := s.updateProfile(ctx, user.ID, email, profile)
	if err != nil {
		return nil, err
	}

	session := *caller
	session.User = *public
	return &session, nil
}

func (s *Service) updateProfile(ctx context.Context, id ulid.ULID, email string, profile Profile) (*PublicProfile, error) {
	email = NormalizeEmail(email)
	profile = profile.Trimmed()
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}

	if err := s.users.UpdateProfile(ctx, id, email, profile); err != nil {
		return nil, s.storeError("update profile", err)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError("get user by id", err)
	}
	public := user.Public()
	return &public, nil
}

// ChangePassword replaces the caller's password after checking the current
// one. Every remember-me token of the caller is revoked; when the caller's
// session carried one, the returned session holds a fresh token.
func (s *Service) ChangePassword(ctx context.Context, caller *SessionState, current, newPassword string) (_ *SessionState, err error) {
	ctx, done := s.begin(ctx, "change_password")
	defer func() { done(err) }()

	user, err := s.requireUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	valid, verifyErr := s.hasher.Verify(current, user.PasswordHash)
	if verifyErr != nil || !valid {
		return nil, oops.Code(CodeInvalidCredentials).Errorf("current password is incorrect")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "hash password").Wrap(err)
	}
	generation, err := s.users.UpdatePassword(ctx, user.ID, hash, true)
	if err != nil {
		return nil, s.storeError("update password", err)
	}
	user.PasswordHash = hash
	user.RememberGeneration = generation

	session := newSession(user)
	if caller.HasRememberToken() {
		token, expiresAt, issueErr := s.remember.Issue(user)
		if issueErr != nil {
			return nil, oops.Code(CodeInternal).With("operation", "issue remember token").Wrap(issueErr)
		}
		session.RememberToken = token
		session.RememberExpiresAt = expiresAt
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", user.ID.String())
	return session, nil
}
