// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/holomush/accounts/pkg/errutil"
)

// RequestPasswordReset mints a reset token for email and hands it to the
// notifier. Unknown emails succeed silently so the response does not reveal
// whether an account exists. A delivery failure is reported, but the token
// that was already stored stays valid.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	parent := ctx
	ctx, done := s.begin(ctx, "request_reset")
	defer func() { done(err) }()

	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}

	token, tokenHash, err := GenerateResetToken()
	if err != nil {
		return oops.Code(CodeInternal).With("operation", "generate reset token").Wrap(err)
	}

	expiresAt := s.now().UTC().Add(ResetTokenExpiry)
	userID, err := s.users.SetResetToken(ctx, email, tokenHash, expiresAt)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return s.storeError("set reset token", err)
	}

	// Delivery runs on the caller's context, not the store deadline.
	if err := s.notifier.SendResetLink(parent, email, token); err != nil {
		errutil.LogWarn(ctx, s.logger, "reset link delivery failed", err, "user_id", userID.String())
		return oops.Code(CodeDeliveryFailure).
			With("user_id", userID.String()).
			Errorf("reset link could not be delivered")
	}

	s.logger.InfoContext(ctx, "password reset requested",
		"user_id", userID.String(),
		"expires_at", expiresAt,
	)
	return nil
}

// ValidateResetToken returns the account a reset token belongs to, so a
// reset form can be shown before a new password is chosen.
func (s *Service) ValidateResetToken(ctx context.Context, token string) (_ *PublicProfile, err error) {
	ctx, done := s.begin(ctx, "validate_reset")
	defer func() { done(err) }()

	if !wellFormedResetToken(token) {
		return nil, invalidResetToken()
	}

	user, err := s.users.GetByResetToken(ctx, HashResetToken(token), s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, s.storeError("get user by reset token", err)
	}
	if user.ResetTokenHash == nil || !VerifyResetToken(token, *user.ResetTokenHash) {
		return nil, invalidResetToken()
	}

	public := user.Public()
	return &public, nil
}

// ResetPassword replaces the password of the account holding token. The
// token check, password write and token clear happen in one conditional
// update, so a token can succeed at most once.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string, confirm *string) (err error) {
	ctx, done := s.begin(ctx, "reset_password")
	defer func() { done(err) }()

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if confirm != nil && *confirm != newPassword {
		return validationError("confirm_password", "passwords do not match")
	}
	if !wellFormedResetToken(token) {
		return invalidResetToken()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code(CodeInternal).With("operation", "hash password").Wrap(err)
	}

	userID, err := s.users.ConsumeResetToken(ctx, HashResetToken(token), hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidResetToken()
		}
		return s.storeError("consume reset token", err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", userID.String())
	return nil
}

func invalidResetToken() error {
	return oops.Code(CodeInvalidOrExpiredToken).Errorf("invalid or expired reset token")
}
