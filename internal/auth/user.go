// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Field length limits enforced before anything reaches the store.
const (
	MaxEmailLength   = 254
	MaxNameLength    = 255
	MaxPasswordChars = 1024
)

// User is a registered account.
type User struct {
	ID                 ulid.ULID
	Email              string
	Profile            Profile
	PasswordHash       string
	IsAdmin            bool
	IsActive           bool
	ResetTokenHash     *string
	ResetExpiresAt     *time.Time
	RememberGeneration int
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastLoginAt        *time.Time
}

// Profile holds the free-form fields an owner or admin may edit.
type Profile struct {
	Name           string `json:"name" yaml:"name"`
	CompanyName    string `json:"company_name,omitempty" yaml:"company_name,omitempty"`
	CompanyEmail   string `json:"company_email,omitempty" yaml:"company_email,omitempty"`
	JobTitle       string `json:"job_title,omitempty" yaml:"job_title,omitempty"`
	CompanyWebsite string `json:"company_website,omitempty" yaml:"company_website,omitempty"`
	Phone          string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Country        string `json:"country,omitempty" yaml:"country,omitempty"`
	State          string `json:"state,omitempty" yaml:"state,omitempty"`
	Address        string `json:"address,omitempty" yaml:"address,omitempty"`
}

// Trimmed returns p with surrounding whitespace removed from every field.
func (p Profile) Trimmed() Profile {
	return Profile{
		Name:           strings.TrimSpace(p.Name),
		CompanyName:    strings.TrimSpace(p.CompanyName),
		CompanyEmail:   strings.TrimSpace(p.CompanyEmail),
		JobTitle:       strings.TrimSpace(p.JobTitle),
		CompanyWebsite: strings.TrimSpace(p.CompanyWebsite),
		Phone:          strings.TrimSpace(p.Phone),
		Country:        strings.TrimSpace(p.Country),
		State:          strings.TrimSpace(p.State),
		Address:        strings.TrimSpace(p.Address),
	}
}

// PublicProfile is the subset of a User that may leave the service.
type PublicProfile struct {
	ID          ulid.ULID  `json:"id" yaml:"id"`
	Email       string     `json:"email" yaml:"email"`
	Profile     Profile    `json:"profile" yaml:"profile"`
	IsAdmin     bool       `json:"is_admin" yaml:"is_admin"`
	IsActive    bool       `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" yaml:"last_login_at,omitempty"`
}

// Public strips credential material from u.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Email:       u.Email,
		Profile:     u.Profile,
		IsAdmin:     u.IsAdmin,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// HasPendingReset reports whether u has a reset token that is still valid at now.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now)
}

// NormalizeEmail lower-cases and trims an email address. Every lookup and
// write goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks a normalized email address.
func ValidateEmail(email string) error {
	if email == "" {
		return validationError("email", "email is required")
	}
	if len(email) > MaxEmailLength {
		return validationError("email", "email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationError("email", "email address is not valid")
	}
	return nil
}

// ValidatePassword checks a new password. Only emptiness and an upper bound
// are enforced.
func ValidatePassword(password string) error {
	if password == "" {
		return validationError("password", "password is required")
	}
	if len(password) > MaxPasswordChars {
		return validationError("password", "password must be at most %d characters", MaxPasswordChars)
	}
	return nil
}

// ValidateProfile checks the required profile fields.
func ValidateProfile(p Profile) error {
	if p.Name == "" {
		return validationError("name", "name is required")
	}
	if len(p.Name) > MaxNameLength {
		return validationError("name", "name must be at most %d characters", MaxNameLength)
	}
	return nil
}

// UserRepository manages user persistence. Emails passed in are already
// normalized; implementations compare them verbatim.
type UserRepository interface {
	// Create stores a new user. IsAdmin is decided by the repository in the
	// same transaction as the insert: true only when no other user exists.
	// The decided value is written back to user.IsAdmin.
	// Returns ErrConflict if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByResetToken retrieves the user holding tokenHash, provided the
	// token has not expired at now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)

	// SetResetToken records a reset token digest for the user with the given
	// email, replacing any previous one, and returns the user's ID.
	SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) (ulid.ULID, error)

	// ConsumeResetToken atomically replaces the password of the user holding
	// an unexpired tokenHash and clears the token. Returns ErrNotFound if no
	// such token exists at now.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (ulid.ULID, error)

	// UpdatePassword replaces the password hash and clears any reset token.
	// When revokeRemember is set the remember generation is bumped in the
	// same statement. Returns the resulting remember generation.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, revokeRemember bool) (int, error)

	// UpdateProfile replaces the email and profile fields.
	UpdateProfile(ctx context.Context, id ulid.ULID, email string, profile Profile) error

	// SetActive enables or disables authentication for a user.
	SetActive(ctx context.Context, id ulid.ULID, active bool) error

	// SetAdmin grants or revokes admin rights.
	SetAdmin(ctx context.Context, id ulid.ULID, admin bool) error

	// RecordLogin sets the last login timestamp.
	RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// RevokeRememberTokens invalidates every outstanding remember-me token
	// for the user and returns the new generation.
	RevokeRememberTokens(ctx context.Context, id ulid.ULID) (int, error)

	// Delete removes a user.
	Delete(ctx context.Context, id ulid.ULID) error

	// List returns users whose name or email contains filter
	// (case-insensitive), or all users when filter is empty.
	List(ctx context.Context, filter string) ([]*User, error)
}
