// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/accounts/pkg/errutil"
)

// DefaultOperationTimeout bounds the store work of a single Service call.
const DefaultOperationTimeout = 5 * time.Second

const tracerName = "github.com/holomush/accounts/internal/auth"

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RememberTokenManager issues and parses remember-me tokens.
type RememberTokenManager interface {
	Issue(user *User) (string, time.Time, error)
	Parse(token string) (*RememberClaims, error)
}

// Service orchestrates signup, login, password reset and account
// administration on top of a UserRepository.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	remember RememberTokenManager
	notifier Notifier
	logger   *slog.Logger
	metrics  MetricsRecorder
	tracer   trace.Tracer
	now      func() time.Time
	timeout  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for best-effort failures and audit lines.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock replaces time.Now, for tests that need to move past expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records an outcome for every operation.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithOperationTimeout bounds the store work of each call.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// NewService creates a Service. All four dependencies are required.
func NewService(users UserRepository, hasher PasswordHasher, remember RememberTokenManager, notifier Notifier, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if remember == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("remember token manager is required")
	}
	if notifier == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("notifier is required")
	}

	s := &Service{
		users:    users,
		hasher:   hasher,
		remember: remember,
		notifier: notifier,
		logger:   slog.Default(),
		metrics:  noopMetrics{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		timeout:  DefaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger cannot be nil")
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.timeout <= 0 {
		s.timeout = DefaultOperationTimeout
	}
	return s, nil
}

// begin starts a span and a store deadline for one operation. The returned
// func must be called with the operation's final error.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "auth."+op)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, func(err error) {
		cancel()
		outcome := "success"
		if err != nil {
			outcome = outcomeOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.RecordOperation(op, outcome)
		span.End()
	}
}

func outcomeOf(err error) string {
	code := Code(err)
	if code == "" {
		return "error"
	}
	return strings.ToLower(strings.TrimPrefix(code, "AUTH_"))
}

// storeError maps a repository error onto the Service taxonomy. Sentinel
// outcomes keep their meaning; everything else is StoreUnavailable.
func (s *Service) storeError(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return oops.Code(CodeNotFound).With("operation", op).Errorf("account not found")
	case errors.Is(err, ErrConflict):
		return oops.Code(CodeConflict).With("operation", op).Errorf("an account with that email already exists")
	}
	errutil.LogError(s.logger, "account store failure", err, "operation", op)
	return oops.Code(CodeStoreUnavailable).
		With("operation", op).
		With("cause", err.Error()).
		Errorf("account store unavailable")
}

// warnBestEffort logs a failure that does not fail the operation.
func (s *Service) warnBestEffort(ctx context.Context, op string, userID ulid.ULID, err error) {
	errutil.LogWarn(ctx, s.logger, "best-effort update failed", err,
		"operation", op,
		"user_id", userID.String(),
	)
}

// SignupRequest carries the fields collected by a signup form.
type SignupRequest struct {
	Email    string
	Password string
	// ConfirmPassword is compared with Password when non-nil.
	ConfirmPassword *string
	Profile         Profile
}

// Signup creates an account. The first account ever created becomes admin.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (_ *PublicProfile, err error) {
	ctx, done := s.begin(ctx, "signup")
	defer func() { done(err) }()

	email := NormalizeEmail(req.Email)
	profile := req.Profile.Trimmed()

	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.ConfirmPassword != nil && *req.ConfirmPassword != req.Password {
		return nil, validationError("confirm_password", "passwords do not match")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "hash password").Wrap(err)
	}

	now := s.now().UTC()
	user := &User{
		ID:           ulid.Make(),
		Email:        email,
		Profile:      profile,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.storeError("create user", err)
	}

	s.logger.InfoContext(ctx, "account created",
		"user_id", user.ID.String(),
		"is_admin", user.IsAdmin,
	)
	public := user.Public()
	return &public, nil
}

// LoginRequest carries login form input.
type LoginRequest struct {
	Email    string
	Password string
	Remember bool
}

// Login authenticates a user and returns a populated session. Unknown
// emails and wrong passwords fail identically with InvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (_ *SessionState, err error) {
	ctx, done := s.begin(ctx, "login")
	defer func() { done(err) }()

	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, validationError("email", "email is required")
	}
	if req.Password == "" {
		return nil, validationError("password", "password is required")
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)

	var targetHash string
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return nil, s.storeError("get user by email", lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(req.Password, targetHash)
	if verifyErr != nil {
		if exists {
			// Digests from older deployments are not accepted; a reset
			// replaces them.
			s.logger.WarnContext(ctx, "stored password hash cannot be verified",
				"user_id", user.ID.String(),
				"error", verifyErr.Error(),
			)
		}
		valid = false
	}
	if !exists || !valid {
		return nil, oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
	}

	if !user.IsActive {
		return nil, oops.Code(CodeAccountDeactivated).
			With("user_id", user.ID.String()).
			Errorf("account deactivated")
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(req.Password); hashErr == nil {
			if _, updErr := s.users.UpdatePassword(ctx, user.ID, newHash, false); updErr != nil {
				s.warnBestEffort(ctx, "upgrade_hash", user.ID, updErr)
			} else {
				user.PasswordHash = newHash
			}
		}
	}

	s.touchLogin(ctx, user)

	session := newSession(user)
	if req.Remember {
		token, expiresAt, issueErr := s.remember.Issue(user)
		if issueErr != nil {
			return nil, oops.Code(CodeInternal).With("operation", "issue remember token").Wrap(issueErr)
		}
		session.RememberToken = token
		session.RememberExpiresAt = expiresAt
	}

	s.logger.InfoContext(ctx, "login succeeded",
		"user_id", user.ID.String(),
		"remember", req.Remember,
	)
	return session, nil
}

func (s *Service) touchLogin(ctx context.Context, user *User) {
	now := s.now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		s.warnBestEffort(ctx, "record_login", user.ID, err)
		return
	}
	user.LastLoginAt = &now
}

// Resume re-authenticates from a remember-me token. The token must be
// correctly signed, unexpired, and issued at the user's current remember
// generation; the user must still exist and be active. Callers treat any
// error as "show the login form".
func (s *Service) Resume(ctx context.Context, rememberToken string) (_ *SessionState, err error) {
	ctx, done := s.begin(ctx, "resume")
	defer func() { done(err) }()

	claims, err := s.remember.Parse(rememberToken)
	if err != nil {
		return nil, oops.Code(CodeRememberInvalid).Errorf("remember token rejected")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, oops.Code(CodeRememberInvalid).Errorf("remember token rejected")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeRememberInvalid).Errorf("remember token rejected")
		}
		return nil, s.storeError("get user by id", err)
	}
	if claims.Generation != user.RememberGeneration {
		return nil, oops.Code(CodeRememberInvalid).
			With("user_id", user.ID.String()).
			Errorf("remember token revoked")
	}
	if !user.IsActive {
		return nil, oops.Code(CodeAccountDeactivated).
			With("user_id", user.ID.String()).
			Errorf("account deactivated")
	}

	s.touchLogin(ctx, user)

	session := newSession(user)
	session.RememberToken = rememberToken
	if claims.ExpiresAt != nil {
		session.RememberExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Logout clears session. When the session carried a remember-me token,
// every remember-me token of the user is revoked.
func (s *Service) Logout(ctx context.Context, session *SessionState) (err error) {
	if session == nil {
		return nil
	}
	defer session.Clear()

	if !session.Authenticated || !session.HasRememberToken() {
		return nil
	}

	ctx, done := s.begin(ctx, "logout")
	defer func() { done(err) }()

	if _, err := s.users.RevokeRememberTokens(ctx, session.User.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return s.storeError("revoke remember tokens", err)
	}
	s.logger.InfoContext(ctx, "remember tokens revoked", "user_id", session.User.ID.String())
	return nil
}
