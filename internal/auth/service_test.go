// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/authtest"
	"github.com/holomush/accounts/pkg/errutil"
)

func TestNewService_NilDependencies(t *testing.T) {
	repo := authtest.NewMemoryUserRepository()
	hasher := auth.NewArgon2idHasherWithParams(cheapParams)
	remember, err := auth.NewRememberTokens(testRememberSecret, 0)
	require.NoError(t, err)
	notifier := &captureNotifier{}

	tests := []struct {
		name     string
		users    auth.UserRepository
		hasher   auth.PasswordHasher
		remember auth.RememberTokenManager
		notifier auth.Notifier
		errMsg   string
	}{
		{"nil users", nil, hasher, remember, notifier, "users repository is required"},
		{"nil hasher", repo, nil, remember, notifier, "password hasher is required"},
		{"nil remember", repo, hasher, nil, notifier, "remember token manager is required"},
		{"nil notifier", repo, hasher, remember, nil, "notifier is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.users, tt.hasher, tt.remember, tt.notifier)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("nil logger", func(t *testing.T) {
		_, err := auth.NewService(repo, hasher, remember, notifier, auth.WithLogger(nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger cannot be nil")
	})
}

func TestService_Signup(t *testing.T) {
	ctx := context.Background()

	t.Run("first account is admin, later accounts are not", func(t *testing.T) {
		h := newHarness(t)

		first := h.signup(t, "first@x.com", "secret123", "First")
		second := h.signup(t, "second@x.com", "secret123", "Second")
		third := h.signup(t, "third@x.com", "secret123", "Third")

		assert.True(t, first.IsAdmin)
		assert.False(t, second.IsAdmin)
		assert.False(t, third.IsAdmin)
		assert.True(t, first.IsActive)
	})

	t.Run("duplicate normalized email is a conflict", func(t *testing.T) {
		h := newHarness(t)

		first := h.signup(t, "A@X.com", "secret123", "Alice")
		assert.Equal(t, "a@x.com", first.Email)

		_, err := h.svc.Signup(ctx, auth.SignupRequest{
			Email:    "a@x.com ",
			Password: "other",
			Profile:  auth.Profile{Name: "Alice Again"},
		})
		require.Error(t, err)
		assert.True(t, auth.HasCode(err, auth.CodeConflict), "got %v", err)
		assert.Equal(t, 1, h.repo.Len())
	})

	t.Run("stores a salted hash, never the password", func(t *testing.T) {
		h := newHarness(t)
		user := h.signup(t, "a@x.com", "secret123", "Alice")

		stored := h.repo.Snapshot(user.ID)
		require.NotNil(t, stored)
		assert.NotEqual(t, "secret123", stored.PasswordHash)
		assert.Contains(t, stored.PasswordHash, "$argon2id$")
	})

	t.Run("profile fields are trimmed and kept", func(t *testing.T) {
		h := newHarness(t)
		user, err := h.svc.Signup(ctx, auth.SignupRequest{
			Email:    "a@x.com",
			Password: "secret123",
			Profile: auth.Profile{
				Name:        "  Alice ",
				CompanyName: "Acme ",
				Phone:       "+64 21 000",
				Address:     "1 Main St",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Alice", user.Profile.Name)
		assert.Equal(t, "Acme", user.Profile.CompanyName)
		assert.Equal(t, "+64 21 000", user.Profile.Phone)
	})

	t.Run("validation failures never reach the store", func(t *testing.T) {
		tests := []struct {
			name  string
			req   auth.SignupRequest
			field string
		}{
			{"missing name", auth.SignupRequest{Email: "a@x.com", Password: "pw"}, "name"},
			{"missing email", auth.SignupRequest{Password: "pw", Profile: auth.Profile{Name: "A"}}, "email"},
			{"blank email", auth.SignupRequest{Email: "   ", Password: "pw", Profile: auth.Profile{Name: "A"}}, "email"},
			{"missing password", auth.SignupRequest{Email: "a@x.com", Profile: auth.Profile{Name: "A"}}, "password"},
			{
				"mismatched confirmation",
				auth.SignupRequest{Email: "a@x.com", Password: "pw", ConfirmPassword: ptr("wp"), Profile: auth.Profile{Name: "A"}},
				"confirm_password",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := authtest.NewMockUserRepository(t)
				svc, err := auth.NewService(repo, auth.NewArgon2idHasherWithParams(cheapParams), authtest.NewMockRememberTokenManager(t), &captureNotifier{})
				require.NoError(t, err)

				_, err = svc.Signup(ctx, tt.req)
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, auth.CodeValidation)
				errutil.AssertErrorContext(t, err, "field", tt.field)
			})
		}
	})

	t.Run("matching confirmation is accepted", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Signup(ctx, auth.SignupRequest{
			Email: "a@x.com", Password: "pw", ConfirmPassword: ptr("pw"), Profile: auth.Profile{Name: "A"},
		})
		assert.NoError(t, err)
	})

	t.Run("store failure is reported as unavailable", func(t *testing.T) {
		h := newHarness(t)
		h.repo.Err = errors.New("dial tcp 10.0.0.1:5432: connection refused")

		_, err := h.svc.Signup(ctx, auth.SignupRequest{Email: "a@x.com", Password: "pw", Profile: auth.Profile{Name: "A"}})
		require.Error(t, err)
		assert.True(t, auth.HasCode(err, auth.CodeStoreUnavailable))
		assert.NotContains(t, auth.UserMessage(err), "10.0.0.1")
	})

	t.Run("concurrent signups for the same email create one account", func(t *testing.T) {
		h := newHarness(t)

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = h.svc.Signup(ctx, auth.SignupRequest{
					Email: "race@x.com", Password: "pw", Profile: auth.Profile{Name: "Racer"},
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, auth.HasCode(err, auth.CodeConflict), "got %v", err)
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, h.repo.Len())
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success populates the session and records the login", func(t *testing.T) {
		h := newHarness(t)
		user := h.signup(t, "a@x.com", "secret123", "Alice")

		session := h.login(t, " A@X.COM", "secret123", false)
		assert.True(t, session.Authenticated)
		assert.Equal(t, user.ID, session.User.ID)
		assert.True(t, session.User.IsAdmin)
		assert.False(t, session.HasRememberToken())
		require.NotNil(t, session.User.LastLoginAt)
		assert.Equal(t, h.clock(), *session.User.LastLoginAt)

		stored := h.repo.Snapshot(user.ID)
		require.NotNil(t, stored.LastLoginAt)
	})

	t.Run("unknown email and wrong password fail identically", func(t *testing.T) {
		h := newHarness(t)
		h.signup(t, "a@x.com", "secret123", "Alice")

		_, unknownErr := h.svc.Login(ctx, auth.LoginRequest{Email: "nobody@x.com", Password: "secret123"})
		_, wrongErr := h.svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "wrong"})

		require.Error(t, unknownErr)
		require.Error(t, wrongErr)
		assert.True(t, auth.HasCode(unknownErr, auth.CodeInvalidCredentials))
		assert.True(t, auth.HasCode(wrongErr, auth.CodeInvalidCredentials))
		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
		assert.Equal(t, "invalid email or password", auth.UserMessage(unknownErr))
		assert.Equal(t, auth.UserMessage(unknownErr), auth.UserMessage(wrongErr))
	})

	t.Run("deactivated account fails until reactivated", func(t *testing.T) {
		h := newHarness(t)
		h.signup(t, "admin@x.com", "adminpw", "Admin")
		user := h.signup(t, "a@x.com", "secret123", "Alice")
		admin := h.login(t, "admin@x.com", "adminpw", false)

		require.NoError(t, h.svc.SetActive(ctx, admin, user.ID, false))

		_, err := h.svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "secret123"})
		require.Error(t, err)
		assert.True(t, auth.HasCode(err, auth.CodeAccountDeactivated))

		_, err = h.svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "wrong"})
		assert.True(t, auth.HasCode(err, auth.CodeInvalidCredentials), "deactivation is only reported after verification")

		require.NoError(t, h.svc.SetActive(ctx, admin, user.ID, true))
		session := h.login(t, "a@x.com", "secret123", false)
		assert.Equal(t, user.ID, session.User.ID)
	})

	t.Run("remember issues a token", func(t *testing.T) {
		h := newHarness(t)
		h.signup(t, "a@x.com", "secret123", "Alice")

		session := h.login(t, "a@x.com", "secret123", true)
		assert.True(t, session.HasRememberToken())
		assert.Equal(t, h.clock().Add(auth.RememberTokenExpiry), session.RememberExpiresAt)
		assert.NotContains(t, session.RememberToken, "secret123")
	})

	t.Run("empty fields are validation errors", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Login(ctx, auth.LoginRequest{Password: "pw"})
		assert.True(t, auth.HasCode(err, auth.CodeValidation))
		_, err = h.svc.Login(ctx, auth.LoginRequest{Email: "a@x.com"})
		assert.True(t, auth.HasCode(err, auth.CodeValidation))
	})

	t.Run("legacy digests are rejected", func(t *testing.T) {
		repo := authtest.NewMockUserRepository(t)
		svc, err := auth.NewService(repo, auth.NewArgon2idHasherWithParams(cheapParams), authtest.NewMockRememberTokenManager(t), &captureNotifier{})
		require.NoError(t, err)

		legacy := &auth.User{
			ID:           ulid.Make(),
			Email:        "old@x.com",
			PasswordHash: auth.HashResetToken("secret123"),
			IsActive:     true,
		}
		repo.EXPECT().GetByEmail(mock.Anything, "old@x.com").Return(legacy, nil)

		_, err = svc.Login(ctx, auth.LoginRequest{Email: "old@x.com", Password: "secret123"})
		require.Error(t, err)
		assert.True(t, auth.HasCode(err, auth.CodeInvalidCredentials))
	})

	t.Run("outdated argon2 params are upgraded", func(t *testing.T) {
		h := newHarness(t)
		user := h.signup(t, "a@x.com", "secret123", "Alice")

		weaker := cheapParams
		weaker.Memory = 512
		oldHash, err := auth.NewArgon2idHasherWithParams(weaker).Hash("secret123")
		require.NoError(t, err)
		_, err = h.repo.UpdatePassword(ctx, user.ID, oldHash, false)
		require.NoError(t, err)
		generation := h.repo.Snapshot(user.ID).RememberGeneration

		h.login(t, "a@x.com", "secret123", false)

		stored := h.repo.Snapshot(user.ID)
		assert.NotEqual(t, oldHash, stored.PasswordHash)
		assert.Contains(t, stored.PasswordHash, "m=1024,")
		assert.Equal(t, generation, stored.RememberGeneration, "an upgrade keeps remember tokens valid")
		h.login(t, "a@x.com", "secret123", false)
	})

	t.Run("store failure is reported as unavailable", func(t *testing.T) {
		h := newHarness(t)
		h.repo.Err = errors.New("connection reset by peer")

		_, err := h.svc.Login(ctx, auth.LoginRequest{Email: "a@x.com", Password: "pw"})
		require.Error(t, err)
		assert.True(t, auth.HasCode(err, auth.CodeStoreUnavailable))
	})
}

func TestService_Resume(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token restores the session", func(t *testing.T) {
		h := newHarness(t)
		user := h.signup(t, "a@x.com", "secret123", "Alice")
		token := h.login(t, "a@x.com", "secret123", true).RememberToken

		h.advance(24 * time.Hour)
		session, err := h.svc.Resume(ctx, token)
		require.NoError(t, err)
		assert.True(t, session.Authenticated)
		assert.Equal(t, user.ID, session.User.ID)
		assert.Equal(t, token, session.RememberToken)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		h := newHarness(t)
		h.signup(t, "a@x.com", "secret123", "Alice")
		token := h.login(t, "a@x.com", "secret123", true).RememberToken

		h.advance(auth.RememberTokenExpiry + time.Minute)
		_, err := h.svc.Resume(ctx, token)
		assert.True(t, auth.HasCode(err, auth.CodeRememberInvalid))
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		h := newHarness(t)
		h.signup(t, "a@x.com", "secret123", "Alice")
		session := h.login(t, "a@x.com", "secret123", true)
		token := session.RememberToken

		require.NoError(t, h.svc.Logout(ctx, session))

		_, err := h.svc.Resume(ctx, token)
		assert.True(t, auth.HasCode(err, auth.CodeRememberInvalid))
	})

	t.Run("deactivated user cannot resume", func(t *testing.T) {
		h := newHarness(t)
		h.signup(t, "admin@x.com", "adminpw", "Admin")
		user := h.signup(t, "a@x.com", "secret123", "Alice")
		token := h.login(t, "a@x.com", "secret123", true).RememberToken

		require.NoError(t, h.repo.SetActive(ctx, user.ID, false))
		_, err := h.svc.Resume(ctx, token)
		assert.True(t, auth.HasCode(err, auth.CodeAccountDeactivated))
	})

	t.Run("deleted user cannot resume", func(t *testing.T) {
		h := newHarness(t)
		user := h.signup(t, "a@x.com", "secret123", "Alice")
		token := h.login(t, "a@x.com", "secret123", true).RememberToken

		require.NoError(t, h.repo.Delete(ctx, user.ID))
		_, err := h.svc.Resume(ctx, token)
		assert.True(t, auth.HasCode(err, auth.CodeRememberInvalid))
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Resume(ctx, "garbage")
		assert.True(t, auth.HasCode(err, auth.CodeRememberInvalid))
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the session", func(t *testing.T) {
		h := newHarness(t)
		h.signup(t, "a@x.com", "secret123", "Alice")
		session := h.login(t, "a@x.com", "secret123", true)

		require.NoError(t, h.svc.Logout(ctx, session))
		assert.False(t, session.Authenticated)
		assert.False(t, session.HasRememberToken())
	})

	t.Run("session without remember token does not touch the store", func(t *testing.T) {
		repo := authtest.NewMockUserRepository(t)
		svc, err := auth.NewService(repo, auth.NewArgon2idHasherWithParams(cheapParams), authtest.NewMockRememberTokenManager(t), &captureNotifier{})
		require.NoError(t, err)

		session := &auth.SessionState{Authenticated: true, User: auth.PublicProfile{ID: ulid.Make()}}
		require.NoError(t, svc.Logout(ctx, session))
		assert.False(t, session.Authenticated)
	})

	t.Run("nil session is a no-op", func(t *testing.T) {
		h := newHarness(t)
		assert.NoError(t, h.svc.Logout(ctx, nil))
	})

	t.Run("revocation failure is reported but the session is cleared", func(t *testing.T) {
		repo := authtest.NewMockUserRepository(t)
		svc, err := auth.NewService(repo, auth.NewArgon2idHasherWithParams(cheapParams), authtest.NewMockRememberTokenManager(t), &captureNotifier{})
		require.NoError(t, err)

		id := ulid.Make()
		repo.EXPECT().RevokeRememberTokens(mock.Anything, id).Return(0, errors.New("timeout"))

		session := &auth.SessionState{Authenticated: true, User: auth.PublicProfile{ID: id}, RememberToken: "t"}
		err = svc.Logout(ctx, session)
		assert.True(t, auth.HasCode(err, auth.CodeStoreUnavailable))
		assert.False(t, session.Authenticated)
	})
}

func TestService_Metrics(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "a@x.com", "secret123", "Alice")
	_, err := h.svc.Login(context.Background(), auth.LoginRequest{Email: "a@x.com", Password: "nope"})
	require.Error(t, err)
	h.login(t, "a@x.com", "secret123", false)

	assert.Equal(t, []string{"success"}, h.metrics.get("signup"))
	assert.Equal(t, []string{"invalid_credentials", "success"}, h.metrics.get("login"))
}
