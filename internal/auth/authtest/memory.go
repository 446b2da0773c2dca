// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides test doubles for the auth package: mockery
// mocks for its interfaces and an in-memory UserRepository.
package authtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// MemoryUserRepository is a goroutine-safe in-memory auth.UserRepository
// with the same observable semantics as the PostgreSQL implementation.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[ulid.ULID]*auth.User

	// Err, when set, is returned by every call.
	Err error
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[ulid.ULID]*auth.User)}
}

// Len reports the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Snapshot returns a copy of the stored user, or nil.
func (r *MemoryUserRepository) Snapshot(id ulid.ULID) *auth.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	return clone(u)
}

func notFound() error {
	return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

func clone(u *auth.User) *auth.User {
	c := *u
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		c.ResetTokenHash = &h
	}
	if u.ResetExpiresAt != nil {
		e := *u.ResetExpiresAt
		c.ResetExpiresAt = &e
	}
	if u.LastLoginAt != nil {
		l := *u.LastLoginAt
		c.LastLoginAt = &l
	}
	return &c
}

func (r *MemoryUserRepository) byEmail(email string) *auth.User {
	for _, u := range r.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (r *MemoryUserRepository) byResetToken(tokenHash string, now time.Time) *auth.User {
	for _, u := range r.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash &&
			u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now) {
			return u
		}
	}
	return nil
}

// Create implements auth.UserRepository.
func (r *MemoryUserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if r.byEmail(user.Email) != nil {
		return oops.Code("USER_EMAIL_TAKEN").With("email", user.Email).Wrap(auth.ErrConflict)
	}
	user.IsAdmin = len(r.users) == 0
	r.users[user.ID] = clone(user)
	return nil
}

// GetByID implements auth.UserRepository.
func (r *MemoryUserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, notFound()
	}
	return clone(u), nil
}

// GetByEmail implements auth.UserRepository.
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u := r.byEmail(email)
	if u == nil {
		return nil, notFound()
	}
	return clone(u), nil
}

// GetByResetToken implements auth.UserRepository.
func (r *MemoryUserRepository) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u := r.byResetToken(tokenHash, now)
	if u == nil {
		return nil, notFound()
	}
	return clone(u), nil
}

// SetResetToken implements auth.UserRepository.
func (r *MemoryUserRepository) SetResetToken(_ context.Context, email, tokenHash string, expiresAt time.Time) (ulid.ULID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return ulid.ULID{}, r.Err
	}
	u := r.byEmail(email)
	if u == nil {
		return ulid.ULID{}, notFound()
	}
	u.ResetTokenHash = &tokenHash
	u.ResetExpiresAt = &expiresAt
	return u.ID, nil
}

// ConsumeResetToken implements auth.UserRepository.
func (r *MemoryUserRepository) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (ulid.ULID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return ulid.ULID{}, r.Err
	}
	u := r.byResetToken(tokenHash, now)
	if u == nil {
		return ulid.ULID{}, notFound()
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.ResetExpiresAt = nil
	u.RememberGeneration++
	u.UpdatedAt = now
	return u.ID, nil
}

func (r *MemoryUserRepository) update(id ulid.ULID, fn func(u *auth.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	u, ok := r.users[id]
	if !ok {
		return notFound()
	}
	return fn(u)
}

// UpdatePassword implements auth.UserRepository.
func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string, revokeRemember bool) (int, error) {
	var generation int
	err := r.update(id, func(u *auth.User) error {
		u.PasswordHash = passwordHash
		u.ResetTokenHash = nil
		u.ResetExpiresAt = nil
		if revokeRemember {
			u.RememberGeneration++
		}
		generation = u.RememberGeneration
		return nil
	})
	return generation, err
}

// UpdateProfile implements auth.UserRepository.
func (r *MemoryUserRepository) UpdateProfile(_ context.Context, id ulid.ULID, email string, profile auth.Profile) error {
	return r.update(id, func(u *auth.User) error {
		if other := r.byEmail(email); other != nil && other.ID != id {
			return oops.Code("USER_EMAIL_TAKEN").With("email", email).Wrap(auth.ErrConflict)
		}
		u.Email = email
		u.Profile = profile
		return nil
	})
}

// SetActive implements auth.UserRepository.
func (r *MemoryUserRepository) SetActive(_ context.Context, id ulid.ULID, active bool) error {
	return r.update(id, func(u *auth.User) error {
		u.IsActive = active
		return nil
	})
}

// SetAdmin implements auth.UserRepository.
func (r *MemoryUserRepository) SetAdmin(_ context.Context, id ulid.ULID, admin bool) error {
	return r.update(id, func(u *auth.User) error {
		u.IsAdmin = admin
		return nil
	})
}

// RecordLogin implements auth.UserRepository.
func (r *MemoryUserRepository) RecordLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.update(id, func(u *auth.User) error {
		u.LastLoginAt = &at
		return nil
	})
}

// RevokeRememberTokens implements auth.UserRepository.
func (r *MemoryUserRepository) RevokeRememberTokens(_ context.Context, id ulid.ULID) (int, error) {
	var generation int
	err := r.update(id, func(u *auth.User) error {
		u.RememberGeneration++
		generation = u.RememberGeneration
		return nil
	})
	return generation, err
}

// Delete implements auth.UserRepository.
func (r *MemoryUserRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.users[id]; !ok {
		return notFound()
	}
	delete(r.users, id)
	return nil
}

// List implements auth.UserRepository.
func (r *MemoryUserRepository) List(_ context.Context, filter string) ([]*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	needle := strings.ToLower(filter)
	out := make([]*auth.User, 0, len(r.users))
	for _, u := range r.users {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.Profile.Name), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Compare(out[j].ID) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

var _ auth.UserRepository = (*MemoryUserRepository)(nil)
