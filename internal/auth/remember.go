// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Remember-me token configuration.
const (
	RememberTokenExpiry  = 30 * 24 * time.Hour
	RememberTokenIssuer  = "accounts"
	MinRememberSecretLen = 32
)

// RememberClaims is the payload of a remember-me token. Generation must
// match the user's current remember generation for the token to be honored.
type RememberClaims struct {
	Generation int `json:"gen"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *RememberClaims) UserID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeRememberInvalid).With("subject", c.Subject).Wrap(err)
	}
	return id, nil
}

// RememberTokens issues and parses signed remember-me tokens. The tokens
// carry the user ID, never credentials.
type RememberTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// RememberOption configures RememberTokens.
type RememberOption func(*RememberTokens)

// WithRememberClock replaces time.Now for issuing and expiry checks.
func WithRememberClock(now func() time.Time) RememberOption {
	return func(r *RememberTokens) { r.now = now }
}

// NewRememberTokens creates a token manager signing with secret.
func NewRememberTokens(secret []byte, ttl time.Duration, opts ...RememberOption) (*RememberTokens, error) {
	if len(secret) < MinRememberSecretLen {
		return nil, oops.Code("REMEMBER_SECRET_INVALID").
			With("min_length", MinRememberSecretLen).
			Errorf("remember secret must be at least %d bytes", MinRememberSecretLen)
	}
	if ttl <= 0 {
		ttl = RememberTokenExpiry
	}
	r := &RememberTokens{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Issue mints a token for the user at their current generation.
func (r *RememberTokens) Issue(user *User) (string, time.Time, error) {
	now := r.now()
	expiresAt := now.Add(r.ttl)
	claims := RememberClaims{
		Generation: user.RememberGeneration,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   user.ID.String(),
			Issuer:    RememberTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("REMEMBER_SIGN_FAILED").Wrap(err)
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, issuer and expiry and returns the claims.
// Generation is not checked here; that needs the stored user.
func (r *RememberTokens) Parse(token string) (*RememberClaims, error) {
	if token == "" {
		return nil, oops.Code(CodeRememberInvalid).Errorf("remember token cannot be empty")
	}
	claims := &RememberClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(RememberTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return nil, oops.Code(CodeRememberInvalid).Wrap(err)
	}
	return claims, nil
}
