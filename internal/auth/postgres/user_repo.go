// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides the PostgreSQL implementation of auth.UserRepository.
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the repository needs. Each call
// borrows a pooled connection only for its own duration.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const userColumns = `id, email, name, company_name, company_email, job_title,
	       company_website, phone, country, state, address, password_hash,
	       is_admin, is_active, reset_token, reset_expiry, remember_generation,
	       created_at, updated_at, last_login`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func notFound(key string, value any) error {
	return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

func emailTaken(email string) error {
	return oops.Code("USER_EMAIL_TAKEN").With("email", email).Wrap(auth.ErrConflict)
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (r *UserRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // fn's error takes precedence
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

// Create stores a new user. The table lock serializes concurrent signups so
// exactly one insert into an empty table is granted admin.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	p := user.Profile
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return oops.Code("USER_CREATE_FAILED").
				With("operation", "lock users").
				Wrap(err)
		}

		var isAdmin bool
		err := tx.QueryRow(ctx, `
			INSERT INTO users (
				id, email, name, company_name, company_email, job_title,
				company_website, phone, country, state, address, password_hash,
				is_admin, is_active, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
				NOT EXISTS (SELECT 1 FROM users), $13, $14, $15
			)
			RETURNING is_admin
		`,
			user.ID.String(),
			user.Email,
			p.Name,
			p.CompanyName,
			p.CompanyEmail,
			p.JobTitle,
			p.CompanyWebsite,
			p.Phone,
			p.Country,
			p.State,
			p.Address,
			user.PasswordHash,
			user.IsActive,
			user.CreatedAt,
			user.UpdatedAt,
		).Scan(&isAdmin)
		if isUniqueViolation(err) {
			return emailTaken(user.Email)
		}
		if err != nil {
			return oops.Code("USER_CREATE_FAILED").
				With("operation", "insert user").
				With("email", user.Email).
				Wrap(err)
		}
		user.IsAdmin = isAdmin
		return nil
	})
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("id", id.String())
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("email", email)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// GetByResetToken retrieves the user holding an unexpired reset token digest.
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token = $1 AND reset_expiry > $2
	`, tokenHash, now)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("token", "reset")
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_TOKEN_FAILED").
			With("operation", "get user by reset token").
			Wrap(err)
	}
	return user, nil
}

// SetResetToken records a reset token digest, replacing any earlier one.
func (r *UserRepository) SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) (ulid.ULID, error) {
	var idStr string
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET reset_token = $2, reset_expiry = $3, updated_at = now()
		WHERE email = $1
		RETURNING id
	`, email, tokenHash, expiresAt).Scan(&idStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, notFound("email", email)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("USER_SET_RESET_TOKEN_FAILED").
			With("operation", "set reset token").
			With("email", email).
			Wrap(err)
	}
	return parseID(idStr)
}

// ConsumeResetToken replaces the password of the user holding an unexpired
// token digest, clears the token and revokes remember-me tokens, all in one
// conditional statement.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (ulid.ULID, error) {
	var idStr string
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET
			password_hash = $2,
			reset_token = NULL,
			reset_expiry = NULL,
			remember_generation = remember_generation + 1,
			updated_at = $3
		WHERE reset_token = $1 AND reset_expiry > $3
		RETURNING id
	`, tokenHash, passwordHash, now).Scan(&idStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, notFound("token", "reset")
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("USER_CONSUME_RESET_TOKEN_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}
	return parseID(idStr)
}

// exec runs a single-row update and maps zero affected rows to ErrNotFound.
func (r *UserRepository) exec(ctx context.Context, code, op string, id ulid.ULID, sql string, args ...any) error {
	result, err := r.pool.Exec(ctx, sql, append([]any{id.String()}, args...)...)
	if err != nil {
		return oops.Code(code).
			With("operation", op).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id.String())
	}
	return nil
}

// UpdatePassword replaces the password hash and clears any reset token,
// optionally bumping the remember generation in the same statement.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, revokeRemember bool) (int, error) {
	var generation int
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET
			password_hash = $2,
			reset_token = NULL,
			reset_expiry = NULL,
			remember_generation = remember_generation + CASE WHEN $3 THEN 1 ELSE 0 END,
			updated_at = now()
		WHERE id = $1
		RETURNING remember_generation
	`, id.String(), passwordHash, revokeRemember).Scan(&generation)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, notFound("id", id.String())
	}
	if err != nil {
		return 0, oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			With("revoke_remember", revokeRemember).
			Wrap(err)
	}
	return generation, nil
}

// UpdateProfile replaces the email and profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id ulid.ULID, email string, profile auth.Profile) error {
	err := r.exec(ctx, "USER_UPDATE_PROFILE_FAILED", "update profile", id, `
		UPDATE users SET
			email = $2,
			name = $3,
			company_name = $4,
			company_email = $5,
			job_title = $6,
			company_website = $7,
			phone = $8,
			country = $9,
			state = $10,
			address = $11,
			updated_at = now()
		WHERE id = $1
	`,
		email,
		profile.Name,
		profile.CompanyName,
		profile.CompanyEmail,
		profile.JobTitle,
		profile.CompanyWebsite,
		profile.Phone,
		profile.Country,
		profile.State,
		profile.Address,
	)
	if isUniqueViolation(err) {
		return emailTaken(email)
	}
	return err
}

// SetActive enables or disables authentication for a user.
func (r *UserRepository) SetActive(ctx context.Context, id ulid.ULID, active bool) error {
	return r.exec(ctx, "USER_SET_ACTIVE_FAILED", "set active", id,
		`UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, active)
}

// SetAdmin grants or revokes admin rights.
func (r *UserRepository) SetAdmin(ctx context.Context, id ulid.ULID, admin bool) error {
	return r.exec(ctx, "USER_SET_ADMIN_FAILED", "set admin", id,
		`UPDATE users SET is_admin = $2, updated_at = now() WHERE id = $1`, admin)
}

// RecordLogin sets the last login timestamp.
func (r *UserRepository) RecordLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.exec(ctx, "USER_RECORD_LOGIN_FAILED", "record login", id,
		`UPDATE users SET last_login = $2 WHERE id = $1`, at)
}

// RevokeRememberTokens bumps the remember generation.
func (r *UserRepository) RevokeRememberTokens(ctx context.Context, id ulid.ULID) (int, error) {
	var generation int
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET remember_generation = remember_generation + 1, updated_at = now()
		WHERE id = $1
		RETURNING remember_generation
	`, id.String()).Scan(&generation)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, notFound("id", id.String())
	}
	if err != nil {
		return 0, oops.Code("USER_REVOKE_REMEMBER_FAILED").
			With("operation", "revoke remember tokens").
			With("id", id.String()).
			Wrap(err)
	}
	return generation, nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return r.exec(ctx, "USER_DELETE_FAILED", "delete user", id, `DELETE FROM users WHERE id = $1`)
}

// likeEscaper escapes LIKE metacharacters so a filter matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns users whose name or email contains filter, case-insensitively,
// oldest first.
func (r *UserRepository) List(ctx context.Context, filter string) ([]*auth.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE $1 = ''
		   OR name ILIKE '%' || $1 || '%' ESCAPE '\'
		   OR email ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at, id
	`, likeEscaper.Replace(filter))
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "list users").
			Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").
				With("operation", "scan user row").
				Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "iterate users").
			Wrap(err)
	}
	return users, nil
}

func parseID(idStr string) (ulid.ULID, error) {
	id, err := ulid.Parse(idStr)
	if err != nil {
		return ulid.ULID{}, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	return id, nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		u     auth.User
		p     = &u.Profile
	)

	err := row.Scan(
		&idStr,
		&u.Email,
		&p.Name,
		&p.CompanyName,
		&p.CompanyEmail,
		&p.JobTitle,
		&p.CompanyWebsite,
		&p.Phone,
		&p.Country,
		&p.State,
		&p.Address,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.IsActive,
		&u.ResetTokenHash,
		&u.ResetExpiresAt,
		&u.RememberGeneration,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLoginAt,
	)
	if err != nil {
		// Uncoded so the caller's code is the one reported; pgx.ErrNoRows
		// still matches errors.Is.
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}

	if u.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.With("operation", "scan user").With("id", idStr).Wrap(err)
	}
	return &u, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
