// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides email/password accounts.
//
// # Domain Types
//
// A User is one row of the users table. PublicProfile is the part of a User
// that may leave the package, and SessionState is the caller-held value that
// Login and Resume return and every caller-scoped operation takes back.
// There is no process-wide session.
//
// # Credentials
//
//   - Argon2idHasher - salted argon2id PHC hashes; older digests are never verified
//   - GenerateResetToken - single-use reset tokens, stored as SHA-256 digests
//   - RememberTokens - signed remember-me tokens bound to a user and a
//     revocation generation
//
// # Service
//
// Service is the only authorization boundary. Admin operations check both the
// caller's session and the stored record. All errors carry one of the Code*
// constants; UserMessage renders them for end users.
package auth
