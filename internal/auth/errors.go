// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Repository sentinels. Implementations wrap these so the Service can map
// storage outcomes onto the error codes below with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// Error codes surfaced by Service. These are the only outcomes a caller
// needs to render; raw storage errors never escape the Service.
const (
	CodeValidation            = "AUTH_VALIDATION_FAILED"
	CodeConflict              = "AUTH_CONFLICT"
	CodeNotFound              = "AUTH_NOT_FOUND"
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeAccountDeactivated    = "AUTH_ACCOUNT_DEACTIVATED"
	CodeInvalidOrExpiredToken = "AUTH_INVALID_OR_EXPIRED_TOKEN"
	CodeStoreUnavailable      = "AUTH_STORE_UNAVAILABLE"
	CodeDeliveryFailure       = "AUTH_DELIVERY_FAILED"
	CodeForbidden             = "AUTH_FORBIDDEN"
	CodeRememberInvalid       = "AUTH_REMEMBER_INVALID"
	CodeInternal              = "AUTH_INTERNAL"
)

// Code returns the oops error code carried by err, or "" if there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

// UserMessage renders err as text fit to show an end user. Unknown accounts
// and wrong passwords render identically.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch Code(err) {
	case CodeValidation:
		if oopsErr, ok := oops.AsOops(err); ok {
			return oopsErr.Error()
		}
		return "invalid input"
	case CodeConflict:
		return "an account with that email already exists"
	case CodeNotFound:
		return "account not found"
	case CodeInvalidCredentials:
		return "invalid email or password"
	case CodeAccountDeactivated:
		return "account deactivated"
	case CodeInvalidOrExpiredToken:
		return "invalid or expired reset link"
	case CodeStoreUnavailable:
		return "service temporarily unavailable, please try again"
	case CodeDeliveryFailure:
		return "could not send the reset email, please try again"
	case CodeForbidden:
		return "you are not allowed to do that"
	case CodeRememberInvalid:
		return "your saved login has expired, please log in again"
	default:
		return "something went wrong"
	}
}

func validationError(field, format string, args ...any) error {
	return oops.Code(CodeValidation).With("field", field).Errorf(format, args...)
}
