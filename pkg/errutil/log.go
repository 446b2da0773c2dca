// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil logs and asserts samber/oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// errorAttrs flattens err into slog key/value pairs. Oops errors contribute
// their code and context; other errors only their message.
func errorAttrs(err error, attrs []any) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return append(attrs, "error", err.Error())
	}
	attrs = append(attrs, "error", oopsErr.Error())
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// LogError logs err at ERROR with any extra attrs.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Error(msg, errorAttrs(err, attrs)...)
}

// LogWarn logs err at WARN, carrying ctx so trace ids are attached.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.WarnContext(ctx, msg, errorAttrs(err, attrs)...)
}
