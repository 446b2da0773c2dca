// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// Notifier delivers reset links out of band. The Service never sends mail
// itself.
type Notifier interface {
	// SendResetLink delivers token to email. A failure does not revoke the
	// token, which stays valid until it expires or is replaced.
	SendResetLink(ctx context.Context, email, token string) error
}

// MetricsRecorder counts Service outcomes.
type MetricsRecorder interface {
	RecordOperation(operation, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, string) {}
