// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

// WriterNotifier prints reset links instead of mailing them. It is used
// when no SMTP host is configured.
type WriterNotifier struct {
	mu      sync.Mutex
	w       io.Writer
	baseURL string
}

// NewWriterNotifier writes links built on baseURL to w.
func NewWriterNotifier(w io.Writer, baseURL string) *WriterNotifier {
	return &WriterNotifier{w: w, baseURL: baseURL}
}

// SendResetLink writes one line naming the recipient and the link.
func (n *WriterNotifier) SendResetLink(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").Wrap(err)
	}
	link, err := ResetLink(n.baseURL, token)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.w, "password reset link for %s: %s\n", email, link); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("recipient", email).Wrap(err)
	}
	return nil
}

var _ auth.Notifier = (*WriterNotifier)(nil)
