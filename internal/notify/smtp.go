// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"

	"github.com/holomush/accounts/internal/auth"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// ResetBaseURL is the page that accepts ?reset_token=.
	ResetBaseURL string
}

// sender is satisfied by *tlsDialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier mails reset links through an authenticated relay. Port 465
// uses implicit TLS; any other port must upgrade with STARTTLS, and a relay
// that does not offer it is refused.
type SMTPNotifier struct {
	dialer  sender
	from    string
	baseURL string
	logger  *slog.Logger
}

// NewSMTPNotifier validates cfg and builds a notifier.
func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp from address is required")
	}
	if _, err := ResetLink(cfg.ResetBaseURL, "token"); err != nil {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").
			With("field", "reset_base_url").
			Errorf("invalid reset base url: %v", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	return newSMTPNotifier(newTLSDialer(cfg), cfg, logger), nil
}

func newSMTPNotifier(d sender, cfg SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPNotifier{dialer: d, from: cfg.From, baseURL: cfg.ResetBaseURL, logger: logger}
}

// SendResetLink mails the reset link for token to email. gomail has no
// context support, so ctx is only checked before dialing.
func (n *SMTPNotifier) SendResetLink(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").With("operation", "send reset link").Wrap(err)
	}
	msg, err := n.resetMessage(email, token)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := n.dialer.DialAndSend(msg); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("operation", "send reset link").
			With("recipient", email).
			Wrap(err)
	}
	n.logger.Debug("reset link sent", "recipient", email, "duration", time.Since(start))
	return nil
}

func (n *SMTPNotifier) resetMessage(email, token string) (*gomail.Message, error) {
	link, err := ResetLink(n.baseURL, token)
	if err != nil {
		return nil, err
	}
	minutes := int(auth.ResetTokenExpiry / time.Minute)

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Reset your password")
	m.SetBody("text/plain", fmt.Sprintf(
		"Someone asked to reset the password for this account.\n\n"+
			"Open this link to choose a new password:\n%s\n\n"+
			"The link expires in %d minutes and works once. "+
			"If you did not ask for a reset, ignore this email.\n", link, minutes))
	m.AddAlternative("text/html", fmt.Sprintf(
		`<p>Someone asked to reset the password for this account.</p>`+
			`<p><a href="%s">Choose a new password</a></p>`+
			`<p>The link expires in %d minutes and works once. `+
			`If you did not ask for a reset, ignore this email.</p>`,
		html.EscapeString(link), minutes))
	return m, nil
}

var _ auth.Notifier = (*SMTPNotifier)(nil)
