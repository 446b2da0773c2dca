// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"
)

const smtpDialTimeout = 10 * time.Second

// tlsDialer delivers gomail messages and refuses to talk to a relay that
// cannot encrypt: port 465 uses implicit TLS, every other port must offer
// STARTTLS. gomail.Dialer silently stays in plaintext when STARTTLS is
// missing, which would expose reset links and relay credentials.
type tlsDialer struct {
	host        string
	port        int
	implicitTLS bool
	auth        smtp.Auth
	tlsConfig   *tls.Config
	dial        func(network, addr string) (net.Conn, error)
}

func newTLSDialer(cfg SMTPConfig) *tlsDialer {
	d := &tlsDialer{
		host:        cfg.Host,
		port:        cfg.Port,
		implicitTLS: cfg.Port == 465,
		tlsConfig:   &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
	if cfg.Username != "" {
		d.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	nd := &net.Dialer{Timeout: smtpDialTimeout}
	d.dial = nd.Dial
	return d
}

func (d *tlsDialer) addr() string {
	return net.JoinHostPort(d.host, strconv.Itoa(d.port))
}

func (d *tlsDialer) connect() (*smtp.Client, error) {
	conn, err := d.dial("tcp", d.addr())
	if err != nil {
		return nil, oops.With("stage", "dial").With("addr", d.addr()).Wrap(err)
	}
	if d.implicitTLS {
		conn = tls.Client(conn, d.tlsConfig)
	}
	c, err := smtp.NewClient(conn, d.host)
	if err != nil {
		_ = conn.Close()
		return nil, oops.With("stage", "dial").With("addr", d.addr()).Wrap(err)
	}
	return c, nil
}

// DialAndSend implements sender. Errors are uncoded so the notifier's code
// is the one reported; "stage" names the step that failed.
func (d *tlsDialer) DialAndSend(msgs ...*gomail.Message) error {
	c, err := d.connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if !d.implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return oops.With("stage", "starttls").
				With("addr", d.addr()).
				Errorf("smtp server does not offer STARTTLS")
		}
		if err := c.StartTLS(d.tlsConfig); err != nil {
			return oops.With("stage", "starttls").With("addr", d.addr()).Wrap(err)
		}
	}
	if d.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(d.auth); err != nil {
				return oops.With("stage", "auth").With("addr", d.addr()).Wrap(err)
			}
		}
	}

	send := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return err //nolint:wrapcheck // wrapped once below
		}
		for _, rcpt := range to {
			if err := c.Rcpt(rcpt); err != nil {
				return err //nolint:wrapcheck // wrapped once below
			}
		}
		w, err := c.Data()
		if err != nil {
			return err //nolint:wrapcheck // wrapped once below
		}
		if _, err := msg.WriteTo(w); err != nil {
			_ = w.Close()
			return err //nolint:wrapcheck // wrapped once below
		}
		return w.Close() //nolint:wrapcheck // wrapped once below
	})
	if err := gomail.Send(send, msgs...); err != nil {
		return oops.With("stage", "send").With("addr", d.addr()).Wrap(err)
	}
	if err := c.Quit(); err != nil {
		return oops.With("stage", "quit").With("addr", d.addr()).Wrap(err)
	}
	return nil
}
