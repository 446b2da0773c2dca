// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/authtest"
)

// cheapParams keep argon2id fast in tests.
var cheapParams = auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

var errDeliveryDown = errors.New("smtp: connection refused")

// captureNotifier records every reset link it is asked to send.
type captureNotifier struct {
	mu     sync.Mutex
	tokens map[string][]string
	err    error
}

func (n *captureNotifier) SendResetLink(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tokens == nil {
		n.tokens = make(map[string][]string)
	}
	n.tokens[email] = append(n.tokens[email], token)
	return n.err
}

func (n *captureNotifier) last(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	sent := n.tokens[email]
	require.NotEmpty(t, sent, "no reset link sent to %s", email)
	return sent[len(sent)-1]
}

func (n *captureNotifier) count(email string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tokens[email])
}

// recordingMetrics collects operation outcomes.
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (m *recordingMetrics) RecordOperation(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string][]string)
	}
	m.outcomes[operation] = append(m.outcomes[operation], outcome)
}

func (m *recordingMetrics) get(operation string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes[operation]...)
}

// harness wires a Service over the in-memory repository with a movable clock.
type harness struct {
	svc      *auth.Service
	repo     *authtest.MemoryUserRepository
	notifier *captureNotifier
	metrics  *recordingMetrics
	logs     *bytes.Buffer

	mu  sync.Mutex
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:     authtest.NewMemoryUserRepository(),
		notifier: &captureNotifier{},
		metrics:  &recordingMetrics{},
		logs:     &bytes.Buffer{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	remember, err := auth.NewRememberTokens(testRememberSecret, 0, auth.WithRememberClock(h.clock))
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(&syncWriter{buf: h.logs}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h.svc, err = auth.NewService(h.repo, auth.NewArgon2idHasherWithParams(cheapParams), remember, h.notifier,
		auth.WithLogger(logger),
		auth.WithClock(h.clock),
		auth.WithMetrics(h.metrics),
	)
	require.NoError(t, err)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) signup(t *testing.T, email, password, name string) *auth.PublicProfile {
	t.Helper()
	user, err := h.svc.Signup(context.Background(), auth.SignupRequest{
		Email:    email,
		Password: password,
		Profile:  auth.Profile{Name: name},
	})
	require.NoError(t, err)
	return user
}

func (h *harness) login(t *testing.T, email, password string, remember bool) *auth.SessionState {
	t.Helper()
	session, err := h.svc.Login(context.Background(), auth.LoginRequest{Email: email, Password: password, Remember: remember})
	require.NoError(t, err)
	return session
}

// syncWriter serializes writes from concurrent test goroutines.
type syncWriter struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func ptr[T any](v T) *T { return &v }
