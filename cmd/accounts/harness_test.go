// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/authtest"
	"github.com/holomush/accounts/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// scriptedPrompter answers prompts in order.
type scriptedPrompter struct {
	answers []string
	asked   []string
}

func (p *scriptedPrompter) next(label string) (string, error) {
	p.asked = append(p.asked, label)
	if len(p.answers) == 0 {
		return "", oops.Code("INPUT_FAILED").Errorf("no scripted answer for %q", label)
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func (p *scriptedPrompter) Line(label string) (string, error)     { return p.next(label) }
func (p *scriptedPrompter) Password(label string) (string, error) { return p.next(label) }

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) Up() error    { return m.Called().Error(0) }
func (m *mockMigrator) Down() error  { return m.Called().Error(0) }
func (m *mockMigrator) Close() error { return m.Called().Error(0) }

func (m *mockMigrator) Steps(n int) error       { return m.Called(n).Error(0) }
func (m *mockMigrator) Force(version int) error { return m.Called(version).Error(0) }

func (m *mockMigrator) Status() (*store.Status, error) {
	args := m.Called()
	st, _ := args.Get(0).(*store.Status)
	return st, args.Error(1)
}

// harness runs CLI invocations against one in-memory user store, the way
// successive runs share one database.
type harness struct {
	t           *testing.T
	repo        *authtest.MemoryUserRepository
	sessionPath string
	configPath  string
	migrator    *mockMigrator
	pushes      int
	lastPrompt  *scriptedPrompter
}

type result struct {
	stdout string
	stderr string
	err    error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("ACCOUNTS_DATABASE__URL", "postgres://accounts@localhost/accounts_test")
	t.Setenv("ACCOUNTS_REMEMBER__SECRET", testSecret)
	t.Setenv("ACCOUNTS_HASHER__MEMORY_KIB", "64")
	t.Setenv("ACCOUNTS_HASHER__ITERATIONS", "1")
	t.Setenv("ACCOUNTS_HASHER__PARALLELISM", "1")
	t.Setenv("ACCOUNTS_LOG__LEVEL", "error")

	dir := t.TempDir()
	return &harness{
		t:           t,
		repo:        authtest.NewMemoryUserRepository(),
		sessionPath: filepath.Join(dir, "state", "session.json"),
		configPath:  filepath.Join(dir, "config.yaml"),
		migrator:    &mockMigrator{},
	}
}

func (h *harness) deps(p Prompter) *Deps {
	return &Deps{
		ServiceFactory: func(_ context.Context, env ServiceEnv) (*auth.Service, func(), error) {
			if err := env.Config.Validate(); err != nil {
				return nil, nil, err
			}
			svc, err := buildService(env.Config, h.repo, env)
			return svc, func() {}, err
		},
		MigratorFactory: func(string) (Migrator, error) {
			return h.migrator, nil
		},
		Prompter: p,
		ConfigFileGetter: func() (string, error) {
			return h.configPath, nil
		},
		SessionFileGetter: func() (string, error) {
			return h.sessionPath, nil
		},
		MetricsPusher: func(context.Context, string, string, prometheus.Gatherer) error {
			h.pushes++
			return nil
		},
	}
}

// run executes one invocation, answering prompts from answers.
func (h *harness) run(answers []string, args ...string) result {
	h.t.Helper()
	p := &scriptedPrompter{answers: answers}
	h.lastPrompt = p

	cmd := newRootCmd(h.deps(p))
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// mustRun is run for invocations that have to succeed.
func (h *harness) mustRun(answers []string, args ...string) string {
	h.t.Helper()
	res := h.run(answers, args...)
	require.NoError(h.t, res.err, "accounts %v\nstdout: %s\nstderr: %s", args, res.stdout, res.stderr)
	return res.stdout
}

// signup creates an account with password "pw-<name>".
func (h *harness) signup(email, name string) {
	h.t.Helper()
	h.mustRun([]string{"pw-" + name, "pw-" + name}, "signup", "--email", email, "--name", name)
}

// loginRemembered logs in with --remember, leaving a session file behind.
func (h *harness) loginRemembered(email, name string) {
	h.t.Helper()
	h.mustRun([]string{"pw-" + name}, "login", "--email", email, "--remember")
}

func (h *harness) userID(email string) string {
	h.t.Helper()
	users, err := h.repo.List(context.Background(), email)
	require.NoError(h.t, err)
	require.Len(h.t, users, 1)
	return users[0].ID.String()
}

var resetTokenRE = regexp.MustCompile(`reset_token=([0-9a-f]{64})`)

func resetTokenFrom(t *testing.T, output string) string {
	t.Helper()
	m := resetTokenRE.FindStringSubmatch(output)
	require.Len(t, m, 2, "no reset link in output: %s", output)
	return m[1]
}
