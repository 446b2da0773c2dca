// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/pkg/errutil"
)

func TestConfigSchema(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(nil, "config", "schema")

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Contains(t, schema, "properties")
}

func TestConfigValidate(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("log:\n  level: debug\nsmtp:\n  port: 2525\n"), 0o600))
	assert.Contains(t, h.mustRun(nil, "config", "validate", good), good+" is valid")

	t.Run("schema violation", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("smtp:\n  port: lots\n"), 0o600))

		res := h.run(nil, "config", "validate", bad)
		errutil.AssertErrorCode(t, res.err, "CONFIG_SCHEMA_VIOLATION")
		errutil.AssertErrorContext(t, res.err, "path", bad)
	})

	t.Run("missing file", func(t *testing.T) {
		res := h.run(nil, "config", "validate", filepath.Join(dir, "nope.yaml"))
		errutil.AssertErrorCode(t, res.err, "CONFIG_LOAD_FAILED")
	})

	t.Run("merged configuration", func(t *testing.T) {
		assert.Contains(t, h.mustRun(nil, "config", "validate"), "configuration is valid")

		t.Setenv("ACCOUNTS_REMEMBER__SECRET", "short")
		res := h.run(nil, "config", "validate")
		errutil.AssertErrorContext(t, res.err, "field", "remember.secret")
	})
}
