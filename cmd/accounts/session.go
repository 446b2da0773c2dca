// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/xdg"
)

// sessionFile persists a remember-me session between invocations. It holds
// a bearer credential and is written with 0600 permissions.
type sessionFile struct {
	path string
}

// Load returns the saved session, or nil when none is saved.
func (f sessionFile) Load() (*auth.SessionState, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_READ_FAILED").With("path", f.path).Wrap(err)
	}

	var session auth.SessionState
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, oops.Code("SESSION_CORRUPT").With("path", f.path).Wrap(err)
	}
	return &session, nil
}

// Save writes session. Sessions without a remember-me token are not worth
// keeping, so they remove the file instead.
func (f sessionFile) Save(session *auth.SessionState) error {
	if !session.HasRememberToken() {
		return f.Remove()
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return oops.Code("SESSION_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	if err := xdg.EnsureDir(filepath.Dir(f.path)); err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return oops.Code("SESSION_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return oops.Code("SESSION_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}

// Remove deletes the saved session. A missing file is not an error.
func (f sessionFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("SESSION_WRITE_FAILED").With("path", f.path).Wrap(err)
	}
	return nil
}
