// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/pkg/errutil"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForDatabase_RecoversAfterFailures(t *testing.T) {
	db := &flakyPinger{failures: 2}
	err := waitForDatabase(context.Background(), db, PoolOptions{
		StartupRetries: 5,
		StartupBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, db.calls)
}

func TestWaitForDatabase_GivesUp(t *testing.T) {
	db := &flakyPinger{failures: 100}
	err := waitForDatabase(context.Background(), db, PoolOptions{
		StartupRetries: 2,
		StartupBackoff: time.Millisecond,
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_UNAVAILABLE")
	errutil.AssertErrorContext(t, err, "attempts", 3)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWaitForDatabase_NoRetries(t *testing.T) {
	db := &flakyPinger{failures: 1}
	err := waitForDatabase(context.Background(), db, PoolOptions{StartupBackoff: time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, 1, db.calls)
}

func TestWaitForDatabase_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db := &flakyPinger{failures: 100}
	err := waitForDatabase(ctx, db, PoolOptions{
		StartupRetries: 10,
		StartupBackoff: time.Hour,
	})
	require.Error(t, err)
	assert.LessOrEqual(t, db.calls, 1)
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), PoolOptions{URL: "postgres://user@localhost:notaport/db"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}
