// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/samber/oops"
)

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "accounts"

// Push sends everything g gathers to the Pushgateway at url. The CLI exits
// before any scraper could reach it, so metrics are pushed once per run.
// An empty url disables pushing.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if url == "" {
		return nil
	}
	if job == "" {
		job = DefaultJob
	}

	pusher := push.New(url, job).Gatherer(g)
	if host, err := os.Hostname(); err == nil {
		pusher = pusher.Grouping("instance", host)
	}
	if err := pusher.AddContext(ctx); err != nil {
		return oops.Code("METRICS_PUSH_FAILED").
			With("url", url).
			With("job", job).
			Wrap(err)
	}
	return nil
}
