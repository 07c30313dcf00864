/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package workspace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_mutations_total",
			Help: "Total number of workspace mutations performed",
		},
		[]string{"type"},
	)

	commitCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workspace_commits_total",
			Help: "Total number of commits created by workspace mutations",
		},
	)

	ownershipSyncFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workspace_ownership_sync_failures_total",
			Help: "Total number of failed post-write ownership reassertions",
		},
	)

	listenerFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workspace_listener_failures_total",
			Help: "Total number of change listener invocations that failed",
		},
	)
)
