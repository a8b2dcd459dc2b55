// Copyright 2025 The Kube Resource Orchestrator Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.
package peers

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

var (
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerdns_reconcile_total",
			Help: "Total number of reconciliation passes by reason and result",
		},
		[]string{"reason", "result"},
	)
	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peerdns_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes by reason",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"reason"},
	)
	peersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "peerdns_peers",
			Help: "Number of peers found by the last reconciliation pass",
		},
	)
	upsertFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "peerdns_reconcile_upsert_failures_total",
			Help: "Total number of peers whose record could not be upserted during a pass",
		},
	)
	dnsDeferredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "peerdns_reconcile_dns_deferred_total",
			Help: "Total number of passes that skipped DNS because the API was not ready",
		},
	)
	periodicSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "peerdns_periodic_skipped_total",
			Help: "Total number of periodic ticks skipped because the DNS API was not ready",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		reconcileTotal,
		reconcileDuration,
		peersGauge,
		upsertFailuresTotal,
		dnsDeferredTotal,
		periodicSkippedTotal,
	)
}
