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
package dns

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	operationReady  = "ready"
	operationUpsert = "upsert"
	operationDelete = "delete"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerdns_dns_requests_total",
			Help: "Total number of DNS API requests by operation and result",
		},
		[]string{"operation", "result"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peerdns_dns_request_duration_seconds",
			Help:    "Duration of DNS API requests by operation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"operation"},
	)
	retryExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "peerdns_dns_upsert_retries_exhausted_total",
			Help: "Total number of record upserts that failed on every attempt",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		requestsTotal,
		requestDuration,
		retryExhaustedTotal,
	)
}

func observe(operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	requestsTotal.WithLabelValues(operation, result).Inc()
	requestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
