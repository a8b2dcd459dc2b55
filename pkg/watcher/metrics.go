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
package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

func init() {
	metrics.Registry.MustRegister(
		watchEventsTotal,
		watchRestartsTotal,
		handlerPanicsTotal,
	)
}

var (
	watchEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerdns_watch_events_total",
			Help: "Total number of pod watch events received per scope and event type",
		},
		[]string{"scope", "event_type"},
	)
	watchRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerdns_watch_restarts_total",
			Help: "Total number of pod watch reconnects per scope",
		},
		[]string{"scope"},
	)
	handlerPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peerdns_watch_handler_panics_total",
			Help: "Total number of recovered panics in pod event handlers per scope",
		},
		[]string{"scope"},
	)
)
