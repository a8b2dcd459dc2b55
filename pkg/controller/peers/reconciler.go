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
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/kro-run/peerdns/pkg/dns"
	"github.com/kro-run/peerdns/pkg/peer"
	"github.com/kro-run/peerdns/pkg/selector"
)

const (
	ReasonStartup    = "startup"
	ReasonPodAdded   = "pod_added"
	ReasonPodDeleted = "pod_deleted"
	ReasonPeriodic   = "periodic"
)

// DNSClient is the subset of the DNS API the reconciler drives.
type DNSClient interface {
	IsReady(ctx context.Context) bool
	Delete(ctx context.Context, fqdn string) error
	UpsertWithRetry(ctx context.Context, fqdn, ip string, ttl int) bool
}

// Sink publishes the peer list for other workloads.
type Sink interface {
	Publish(ctx context.Context, peers []peer.Peer) error
}

var _ DNSClient = &dns.Client{}

// Config holds the reconciler settings.
type Config struct {
	Selector     selector.Selector
	Zone         string
	RecordPrefix string
	TTL          int
	// Interval between periodic passes.
	Interval time.Duration
}

// Reconciler converges DNS records and the peer sink with the pods matching
// the selector. Passes may run concurrently; each recomputes the desired
// state from a fresh pod list and every write is a full replace, so the last
// writer leaves a valid snapshot.
type Reconciler struct {
	log    logr.Logger
	pods   PodLister
	dns    DNSClient
	sink   Sink
	config Config
	// listSelector is sent to the API server; empty when the selector is not
	// valid server side syntax.
	listSelector string
}

// NewReconciler returns a Reconciler.
func NewReconciler(log logr.Logger, pods PodLister, dnsClient DNSClient, sink Sink, cfg Config) *Reconciler {
	log = log.WithName("reconciler")
	return &Reconciler{
		log:          log,
		pods:         pods,
		dns:          dnsClient,
		sink:         sink,
		config:       cfg,
		listSelector: serverSelector(log, cfg.Selector),
	}
}

// serverSelector returns the selector to list with, or "" when the API server
// would reject it. Matching then happens client side only.
func serverSelector(log logr.Logger, sel selector.Selector) string {
	s := sel.String()
	if _, err := labels.Parse(s); err != nil {
		log.Info("label selector is not valid api server syntax, listing unfiltered", "selector", s, "error", err.Error())
		return ""
	}
	return s
}

// ReconcileAll runs one full pass. Errors and panics are logged and
// swallowed so the caller's loop keeps running.
func (r *Reconciler) ReconcileAll(ctx context.Context, reason string) {
	log := r.log.WithValues("reason", reason)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			reconcileTotal.WithLabelValues(reason, resultError).Inc()
			log.Error(fmt.Errorf("panic: %v", rec), "reconciliation panicked")
		}
	}()

	log.V(1).Info("reconciliation started")
	n, err := r.reconcile(ctx, log)
	reconcileDuration.WithLabelValues(reason).Observe(time.Since(start).Seconds())
	if err != nil {
		reconcileTotal.WithLabelValues(reason, resultError).Inc()
		log.Error(err, "reconciliation failed")
		return
	}
	reconcileTotal.WithLabelValues(reason, resultSuccess).Inc()
	log.Info("reconciliation done", "peers", n, "duration", time.Since(start).String())
}

// reconcile lists, projects, syncs DNS when reachable and always publishes
// the sink. The selector is applied server side and again here, so a lister
// that ignores it still yields the right membership. It returns the number of peers published.
func (r *Reconciler) reconcile(ctx context.Context, log logr.Logger) (int, error) {
	pods, err := r.pods.List(ctx, r.listSelector)
	if err != nil {
		return 0, err
	}
	matching := pods[:0]
	for _, pod := range pods {
		if r.config.Selector.Matches(pod.Labels) {
			matching = append(matching, pod)
		}
	}
	peers := peer.Project(matching)
	peersGauge.Set(float64(len(peers)))

	if r.dns.IsReady(ctx) {
		failed := 0
		for _, p := range peers {
			if !r.dns.UpsertWithRetry(ctx, r.fqdn(p.Name), p.IP, r.config.TTL) {
				failed++
			}
		}
		if failed > 0 {
			upsertFailuresTotal.Add(float64(failed))
			log.Info("some dns records were not updated", "failed", failed, "peers", len(peers))
		}
	} else {
		dnsDeferredTotal.Inc()
		log.Info("dns api not ready, deferring record updates to a later pass")
	}

	if err := r.sink.Publish(ctx, peers); err != nil {
		return len(peers), err
	}
	return len(peers), nil
}

// OnPodAdded upserts the record of a matching pod with an IP, then runs a
// full pass.
func (r *Reconciler) OnPodAdded(ctx context.Context, pod *corev1.Pod) {
	if pod == nil || !r.config.Selector.Matches(pod.Labels) || pod.Status.PodIP == "" {
		return
	}
	fqdn := r.fqdn(pod.Name)
	if r.dns.UpsertWithRetry(ctx, fqdn, pod.Status.PodIP, r.config.TTL) {
		r.log.Info("upserted A record", "fqdn", fqdn, "ip", pod.Status.PodIP)
	}
	r.ReconcileAll(ctx, ReasonPodAdded)
}

// OnPodDeleted deletes the record of a matching pod, then runs a full pass.
func (r *Reconciler) OnPodDeleted(ctx context.Context, pod *corev1.Pod) {
	if pod == nil || !r.config.Selector.Matches(pod.Labels) {
		return
	}
	fqdn := r.fqdn(pod.Name)
	if err := r.dns.Delete(ctx, fqdn); err != nil {
		r.log.Error(err, "failed to delete A record", "fqdn", fqdn)
	} else {
		r.log.Info("deleted A record", "fqdn", fqdn)
	}
	r.ReconcileAll(ctx, ReasonPodDeleted)
}

func (r *Reconciler) fqdn(podName string) string {
	return dns.FQDN(r.config.RecordPrefix, podName, r.config.Zone)
}
