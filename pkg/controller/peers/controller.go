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
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/manager"
)

// Runner is a long running component stopped by cancelling its context.
type Runner interface {
	Run(ctx context.Context) error
}

// Controller ties the reconciler to its three triggers: the startup pass,
// the periodic timer and the pod event dispatcher.
type Controller struct {
	log        logr.Logger
	reconciler *Reconciler
	dispatcher Runner
	interval   time.Duration
}

var (
	_ manager.Runnable               = &Controller{}
	_ manager.LeaderElectionRunnable = &Controller{}
)

// NewController returns a Controller. dispatcher is usually a
// *watcher.Dispatcher built with the reconciler as its handler.
func NewController(log logr.Logger, reconciler *Reconciler, dispatcher Runner, interval time.Duration) *Controller {
	return &Controller{
		log:        log.WithName("controller"),
		reconciler: reconciler,
		dispatcher: dispatcher,
		interval:   interval,
	}
}

// Start runs the controller until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Info("starting peerdns controller", "interval", c.interval.String())
	defer c.log.Info("stopped peerdns controller")

	var g wait.Group
	defer g.Wait()

	g.StartWithContext(ctx, func(ctx context.Context) {
		c.reconciler.RunPeriodic(ctx, c.interval)
	})

	c.reconciler.ReconcileAll(ctx, ReasonStartup)

	return c.dispatcher.Run(ctx)
}

// NeedLeaderElection returns false: a single live instance is assumed.
func (c *Controller) NeedLeaderElection() bool {
	return false
}

// RunPeriodic runs a full pass every interval while the DNS API is ready.
// When it is not, the tick is skipped without listing pods or touching the
// sink. The first tick fires one interval after the call.
func (r *Reconciler) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.periodicTick(ctx)
		}
	}
}

func (r *Reconciler) periodicTick(ctx context.Context) {
	if !r.dns.IsReady(ctx) {
		r.log.V(1).Info("dns api not ready, skipping periodic reconciliation")
		periodicSkippedTotal.Inc()
		return
	}
	r.ReconcileAll(ctx, ReasonPeriodic)
}
