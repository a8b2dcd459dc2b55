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
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
)

// Handler receives pod lifecycle events. Implementations must not assume
// calls are serialized across scopes.
type Handler interface {
	OnPodAdded(ctx context.Context, pod *corev1.Pod)
	OnPodDeleted(ctx context.Context, pod *corev1.Pod)
}

// Config holds dispatcher settings.
type Config struct {
	// Namespaces to watch. Empty means all namespaces.
	Namespaces []string
	// Backoff is the reconnect delay policy. Zero value uses DefaultBackoff.
	Backoff wait.Backoff
}

// DefaultBackoff returns the reconnect policy: 1s doubling up to 30s with
// jitter.
func DefaultBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: time.Second,
		Factor:   2.0,
		Jitter:   0.5,
		Steps:    10,
		Cap:      30 * time.Second,
	}
}

// Dispatcher streams pod events for every watch scope and routes them to a
// Handler. A scope whose stream fails is re-established after a backoff;
// watching only stops when the context ends.
type Dispatcher struct {
	log     logr.Logger
	client  kubernetes.Interface
	handler Handler
	scopes  []string
	backoff wait.Backoff
}

// NewDispatcher returns a Dispatcher over client.
func NewDispatcher(log logr.Logger, client kubernetes.Interface, handler Handler, cfg Config) *Dispatcher {
	backoff := cfg.Backoff
	if backoff.Duration <= 0 {
		backoff = DefaultBackoff()
	}
	return &Dispatcher{
		log:     log.WithName("watcher"),
		client:  client,
		handler: handler,
		scopes:  Scopes(cfg.Namespaces),
		backoff: backoff,
	}
}

// Run watches every scope until ctx is done. It always returns nil once ctx
// is cancelled; scope failures never end Run.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("starting pod watches", "scopes", len(d.scopes))
	defer d.log.Info("stopped pod watches")

	g, ctx := errgroup.WithContext(ctx)
	for _, namespace := range d.scopes {
		g.Go(func() error {
			d.watchScope(ctx, namespace)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) watchScope(ctx context.Context, namespace string) {
	scope := ScopeName(namespace)
	log := d.log.WithValues("scope", scope)
	backoff := d.backoff

	for {
		delivered, err := d.stream(ctx, log, namespace)
		if ctx.Err() != nil {
			return
		}
		if delivered > 0 {
			backoff = d.backoff
		}
		if err != nil {
			log.Error(err, "pod watch failed, reconnecting")
		} else {
			log.V(1).Info("pod watch closed, reconnecting")
		}
		watchRestartsTotal.WithLabelValues(scope).Inc()

		t := time.NewTimer(backoff.Step())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// stream runs one watch session and returns the number of events it
// dispatched. A nil error means the server closed the stream.
func (d *Dispatcher) stream(ctx context.Context, log logr.Logger, namespace string) (int, error) {
	w, err := d.client.CoreV1().Pods(namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start pod watch: %w", err)
	}
	defer w.Stop()
	log.V(1).Info("pod watch established")

	delivered := 0
	for {
		select {
		case <-ctx.Done():
			return delivered, nil
		case event, ok := <-w.ResultChan():
			if !ok {
				return delivered, nil
			}
			if event.Type == watch.Error {
				return delivered, apierrors.FromObject(event.Object)
			}
			delivered++
			d.dispatch(ctx, log, namespace, event)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, log logr.Logger, namespace string, event watch.Event) {
	scope := ScopeName(namespace)
	watchEventsTotal.WithLabelValues(scope, string(event.Type)).Inc()

	pod, ok := event.Object.(*corev1.Pod)
	if !ok || pod == nil {
		log.V(4).Info("ignoring non pod object", "type", event.Type, "object", fmt.Sprintf("%T", event.Object))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			handlerPanicsTotal.WithLabelValues(scope).Inc()
			log.Error(fmt.Errorf("panic: %v", r), "pod event handler panicked",
				"type", event.Type, "namespace", pod.Namespace, "name", pod.Name)
		}
	}()

	log.V(4).Info("pod event", "type", event.Type, "namespace", pod.Namespace, "name", pod.Name)
	switch event.Type {
	case watch.Added, watch.Modified:
		d.handler.OnPodAdded(ctx, pod)
	case watch.Deleted:
		d.handler.OnPodDeleted(ctx, pod)
	}
}
