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

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/kro-run/peerdns/pkg/client"
	"github.com/kro-run/peerdns/pkg/watcher"
)

// PodLister lists the pods matching a label selector within the watch scope.
type PodLister interface {
	List(ctx context.Context, labelSelector string) ([]corev1.Pod, error)
}

// ClientPodLister lists pods straight from the API server, one request per
// namespace scope.
type ClientPodLister struct {
	client  kubernetes.Interface
	scopes  []string
	timeout time.Duration
}

// NewPodLister returns a lister over namespaces. An empty list means all
// namespaces.
func NewPodLister(kube kubernetes.Interface, namespaces []string) *ClientPodLister {
	return &ClientPodLister{
		client:  kube,
		scopes:  watcher.Scopes(namespaces),
		timeout: client.DefaultRequestTimeout,
	}
}

// WithTimeout sets the limit of each list request.
func (l *ClientPodLister) WithTimeout(timeout time.Duration) *ClientPodLister {
	if timeout > 0 {
		l.timeout = timeout
	}
	return l
}

// List returns the pods of every scope concatenated. Any failing scope fails
// the whole list so a partial membership is never published.
func (l *ClientPodLister) List(ctx context.Context, labelSelector string) ([]corev1.Pod, error) {
	var pods []corev1.Pod
	for _, namespace := range l.scopes {
		list, err := l.list(ctx, namespace, labelSelector)
		if err != nil {
			return nil, fmt.Errorf("failed to list pods in %s: %w", watcher.ScopeName(namespace), err)
		}
		pods = append(pods, list.Items...)
	}
	return pods, nil
}

func (l *ClientPodLister) list(ctx context.Context, namespace, labelSelector string) (*corev1.PodList, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
}
