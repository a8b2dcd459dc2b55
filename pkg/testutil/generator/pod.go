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
package generator

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PodOption is a functional option for Pod
type PodOption func(*corev1.Pod)

// NewPod creates a new Pod with the given name, namespace and options
func NewPod(name, namespace string, opts ...PodOption) *corev1.Pod {
	pod := &corev1.Pod{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Pod",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
	}

	for _, opt := range opts {
		opt(pod)
	}
	return pod
}

// WithLabels merges the given labels into the Pod labels
func WithLabels(labels map[string]string) PodOption {
	return func(pod *corev1.Pod) {
		if pod.Labels == nil {
			pod.Labels = map[string]string{}
		}
		for k, v := range labels {
			pod.Labels[k] = v
		}
	}
}

// WithIP sets the Pod IP reported in the status
func WithIP(ip string) PodOption {
	return func(pod *corev1.Pod) {
		pod.Status.PodIP = ip
		if ip != "" {
			pod.Status.PodIPs = []corev1.PodIP{{IP: ip}}
			pod.Status.Phase = corev1.PodRunning
		}
	}
}

// WithContainer appends a container, required by a real API server
func WithContainer(name, image string) PodOption {
	return func(pod *corev1.Pod) {
		pod.Spec.Containers = append(pod.Spec.Containers, corev1.Container{
			Name:  name,
			Image: image,
		})
	}
}
