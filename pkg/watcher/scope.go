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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const allNamespacesScope = "all-namespaces"

// Scopes returns the namespaces to open one watch for. An empty list yields a
// single all-namespaces scope. Blank and duplicate names are dropped.
func Scopes(namespaces []string) []string {
	seen := map[string]struct{}{}
	scopes := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		if ns == metav1.NamespaceAll {
			continue
		}
		if _, ok := seen[ns]; ok {
			continue
		}
		seen[ns] = struct{}{}
		scopes = append(scopes, ns)
	}
	if len(scopes) == 0 {
		return []string{metav1.NamespaceAll}
	}
	return scopes
}

// ScopeName is the display name of a scope in logs and metrics.
func ScopeName(namespace string) string {
	if namespace == metav1.NamespaceAll {
		return allNamespacesScope
	}
	return namespace
}
