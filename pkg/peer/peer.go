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
package peer

import (
	"sort"

	corev1 "k8s.io/api/core/v1"
)

// Peer is the externally relevant identity of a pod. Peers are derived from
// cluster state on every pass and never stored on their own.
type Peer struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	IP        string `json:"ip"`
}

// Project turns pods into a peer list sorted by namespace then name. Pods
// without an assigned IP are dropped. The result is never nil so that an
// empty list encodes as [] rather than null.
func Project(pods []corev1.Pod) []Peer {
	peers := make([]Peer, 0, len(pods))
	for i := range pods {
		pod := &pods[i]
		if pod.Status.PodIP == "" {
			continue
		}
		peers = append(peers, Peer{
			Name:      pod.Name,
			Namespace: pod.Namespace,
			IP:        pod.Status.PodIP,
		})
	}
	sort.SliceStable(peers, func(i, j int) bool {
		if peers[i].Namespace != peers[j].Namespace {
			return peers[i].Namespace < peers[j].Namespace
		}
		if peers[i].Name != peers[j].Name {
			return peers[i].Name < peers[j].Name
		}
		return peers[i].IP < peers[j].IP
	})
	return peers
}

// IPs returns the IP of every peer, in order.
func IPs(peers []Peer) []string {
	ips := make([]string, 0, len(peers))
	for _, p := range peers {
		ips = append(ips, p.IP)
	}
	return ips
}
