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
package peers_test

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kro-run/peerdns/pkg/controller/peers"
	"github.com/kro-run/peerdns/pkg/dns"
	"github.com/kro-run/peerdns/pkg/metadata"
	"github.com/kro-run/peerdns/pkg/selector"
	"github.com/kro-run/peerdns/pkg/sink"
	"github.com/kro-run/peerdns/pkg/testutil/generator"
	"github.com/kro-run/peerdns/pkg/testutil/k8s"
	"github.com/kro-run/peerdns/pkg/testutil/powerdns"
	"github.com/kro-run/peerdns/pkg/watcher"
)

const zone = "example.com."

var sinkConfig = sink.Config{
	Name:          "pod-peers",
	Namespace:     "default",
	JSONKey:       "peers.json",
	ListKey:       "peers.txt",
	AnnotationKey: "peers.lastUpdate",
}

var dnsLabels = map[string]string{"dns": "true"}

func matchingPod(namespace, name, ip string) *corev1.Pod {
	return generator.NewPod(name, namespace, generator.WithLabels(dnsLabels), generator.WithIP(ip))
}

var _ = Describe("Reconciler", func() {
	var (
		ctx        context.Context
		clientset  *fake.Clientset
		server     *powerdns.Server
		reconciler *peers.Reconciler
	)

	newReconciler := func() *peers.Reconciler {
		dnsClient := dns.NewClient(logr.Discard(), dns.Config{
			BaseURL:       server.URL,
			APIKey:        powerdns.APIKey,
			ServerID:      powerdns.ServerID,
			Zone:          zone,
			RetryAttempts: 3,
			RetryBackoff:  time.Millisecond,
		})
		return peers.NewReconciler(
			logr.Discard(),
			peers.NewPodLister(clientset, nil),
			dnsClient,
			sink.NewConfigMapSink(logr.Discard(), clientset, sinkConfig, metadata.NewManagedByLabeler()),
			peers.Config{
				Selector: selector.Parse("dns=true"),
				Zone:     zone,
				TTL:      30,
				Interval: time.Hour,
			},
		)
	}

	sinkData := func() map[string]string {
		cm, err := clientset.CoreV1().ConfigMaps("default").Get(ctx, "pod-peers", metav1.GetOptions{})
		Expect(err).NotTo(HaveOccurred())
		return cm.Data
	}

	peerList := func() string {
		cm, err := clientset.CoreV1().ConfigMaps("default").Get(ctx, "pod-peers", metav1.GetOptions{})
		if err != nil {
			return "<missing>"
		}
		return cm.Data["peers.txt"]
	}

	BeforeEach(func() {
		ctx = context.Background()
		server = powerdns.NewServer(zone)
		DeferCleanup(server.Close)
	})

	Context("with two matching pods", func() {
		BeforeEach(func() {
			clientset = k8s.NewFakeClientset(
				matchingPod("a", "p2", "10.0.0.2"),
				matchingPod("a", "p1", "10.0.0.1"),
				generator.NewPod("unlabeled", "a", generator.WithIP("10.0.0.9")),
			)
			reconciler = newReconciler()
		})

		It("publishes the peers and upserts one record per pod", func() {
			reconciler.ReconcileAll(ctx, peers.ReasonStartup)

			data := sinkData()
			Expect(data["peers.txt"]).To(Equal("10.0.0.1\n10.0.0.2\n"))
			Expect(data["peers.json"]).To(ContainSubstring(`"name": "p1"`))
			Expect(data["peers.json"]).NotTo(ContainSubstring("unlabeled"))

			Expect(server.Records()).To(Equal(map[string]powerdns.Record{
				"p1.example.com.": {IP: "10.0.0.1", TTL: 30},
				"p2.example.com.": {IP: "10.0.0.2", TTL: 30},
			}))
			Expect(server.UpsertCalls()).To(Equal(2))
		})

		It("converges to the same state when run twice", func() {
			reconciler.ReconcileAll(ctx, peers.ReasonStartup)
			first := sinkData()
			records := server.Records()

			reconciler.ReconcileAll(ctx, peers.ReasonPeriodic)
			Expect(sinkData()).To(Equal(first))
			Expect(server.Records()).To(Equal(records))
		})

		It("still publishes the sink when the DNS API is down", func() {
			server.SetReady(false)
			reconciler.ReconcileAll(ctx, peers.ReasonStartup)

			Expect(sinkData()["peers.txt"]).To(Equal("10.0.0.1\n10.0.0.2\n"))
			Expect(server.Changes()).To(BeEmpty())
		})

		It("retries failed upserts within a pass", func() {
			server.FailUpserts(2)
			reconciler.ReconcileAll(ctx, peers.ReasonStartup)

			Expect(server.Records()).To(HaveLen(2))
			Expect(server.UpsertCalls()).To(Equal(4))
		})
	})

	Context("when a pod is deleted", func() {
		BeforeEach(func() {
			clientset = k8s.NewFakeClientset(
				matchingPod("a", "p1", "10.0.0.1"),
				matchingPod("a", "p2", "10.0.0.2"),
			)
			reconciler = newReconciler()
			reconciler.ReconcileAll(ctx, peers.ReasonStartup)
			Expect(server.Records()).To(HaveLen(2))
		})

		It("deletes its record and drops it from the sink", func() {
			gone := matchingPod("a", "p2", "10.0.0.2")
			Expect(clientset.CoreV1().Pods("a").Delete(ctx, "p2", metav1.DeleteOptions{})).To(Succeed())

			reconciler.OnPodDeleted(ctx, gone)

			Expect(server.Changes()).To(ContainElement(powerdns.Change{
				Name:       "p2.example.com.",
				ChangeType: "DELETE",
			}))
			Expect(server.Records()).To(HaveKey("p1.example.com."))
			Expect(server.Records()).NotTo(HaveKey("p2.example.com."))

			data := sinkData()
			Expect(data["peers.txt"]).To(Equal("10.0.0.1\n"))
			Expect(data["peers.json"]).NotTo(ContainSubstring("p2"))
		})

		It("tolerates deleting a record that is already gone", func() {
			gone := matchingPod("a", "ghost", "10.0.0.3")
			reconciler.OnPodDeleted(ctx, gone)

			Expect(sinkData()["peers.txt"]).To(Equal("10.0.0.1\n10.0.0.2\n"))
		})
	})

	Context("with no matching pods", func() {
		BeforeEach(func() {
			clientset = k8s.NewFakeClientset(
				generator.NewPod("unlabeled", "a", generator.WithIP("10.0.0.9")),
			)
			reconciler = newReconciler()
		})

		It("publishes empty encodings and makes no DNS changes", func() {
			reconciler.ReconcileAll(ctx, peers.ReasonStartup)

			data := sinkData()
			Expect(data["peers.txt"]).To(Equal(""))
			Expect(data["peers.json"]).To(Equal("[]"))
			Expect(server.Changes()).To(BeEmpty())
		})
	})

	Context("driven by the watch dispatcher", func() {
		It("reacts to pod events", func() {
			var fw *watch.FakeWatcher
			clientset, fw = k8s.NewWatchingClientset()
			reconciler = newReconciler()
			dispatcher := watcher.NewDispatcher(logr.Discard(), clientset, reconciler, watcher.Config{
				Backoff: wait.Backoff{Duration: time.Millisecond, Factor: 1, Steps: 100},
			})
			controller := peers.NewController(logr.Discard(), reconciler, dispatcher, time.Hour)

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- controller.Start(runCtx) }()
			DeferCleanup(func() {
				cancel()
				Eventually(done, 5*time.Second).Should(Receive(BeNil()))
			})

			pod := matchingPod("a", "p1", "10.0.0.1")
			_, err := clientset.CoreV1().Pods("a").Create(ctx, pod, metav1.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())
			fw.Add(pod)

			Eventually(server.Records, 5*time.Second).Should(HaveKey("p1.example.com."))
			Eventually(peerList, 5*time.Second).Should(Equal("10.0.0.1\n"))

			Expect(clientset.CoreV1().Pods("a").Delete(ctx, "p1", metav1.DeleteOptions{})).To(Succeed())
			fw.Delete(pod)

			Eventually(server.Records, 5*time.Second).ShouldNot(HaveKey("p1.example.com."))
			Eventually(peerList, 5*time.Second).Should(Equal(""))
		})
	})
})
