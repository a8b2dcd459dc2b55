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
	"fmt"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/rand"
	"k8s.io/utils/ptr"

	"github.com/kro-run/peerdns/pkg/metadata"
	"github.com/kro-run/peerdns/pkg/testutil/generator"
	"github.com/kro-run/peerdns/test/integration/environment"
)

const (
	zone     = "it.example.com."
	sinkName = "pod-peers"
)

var (
	env       *environment.Environment
	dnsLabels = map[string]string{"peerdns-it": "true"}
)

func TestPeers(t *testing.T) {
	RegisterFailHandler(Fail)
	BeforeSuite(func() {
		if os.Getenv("KUBEBUILDER_ASSETS") == "" {
			Skip("KUBEBUILDER_ASSETS is not set")
		}
		var err error
		env, err = environment.New(
			environment.ControllerConfig{
				Zone:          zone,
				Selector:      "peerdns-it=true",
				SinkNamespace: "default",
				SinkName:      sinkName,
				Interval:      2 * time.Second,
			},
		)
		Expect(err).NotTo(HaveOccurred())
	})
	AfterSuite(func() {
		if env != nil {
			Expect(env.Stop()).NotTo(HaveOccurred())
		}
	})

	RunSpecs(t, "Peers Suite")
}

// runningPod creates a labeled pod and reports ip in its status, the way a
// kubelet would once the sandbox is up.
func runningPod(ctx context.Context, namespace, name, ip string) {
	pod := generator.NewPod(name, namespace,
		generator.WithLabels(dnsLabels),
		generator.WithContainer("app", "registry.k8s.io/pause:3.9"),
	)
	created, err := env.Kubernetes.CoreV1().Pods(namespace).Create(ctx, pod, metav1.CreateOptions{})
	Expect(err).NotTo(HaveOccurred())

	created.Status.Phase = corev1.PodRunning
	created.Status.PodIP = ip
	created.Status.PodIPs = []corev1.PodIP{{IP: ip}}
	_, err = env.Kubernetes.CoreV1().Pods(namespace).UpdateStatus(ctx, created, metav1.UpdateOptions{})
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("Peers", func() {
	It("should publish records and the peer list across the pod lifecycle", func() {
		ctx := context.Background()
		namespace := fmt.Sprintf("test-%s", rand.String(5))

		ns := &corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{
				Name: namespace,
			},
		}
		Expect(env.Client.Create(ctx, ns)).To(Succeed())

		// No controller manager runs in envtest to create it
		sa := &corev1.ServiceAccount{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "default",
				Namespace: namespace,
			},
		}
		if err := env.Client.Create(ctx, sa); err != nil {
			Expect(errors.IsAlreadyExists(err)).To(BeTrue())
		}

		// The sink is created at startup even with no peers
		Eventually(func(g Gomega) {
			cm := &corev1.ConfigMap{}
			err := env.Client.Get(ctx, types.NamespacedName{Name: sinkName, Namespace: "default"}, cm)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(cm.Labels).To(HaveKeyWithValue(metadata.ManagedByLabel, metadata.ManagedByValue))
			g.Expect(cm.Annotations).To(HaveKey("peers.lastUpdate"))
		}, 20*time.Second, 250*time.Millisecond).Should(Succeed())

		runningPod(ctx, namespace, "peer-a", "10.1.0.1")
		runningPod(ctx, namespace, "peer-b", "10.1.0.2")

		// Unlabeled pods never show up
		other := generator.NewPod("unrelated", namespace,
			generator.WithContainer("app", "registry.k8s.io/pause:3.9"),
		)
		Expect(env.Client.Create(ctx, other)).To(Succeed())

		Eventually(func(g Gomega) {
			records := env.PowerDNS.Records()
			g.Expect(records).To(HaveKey("peer-a." + zone))
			g.Expect(records).To(HaveKey("peer-b." + zone))
			g.Expect(records).ToNot(HaveKey("unrelated." + zone))
			g.Expect(records["peer-a."+zone].IP).To(Equal("10.1.0.1"))

			cm := &corev1.ConfigMap{}
			err := env.Client.Get(ctx, types.NamespacedName{Name: sinkName, Namespace: "default"}, cm)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(cm.Data["peers.txt"]).To(Equal("10.1.0.1\n10.1.0.2\n"))
			g.Expect(cm.Data["peers.json"]).To(ContainSubstring(`"name": "peer-a"`))
		}, 20*time.Second, 250*time.Millisecond).Should(Succeed())

		// Deleting a pod removes its record and its entry
		Expect(env.Kubernetes.CoreV1().Pods(namespace).Delete(ctx, "peer-a", metav1.DeleteOptions{
			GracePeriodSeconds: ptr.To[int64](0),
		})).To(Succeed())

		Eventually(func(g Gomega) {
			g.Expect(env.PowerDNS.Records()).ToNot(HaveKey("peer-a." + zone))

			cm := &corev1.ConfigMap{}
			err := env.Client.Get(ctx, types.NamespacedName{Name: sinkName, Namespace: "default"}, cm)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(cm.Data["peers.txt"]).To(Equal("10.1.0.2\n"))
		}, 20*time.Second, 250*time.Millisecond).Should(Succeed())

		Expect(env.Client.Delete(ctx, ns)).To(Succeed())
	})

	It("should recreate the sink when it is deleted", func() {
		ctx := context.Background()

		cm := &corev1.ConfigMap{}
		Expect(env.Client.Get(ctx, types.NamespacedName{Name: sinkName, Namespace: "default"}, cm)).To(Succeed())
		Expect(env.Client.Delete(ctx, cm)).To(Succeed())

		// the periodic pass brings it back
		Eventually(func(g Gomega) {
			err := env.Client.Get(ctx, types.NamespacedName{Name: sinkName, Namespace: "default"}, &corev1.ConfigMap{})
			g.Expect(errors.IsNotFound(err)).To(BeFalse())
			g.Expect(err).ToNot(HaveOccurred())
		}, 20*time.Second, 250*time.Millisecond).Should(Succeed())
	})
})
