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
package environment

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/envtest"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics/server"

	clientset "github.com/kro-run/peerdns/pkg/client"
	"github.com/kro-run/peerdns/pkg/controller/peers"
	"github.com/kro-run/peerdns/pkg/dns"
	"github.com/kro-run/peerdns/pkg/metadata"
	"github.com/kro-run/peerdns/pkg/selector"
	"github.com/kro-run/peerdns/pkg/sink"
	"github.com/kro-run/peerdns/pkg/testutil/powerdns"
	"github.com/kro-run/peerdns/pkg/watcher"
)

type Environment struct {
	context context.Context
	cancel  context.CancelFunc

	ControllerConfig ControllerConfig
	Config           *rest.Config
	Client           client.Client
	Kubernetes       kubernetes.Interface
	TestEnv          *envtest.Environment
	CtrlManager      ctrl.Manager
	PowerDNS         *powerdns.Server
}

type ControllerConfig struct {
	Zone            string
	Selector        string
	SinkNamespace   string
	SinkName        string
	Interval        time.Duration
	WatchNamespaces []string
}

func New(controllerConfig ControllerConfig) (*Environment, error) {
	env := &Environment{
		ControllerConfig: controllerConfig,
	}

	logf.SetLogger(noopLogger())
	env.context, env.cancel = context.WithCancel(context.Background())

	env.TestEnv = &envtest.Environment{
		ControlPlaneStopTimeout: 1 * time.Minute,
	}

	cfg, err := env.TestEnv.Start()
	if err != nil {
		return nil, fmt.Errorf("starting test environment: %w", err)
	}
	env.Config = cfg

	env.PowerDNS = powerdns.NewServer(controllerConfig.Zone)

	if err := env.initializeClients(); err != nil {
		return nil, fmt.Errorf("initializing clients: %w", err)
	}

	if err := env.setupController(); err != nil {
		return nil, fmt.Errorf("setting up controller: %w", err)
	}

	return env, nil
}

func (e *Environment) initializeClients() error {
	var err error

	e.Client, err = client.New(e.Config, client.Options{Scheme: scheme.Scheme})
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	set, err := clientset.NewSet(clientset.Config{RestConfig: e.Config, Version: "integration"})
	if err != nil {
		return fmt.Errorf("creating client set: %w", err)
	}
	e.Kubernetes = set.Kubernetes()
	return nil
}

func (e *Environment) setupController() error {
	cfg := e.ControllerConfig
	log := noopLogger()

	dnsClient := dns.NewClient(log, dns.Config{
		BaseURL:       e.PowerDNS.URL,
		APIKey:        powerdns.APIKey,
		ServerID:      powerdns.ServerID,
		Zone:          cfg.Zone,
		RetryAttempts: 2,
		RetryBackoff:  10 * time.Millisecond,
	})
	reconciler := peers.NewReconciler(
		log,
		peers.NewPodLister(e.Kubernetes, cfg.WatchNamespaces),
		dnsClient,
		sink.NewConfigMapSink(log, e.Kubernetes, sink.Config{
			Name:          cfg.SinkName,
			Namespace:     cfg.SinkNamespace,
			JSONKey:       "peers.json",
			ListKey:       "peers.txt",
			AnnotationKey: "peers.lastUpdate",
		}, metadata.NewManagedByLabeler()),
		peers.Config{
			Selector: selector.Parse(cfg.Selector),
			Zone:     cfg.Zone,
			TTL:      30,
			Interval: cfg.Interval,
		},
	)
	dispatcher := watcher.NewDispatcher(log, e.Kubernetes, reconciler, watcher.Config{
		Namespaces: cfg.WatchNamespaces,
	})

	var err error
	e.CtrlManager, err = ctrl.NewManager(e.Config, ctrl.Options{
		Scheme: scheme.Scheme,
		Metrics: server.Options{
			// Disable the metrics server
			BindAddress: "0",
		},
	})
	if err != nil {
		return fmt.Errorf("creating manager: %w", err)
	}

	if err := e.CtrlManager.Add(peers.NewController(log, reconciler, dispatcher, cfg.Interval)); err != nil {
		return fmt.Errorf("adding controller: %w", err)
	}

	go func() {
		if err := e.CtrlManager.Start(e.context); err != nil {
			panic(fmt.Sprintf("failed to start manager: %v", err))
		}
	}()

	return nil
}

func (e *Environment) Stop() error {
	e.cancel()
	time.Sleep(1 * time.Second)
	e.PowerDNS.Close()
	return e.TestEnv.Stop()
}

func noopLogger() logr.Logger {
	return zap.New(zap.WriteTo(io.Discard), zap.UseDevMode(true))
}
