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
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/release-utils/version"

	"github.com/kro-run/peerdns/pkg/client"
	"github.com/kro-run/peerdns/pkg/config"
	"github.com/kro-run/peerdns/pkg/controller/peers"
	"github.com/kro-run/peerdns/pkg/dns"
	"github.com/kro-run/peerdns/pkg/metadata"
	"github.com/kro-run/peerdns/pkg/sink"
	"github.com/kro-run/peerdns/pkg/watcher"
)

var setupLog = ctrl.Log.WithName("setup")

type customLevelEnabler struct {
	level int
}

func (c customLevelEnabler) Enabled(lvl zapcore.Level) bool {
	return -int(lvl) <= c.level
}

type options struct {
	metricsAddr string
	probeAddr   string
	logLevel    int
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "peerdns-controller",
		Short: "Keep PowerDNS A records and a peer list ConfigMap in sync with labeled pods",
		Long: `peerdns-controller watches pods matching SOURCE_LABEL_SELECTOR and publishes
one A record per pod to a PowerDNS zone, plus the full peer list to a ConfigMap.
Settings are read from the environment.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-bind-address", ":8078", "The address the metric endpoint binds to.")
	cmd.Flags().StringVar(&opts.probeAddr, "health-probe-bind-address", ":8079", "The address the probe endpoint binds to.")
	cmd.Flags().IntVar(&opts.logLevel, "log-level", 2, "The log level verbosity. 0 is the least verbose, 5 is the most verbose.")

	cmd.AddCommand(version.Version())
	return cmd
}

func run(opts *options) error {
	rootLogger := zap.New(zap.UseFlagOptions(&zap.Options{
		Development: true,
		Level:       customLevelEnabler{level: opts.logLevel},
		TimeEncoder: zapcore.ISO8601TimeEncoder,
	}))
	ctrl.SetLogger(rootLogger)
	klog.SetLogger(rootLogger)

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		setupLog.Error(err, "invalid configuration")
		return err
	}
	gitVersion := version.GetVersionInfo().GitVersion
	setupLog.Info("configuration loaded",
		"version", gitVersion,
		"zone", cfg.Zone,
		"selector", cfg.Selector.String(),
		"configmap", cfg.ConfigMapNamespace+"/"+cfg.ConfigMapName,
		"namespaces", cfg.WatchNamespaces,
		"interval", cfg.ReconcileInterval.String(),
	)

	if cfg.Selector.Empty() {
		setupLog.Info("label selector is empty, every pod with an IP is a peer")
	}

	set, err := client.NewSet(client.Config{Version: gitVersion})
	if err != nil {
		setupLog.Error(err, "unable to create clients")
		return err
	}

	mgr, err := ctrl.NewManager(set.RESTConfig(), ctrl.Options{
		Metrics: metricsserver.Options{
			BindAddress: opts.metricsAddr,
		},
		HealthProbeBindAddress: opts.probeAddr,
		// a single replica is expected; every write is a full replace
		LeaderElection: false,
	})
	if err != nil {
		setupLog.Error(err, "unable to create manager")
		return err
	}

	labeler, err := sinkLabeler(gitVersion, os.Getenv("POD_NAME"))
	if err != nil {
		setupLog.Error(err, "unable to build configmap labels")
		return err
	}

	kube := set.Kubernetes()
	dnsClient := dns.NewClient(rootLogger, cfg.DNS())
	reconciler := peers.NewReconciler(
		rootLogger,
		peers.NewPodLister(kube, cfg.WatchNamespaces),
		dnsClient,
		sink.NewConfigMapSink(rootLogger, kube, cfg.Sink(), labeler),
		cfg.Reconciler(),
	)
	dispatcher := watcher.NewDispatcher(rootLogger, kube, reconciler, watcher.Config{
		Namespaces: cfg.WatchNamespaces,
	})
	if err := mgr.Add(peers.NewController(rootLogger, reconciler, dispatcher, cfg.ReconcileInterval)); err != nil {
		setupLog.Error(err, "unable to add controller", "controller", "peers")
		return err
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		return err
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		return err
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		return err
	}
	return nil
}

// sinkLabeler returns the labels stamped on the peer ConfigMap. Values that
// are not valid label values are left out.
func sinkLabeler(gitVersion, podID string) (metadata.Labeler, error) {
	if len(validation.IsValidLabelValue(gitVersion)) > 0 {
		gitVersion = ""
	}
	if len(validation.IsValidLabelValue(podID)) > 0 {
		podID = ""
	}
	labeler, err := metadata.NewManagedByLabeler().Merge(metadata.NewControllerLabeler(gitVersion, podID))
	if err != nil {
		return nil, fmt.Errorf("failed to merge labels: %w", err)
	}
	return labeler, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
