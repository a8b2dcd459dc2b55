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
package client

import (
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	ctrlrtconfig "sigs.k8s.io/controller-runtime/pkg/client/config"
)

const (
	DefaultQPS   float32 = 20
	DefaultBurst         = 40

	// DefaultRequestTimeout bounds a single non-watch API request. It is
	// applied per call through the context; rest.Config.Timeout stays unset
	// so watches are not cut off.
	DefaultRequestTimeout = 10 * time.Second
)

// Set holds the Kubernetes clients the controller needs
type Set struct {
	config     *rest.Config
	kubernetes *kubernetes.Clientset
}

// Config holds configuration for client creation
type Config struct {
	// RestConfig overrides discovery of the in-cluster or kubeconfig
	// settings.
	RestConfig *rest.Config
	QPS        float32
	Burst      int
	// Version is reported in the user agent.
	Version string
}

// NewSet creates a new client Set with the given config
func NewSet(cfg Config) (*Set, error) {
	var err error
	config := cfg.RestConfig

	if config == nil {
		config, err = ctrlrtconfig.GetConfig()
		if err != nil {
			return nil, err
		}
	}
	config = rest.CopyConfig(config)

	if config.QPS == 0 {
		config.QPS = cfg.QPS
	}
	if config.QPS == 0 {
		config.QPS = DefaultQPS
	}
	if config.Burst == 0 {
		config.Burst = cfg.Burst
	}
	if config.Burst == 0 {
		config.Burst = DefaultBurst
	}
	config.UserAgent = UserAgent(cfg.Version)

	c := &Set{config: config}
	c.kubernetes, err = kubernetes.NewForConfig(c.config)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UserAgent returns the user agent sent with every API request.
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return "peerdns/" + version
}

// Kubernetes returns the standard Kubernetes clientset
func (c *Set) Kubernetes() kubernetes.Interface {
	return c.kubernetes
}

// RESTConfig returns a copy of the underlying REST config
func (c *Set) RESTConfig() *rest.Config {
	return rest.CopyConfig(c.config)
}
