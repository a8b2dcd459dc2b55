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
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/kro-run/peerdns/pkg/controller/peers"
	"github.com/kro-run/peerdns/pkg/dns"
	"github.com/kro-run/peerdns/pkg/selector"
	"github.com/kro-run/peerdns/pkg/sink"
)

// Environment variable names.
const (
	EnvAPIURL            = "PDNS_API_URL"
	EnvAPIKey            = "PDNS_API_KEY"
	EnvServerID          = "PDNS_SERVER_ID"
	EnvAPIQPS            = "PDNS_API_QPS"
	EnvZone              = "DNS_ZONE"
	EnvTTL               = "DNS_TTL"
	EnvRecordPrefix      = "DNS_RECORD_PREFIX"
	EnvLabelSelector     = "SOURCE_LABEL_SELECTOR"
	EnvConfigMapNS       = "CONFIGMAP_NAMESPACE"
	EnvConfigMapName     = "CONFIGMAP_NAME"
	EnvJSONKey           = "CONFIG_FILE_JSON"
	EnvListKey           = "CONFIG_FILE_LIST"
	EnvAnnotationKey     = "CONFIG_ANNOTATION_BUMP"
	EnvVerifySSL         = "VERIFY_SSL"
	EnvReconcileInterval = "RECONCILE_INTERVAL_SEC"
	EnvWatchNamespaces   = "WATCH_NAMESPACES"
)

var defaults = map[string]interface{}{
	EnvAPIURL:            "http://powerdns-api.default.svc.cluster.local:8081",
	EnvAPIKey:            "changeme",
	EnvServerID:          "localhost",
	EnvAPIQPS:            0,
	EnvZone:              "example.com.",
	EnvTTL:               30,
	EnvRecordPrefix:      "",
	EnvLabelSelector:     "dns=true",
	EnvConfigMapNS:       "default",
	EnvConfigMapName:     "pod-peers",
	EnvJSONKey:           "peers.json",
	EnvListKey:           "peers.txt",
	EnvAnnotationKey:     "peers.lastUpdate",
	EnvVerifySSL:         false,
	EnvReconcileInterval: 30,
	EnvWatchNamespaces:   "",
}

// Config is the process configuration. It is built once at startup and
// never mutated afterwards.
type Config struct {
	APIURL    string
	APIKey    string
	ServerID  string
	APIQPS    float64
	VerifySSL bool

	// Zone always ends with a dot.
	Zone         string
	TTL          int
	RecordPrefix string

	Selector selector.Selector

	ConfigMapNamespace string
	ConfigMapName      string
	JSONKey            string
	ListKey            string
	AnnotationKey      string

	ReconcileInterval time.Duration
	// WatchNamespaces is empty when every namespace is watched.
	WatchNamespaces []string
}

// Load reads the configuration from v, binding every known key to its
// environment variable. Unset variables take their defaults.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := Config{
		APIURL:             v.GetString(EnvAPIURL),
		APIKey:             v.GetString(EnvAPIKey),
		ServerID:           v.GetString(EnvServerID),
		APIQPS:             v.GetFloat64(EnvAPIQPS),
		VerifySSL:          v.GetBool(EnvVerifySSL),
		Zone:               NormalizeZone(v.GetString(EnvZone)),
		TTL:                v.GetInt(EnvTTL),
		RecordPrefix:       v.GetString(EnvRecordPrefix),
		Selector:           selector.Parse(v.GetString(EnvLabelSelector)),
		ConfigMapNamespace: v.GetString(EnvConfigMapNS),
		ConfigMapName:      v.GetString(EnvConfigMapName),
		JSONKey:            v.GetString(EnvJSONKey),
		ListKey:            v.GetString(EnvListKey),
		AnnotationKey:      v.GetString(EnvAnnotationKey),
		ReconcileInterval:  time.Duration(v.GetInt(EnvReconcileInterval)) * time.Second,
		WatchNamespaces:    SplitNamespaces(v.GetString(EnvWatchNamespaces)),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs *multierror.Error

	if u, err := url.Parse(c.APIURL); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", EnvAPIURL, err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s: %q is not an http(s) URL", EnvAPIURL, c.APIURL))
	}
	if c.ServerID == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s: must not be empty", EnvServerID))
	}
	if c.APIQPS < 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s: must not be negative", EnvAPIQPS))
	}
	if c.Zone == "" || c.Zone == "." {
		errs = multierror.Append(errs, fmt.Errorf("%s: must not be empty", EnvZone))
	}
	if c.TTL <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s: must be positive, got %d", EnvTTL, c.TTL))
	}
	if c.ConfigMapName == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s: must not be empty", EnvConfigMapName))
	}
	if c.ConfigMapNamespace == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s: must not be empty", EnvConfigMapNS))
	}
	if c.JSONKey == "" || c.ListKey == "" {
		errs = multierror.Append(errs, errors.New("configmap data keys must not be empty"))
	} else if c.JSONKey == c.ListKey {
		errs = multierror.Append(errs, fmt.Errorf("%s and %s must differ", EnvJSONKey, EnvListKey))
	}
	if c.ReconcileInterval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s: must be positive", EnvReconcileInterval))
	}

	return errs.ErrorOrNil()
}

// NormalizeZone appends the trailing dot of a fully qualified zone name.
func NormalizeZone(zone string) string {
	zone = strings.TrimSpace(zone)
	if zone == "" || strings.HasSuffix(zone, ".") {
		return zone
	}
	return zone + "."
}

// SplitNamespaces parses a comma separated namespace list. Blank entries
// are dropped; nil means all namespaces.
func SplitNamespaces(s string) []string {
	var namespaces []string
	for _, ns := range strings.Split(s, ",") {
		if ns = strings.TrimSpace(ns); ns != "" {
			namespaces = append(namespaces, ns)
		}
	}
	return namespaces
}

// DNS returns the PowerDNS client settings.
func (c Config) DNS() dns.Config {
	return dns.Config{
		BaseURL:            c.APIURL,
		APIKey:             c.APIKey,
		ServerID:           c.ServerID,
		Zone:               c.Zone,
		InsecureSkipVerify: !c.VerifySSL,
		QPS:                c.APIQPS,
	}
}

// Sink returns the ConfigMap sink settings.
func (c Config) Sink() sink.Config {
	return sink.Config{
		Name:          c.ConfigMapName,
		Namespace:     c.ConfigMapNamespace,
		JSONKey:       c.JSONKey,
		ListKey:       c.ListKey,
		AnnotationKey: c.AnnotationKey,
	}
}

// Reconciler returns the reconciler settings.
func (c Config) Reconciler() peers.Config {
	return peers.Config{
		Selector:     c.Selector,
		Zone:         c.Zone,
		RecordPrefix: c.RecordPrefix,
		TTL:          c.TTL,
		Interval:     c.ReconcileInterval,
	}
}
