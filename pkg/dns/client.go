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
package dns

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
)

const (
	// RecordTypeA is the only record type the controller manages.
	RecordTypeA = "A"

	changeTypeReplace = "REPLACE"
	changeTypeDelete  = "DELETE"

	apiKeyHeader = "X-API-Key"

	DefaultTimeout       = 10 * time.Second
	DefaultReadyTimeout  = 5 * time.Second
	DefaultRetryAttempts = 6
	DefaultRetryBackoff  = 2 * time.Second

	// maxErrorBody bounds how much of an error response is kept in Error.Body.
	maxErrorBody = 4096
)

// Config holds the settings of a PowerDNS API client.
type Config struct {
	// BaseURL is the API root, e.g. http://powerdns-api:8081.
	BaseURL  string
	APIKey   string
	ServerID string
	// Zone is the fully qualified zone name, including the trailing dot.
	Zone string

	InsecureSkipVerify bool
	Timeout            time.Duration
	ReadyTimeout       time.Duration
	// QPS limits the request rate against the API. Zero disables limiting.
	QPS float64

	RetryAttempts int
	RetryBackoff  time.Duration
}

// Client talks to the PowerDNS authoritative HTTP API. It holds no per-request
// state and is safe for concurrent use.
type Client struct {
	log        logr.Logger
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient returns a Client for cfg. Zero durations and attempt counts fall
// back to the package defaults.
func NewClient(log logr.Logger, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	limit := rate.Inf
	if cfg.QPS > 0 {
		limit = rate.Limit(cfg.QPS)
	}

	return &Client{
		log:        log.WithName("dns"),
		cfg:        cfg,
		httpClient: &http.Client{Transport: transport},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type rrset struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	TTL        int      `json:"ttl,omitempty"`
	ChangeType string   `json:"changetype"`
	Records    []record `json:"records,omitempty"`
}

type record struct {
	Content  string `json:"content"`
	Disabled bool   `json:"disabled"`
}

type zonePatch struct {
	RRSets []rrset `json:"rrsets"`
}

func (c *Client) serverURL() string {
	return fmt.Sprintf("%s/api/v1/servers/%s", c.cfg.BaseURL, url.PathEscape(c.cfg.ServerID))
}

func (c *Client) zoneURL() string {
	return fmt.Sprintf("%s/zones/%s", c.serverURL(), url.PathEscape(c.cfg.Zone))
}

// IsReady reports whether the API answers the server info endpoint with 200.
// Any failure is reported as not ready.
func (c *Client) IsReady(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.do(ctx, http.MethodGet, c.serverURL(), nil)
	if err != nil {
		observe(operationReady, start, err)
		c.log.V(1).Info("dns api not reachable", "error", err.Error())
		return false
	}
	defer drain(resp)

	ready := resp.StatusCode == http.StatusOK
	if !ready {
		observe(operationReady, start, fmt.Errorf("status %d", resp.StatusCode))
		c.log.V(1).Info("dns api not ready", "status", resp.StatusCode)
		return false
	}
	observe(operationReady, start, nil)
	return true
}

// Upsert creates or replaces the A record for fqdn.
func (c *Client) Upsert(ctx context.Context, fqdn, ip string, ttl int) error {
	start := time.Now()
	err := c.patch(ctx, operationUpsert, fqdn, zonePatch{
		RRSets: []rrset{{
			Name:       fqdn,
			Type:       RecordTypeA,
			TTL:        ttl,
			ChangeType: changeTypeReplace,
			Records:    []record{{Content: ip, Disabled: false}},
		}},
	})
	observe(operationUpsert, start, err)
	return err
}

// Delete removes the A record for fqdn. Deleting a record that does not exist
// is not an error.
func (c *Client) Delete(ctx context.Context, fqdn string) error {
	start := time.Now()
	err := c.patch(ctx, operationDelete, fqdn, zonePatch{
		RRSets: []rrset{{
			Name:       fqdn,
			Type:       RecordTypeA,
			ChangeType: changeTypeDelete,
		}},
	})
	var dnsErr *Error
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound() {
		err = nil
	}
	observe(operationDelete, start, err)
	return err
}

func (c *Client) patch(ctx context.Context, op, fqdn string, body zonePatch) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload for %s: %w", op, fqdn, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPatch, c.zoneURL(), payload)
	if err != nil {
		return fmt.Errorf("dns %s %s: %w", op, fqdn, err)
	}
	defer drain(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Operation:  op,
			FQDN:       fqdn,
			StatusCode: resp.StatusCode,
			Body:       string(b),
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, payload []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// FQDN builds the record name for a pod: the prefixed pod name, stripped of
// leading and trailing dots, followed by the zone.
func FQDN(prefix, podName, zone string) string {
	return strings.Trim(prefix+podName, ".") + "." + zone
}
