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
	"context"
	"time"
)

// UpsertWithRetry calls Upsert up to the configured number of attempts,
// sleeping backoff*n after the n-th failed attempt. It returns true on the
// first success. Exhausting the attempts, or ctx ending while waiting, is
// logged and reported as false; it is never an error for the caller.
func (c *Client) UpsertWithRetry(ctx context.Context, fqdn, ip string, ttl int) bool {
	attempts, err := retryLinear(ctx, c.cfg.RetryAttempts, c.cfg.RetryBackoff, func() error {
		return c.Upsert(ctx, fqdn, ip, ttl)
	})
	if err != nil {
		retryExhaustedTotal.Inc()
		c.log.Error(err, "upsert failed after retries", "fqdn", fqdn, "ip", ip, "attempts", attempts)
		return false
	}
	if attempts > 1 {
		c.log.V(1).Info("upsert succeeded after retries", "fqdn", fqdn, "attempts", attempts)
	}
	return true
}

// retryLinear runs fn until it succeeds or attempts calls have been made.
// The wait after the n-th failure is backoff*n; there is no wait after the
// last attempt. It returns the number of calls made and the last error.
func retryLinear(ctx context.Context, attempts int, backoff time.Duration, fn func() error) (int, error) {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return i, nil
		}
		if i == attempts {
			return i, err
		}

		t := time.NewTimer(backoff * time.Duration(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return i, err
		case <-t.C:
		}
	}
	return attempts, err
}
