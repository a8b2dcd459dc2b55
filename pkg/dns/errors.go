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
	"fmt"
	"strings"
)

// Error is returned when the DNS API answers a change request with a status
// code of 400 or above.
type Error struct {
	Operation  string
	FQDN       string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("dns %s %s failed with status %d: %s", e.Operation, e.FQDN, e.StatusCode, e.Body)
}

// IsNotFound reports whether the API body says the record or rrset does not
// exist.
func (e *Error) IsNotFound() bool {
	if e == nil {
		return false
	}
	return strings.Contains(strings.ToLower(e.Body), "not found")
}

var _ error = &Error{}
