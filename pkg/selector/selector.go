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
package selector

import "strings"

// clause is a single term of a selector. An empty value with hasValue unset
// is an existence check.
type clause struct {
	key      string
	value    string
	hasValue bool
}

// Selector is a parsed conjunction of equality (key=value) and existence
// (key) clauses. The zero value matches every label set.
type Selector struct {
	clauses []clause
}

// Parse parses a comma separated selector expression. Empty clauses are
// skipped; there is no negation and no set-based syntax.
func Parse(s string) Selector {
	var sel Selector
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			sel.clauses = append(sel.clauses, clause{
				key:      strings.TrimSpace(k),
				value:    strings.TrimSpace(v),
				hasValue: true,
			})
			continue
		}
		sel.clauses = append(sel.clauses, clause{key: part})
	}
	return sel
}

// Matches reports whether every clause of the selector is satisfied by
// labels.
func (s Selector) Matches(labels map[string]string) bool {
	for _, c := range s.clauses {
		v, ok := labels[c.key]
		if !ok {
			return false
		}
		if c.hasValue && v != c.value {
			return false
		}
	}
	return true
}

// Empty reports whether the selector has no clauses.
func (s Selector) Empty() bool {
	return len(s.clauses) == 0
}

// String returns the normalized expression, with blank clauses and
// surrounding whitespace removed. It is valid API server selector syntax for
// the clauses Parse accepts.
func (s Selector) String() string {
	parts := make([]string, 0, len(s.clauses))
	for _, c := range s.clauses {
		if c.hasValue {
			parts = append(parts, c.key+"="+c.value)
			continue
		}
		parts = append(parts, c.key)
	}
	return strings.Join(parts, ",")
}

// Matches parses selector and evaluates it against labels.
func Matches(labels map[string]string, selector string) bool {
	return Parse(selector).Matches(labels)
}
