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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	cases := []struct {
		name     string
		labels   map[string]string
		selector string
		expected bool
	}{
		{
			name:     "empty selector matches everything",
			labels:   map[string]string{"app": "web"},
			selector: "",
			expected: true,
		},
		{
			name:     "empty selector matches nil labels",
			labels:   nil,
			selector: "",
			expected: true,
		},
		{
			name:     "single equality clause",
			labels:   map[string]string{"dns": "true"},
			selector: "dns=true",
			expected: true,
		},
		{
			name:     "single equality clause with different value",
			labels:   map[string]string{"dns": "false"},
			selector: "dns=true",
			expected: false,
		},
		{
			name:     "equality clause with missing key",
			labels:   map[string]string{"app": "web"},
			selector: "dns=true",
			expected: false,
		},
		{
			name:     "equality clause matching empty value",
			labels:   map[string]string{"dns": ""},
			selector: "dns=",
			expected: true,
		},
		{
			name:     "equality clause with empty value and missing key",
			labels:   map[string]string{},
			selector: "dns=",
			expected: false,
		},
		{
			name:     "existence clause",
			labels:   map[string]string{"dns": "anything"},
			selector: "dns",
			expected: true,
		},
		{
			name:     "existence clause with missing key",
			labels:   map[string]string{"app": "web"},
			selector: "dns",
			expected: false,
		},
		{
			name:     "multiple clauses all satisfied",
			labels:   map[string]string{"dns": "true", "app": "web", "tier": "edge"},
			selector: "dns=true, app=web,tier",
			expected: true,
		},
		{
			name:     "multiple clauses one failing",
			labels:   map[string]string{"dns": "true", "app": "db"},
			selector: "dns=true,app=web",
			expected: false,
		},
		{
			name:     "value split at first equals",
			labels:   map[string]string{"expr": "a=b"},
			selector: "expr=a=b",
			expected: true,
		},
		{
			name:     "empty clauses are skipped",
			labels:   map[string]string{"dns": "true"},
			selector: ",dns=true,, ,",
			expected: true,
		},
		{
			name:     "whitespace around key and value is ignored",
			labels:   map[string]string{"dns": "true"},
			selector: "  dns = true ",
			expected: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Matches(tc.labels, tc.selector))
		})
	}
}

func TestParse(t *testing.T) {
	sel := Parse("dns=true,app")
	assert.Equal(t, "dns=true,app", sel.String())
	assert.False(t, sel.Empty())
	assert.Len(t, sel.clauses, 2)
	assert.Equal(t, clause{key: "dns", value: "true", hasValue: true}, sel.clauses[0])
	assert.Equal(t, clause{key: "app"}, sel.clauses[1])

	assert.Equal(t, "a=b,c", Parse(" a = b ,, c ").String())
	assert.True(t, Parse(" , ").Empty())
	assert.Equal(t, "", Parse(" , ").String())
	assert.True(t, Selector{}.Matches(map[string]string{"a": "b"}))
}
