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
package k8s

import (
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

// NewFakeClientset returns a fake clientset seeded with objects.
func NewFakeClientset(objects ...runtime.Object) *fake.Clientset {
	return fake.NewSimpleClientset(objects...)
}

// NewWatchingClientset returns a fake clientset whose pod watches are served
// from the returned FakeWatcher. Every call to Watch gets the same watcher,
// so a test can stop it to simulate a dropped stream.
func NewWatchingClientset(objects ...runtime.Object) (*fake.Clientset, *watch.FakeWatcher) {
	cs := fake.NewSimpleClientset(objects...)
	w := watch.NewFake()
	cs.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(w, nil))
	return cs, w
}

// WatchFunc serves every pod watch from next. It lets a test hand out a fresh
// watcher per connection.
func WatchFunc(cs *fake.Clientset, next func() (watch.Interface, error)) {
	cs.PrependWatchReactor("pods", func(action k8stesting.Action) (bool, watch.Interface, error) {
		w, err := next()
		return true, w, err
	})
}
