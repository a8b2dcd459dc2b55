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
package metadata

import (
	"errors"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// DomainName is the prefix of every label owned by the controller.
	DomainName = "peerdns.kro.run"

	LabelPrefix = DomainName + "/"
)

const (
	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "peerdns"

	OwnedLabel           = LabelPrefix + "owned"
	VersionLabel         = LabelPrefix + "version"
	ControllerPodIDLabel = LabelPrefix + "controller-pod-id"
)

// IsOwned returns true if the resource carries the owned label set to true.
func IsOwned(meta metav1.Object) bool {
	v, ok := meta.GetLabels()[OwnedLabel]
	return ok && booleanFromString(v)
}

var (
	ErrDuplicatedLabels = errors.New("duplicate labels")
)

var _ Labeler = GenericLabeler{}

// Labeler is an interface that defines a set of labels that can be
// applied to a resource.
type Labeler interface {
	Labels() map[string]string
	ApplyLabels(metav1.Object)
	Merge(Labeler) (Labeler, error)
}

// GenericLabeler is a map of labels that can be applied to a resource.
// It implements the Labeler interface.
type GenericLabeler map[string]string

// Labels returns the labels.
func (gl GenericLabeler) Labels() map[string]string {
	return gl
}

// ApplyLabels applies the labels to the resource.
func (gl GenericLabeler) ApplyLabels(meta metav1.Object) {
	for k, v := range gl {
		setLabel(meta, k, v)
	}
}

// Merge merges the labels from the other labeler into the current
// labeler. If there are any duplicate keys, an error is returned.
func (gl GenericLabeler) Merge(other Labeler) (Labeler, error) {
	newLabels := gl.Copy()
	for k, v := range other.Labels() {
		if _, ok := newLabels[k]; ok {
			return nil, fmt.Errorf("%w: found key '%s' in both maps", ErrDuplicatedLabels, k)
		}
		newLabels[k] = v
	}
	return GenericLabeler(newLabels), nil
}

// Copy returns a copy of the labels.
func (gl GenericLabeler) Copy() map[string]string {
	newGenericLabeler := map[string]string{}
	for k, v := range gl {
		newGenericLabeler[k] = v
	}
	return newGenericLabeler
}

// NewManagedByLabeler returns a labeler that marks a resource as managed and
// owned by the controller.
func NewManagedByLabeler() GenericLabeler {
	return map[string]string{
		ManagedByLabel: ManagedByValue,
		OwnedLabel:     "true",
	}
}

// NewControllerLabeler returns a labeler with the controller version and the
// name of the pod running it. Empty values are left out.
func NewControllerLabeler(version, controllerPodID string) GenericLabeler {
	gl := GenericLabeler{}
	if version != "" {
		gl[VersionLabel] = version
	}
	if controllerPodID != "" {
		gl[ControllerPodIDLabel] = controllerPodID
	}
	return gl
}

func booleanFromString(s string) bool {
	// for the sake of simplicy we'll avoid doing any kind
	// of parsing here. Since those labels are set by the controller
	// it self. We'll expect the same values back.
	return s == "true"
}

// Helper function to set a label
func setLabel(meta metav1.Object, key, value string) {
	labels := meta.GetLabels()
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[key] = value
	meta.SetLabels(labels)
}

// SetAnnotation sets a single annotation on the resource.
func SetAnnotation(meta metav1.Object, key, value string) {
	annotations := meta.GetAnnotations()
	if annotations == nil {
		annotations = make(map[string]string)
	}
	annotations[key] = value
	meta.SetAnnotations(annotations)
}
