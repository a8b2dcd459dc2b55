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
package sink

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/kro-run/peerdns/pkg/client"
	"github.com/kro-run/peerdns/pkg/metadata"
	"github.com/kro-run/peerdns/pkg/peer"
)

const (
	opGet    = "get"
	opCreate = "create"
	opUpdate = "update"
	opEncode = "encode"
)

// Config names the sink ConfigMap and its keys.
type Config struct {
	Name      string
	Namespace string
	// JSONKey holds the indented JSON peer list.
	JSONKey string
	// ListKey holds the newline terminated IP list.
	ListKey string
	// AnnotationKey is stamped with the Unix time of the last write.
	AnnotationKey string
	// Timeout bounds each API request. Zero uses client.DefaultRequestTimeout.
	Timeout time.Duration
}

// ConfigMapSink publishes the peer list to a single ConfigMap. It is the
// only writer of that ConfigMap; every publish replaces the data wholesale.
type ConfigMapSink struct {
	log     logr.Logger
	client  kubernetes.Interface
	cfg     Config
	labeler metadata.Labeler
	now     func() time.Time
}

// NewConfigMapSink returns a sink writing through client. labeler may be nil.
func NewConfigMapSink(log logr.Logger, kube kubernetes.Interface, cfg Config, labeler metadata.Labeler) *ConfigMapSink {
	if labeler == nil {
		labeler = metadata.GenericLabeler{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = client.DefaultRequestTimeout
	}
	return &ConfigMapSink{
		log:     log.WithName("sink"),
		client:  kube,
		cfg:     cfg,
		labeler: labeler,
		now:     time.Now,
	}
}

// Encode renders the two data fields of the sink document.
func (s *ConfigMapSink) Encode(peers []peer.Peer) (map[string]string, error) {
	if peers == nil {
		peers = []peer.Peer{}
	}
	b, err := json.MarshalIndent(peers, "", "  ")
	if err != nil {
		return nil, err
	}

	list := ""
	if len(peers) > 0 {
		list = strings.Join(peer.IPs(peers), "\n") + "\n"
	}

	return map[string]string{
		s.cfg.JSONKey: string(b),
		s.cfg.ListKey: list,
	}, nil
}

// Publish writes peers to the ConfigMap, creating it when absent. Failures
// are returned as *Error and are not retried here.
func (s *ConfigMapSink) Publish(ctx context.Context, peers []peer.Peer) error {
	data, err := s.Encode(peers)
	if err != nil {
		return s.error(opEncode, err)
	}
	stamp := strconv.FormatInt(s.now().Unix(), 10)

	configMaps := s.client.CoreV1().ConfigMaps(s.cfg.Namespace)
	getCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	existing, err := configMaps.Get(getCtx, s.cfg.Name, metav1.GetOptions{})
	cancel()
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return s.error(opGet, err)
		}

		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      s.cfg.Name,
				Namespace: s.cfg.Namespace,
			},
			Data: data,
		}
		s.labeler.ApplyLabels(cm)
		metadata.SetAnnotation(cm, s.cfg.AnnotationKey, stamp)
		createCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		if _, err := configMaps.Create(createCtx, cm, metav1.CreateOptions{}); err != nil {
			return s.error(opCreate, err)
		}
		s.log.Info("created peer configmap", "namespace", s.cfg.Namespace, "name", s.cfg.Name, "peers", len(peers))
		return nil
	}

	if !metadata.IsOwned(existing) {
		s.log.V(1).Info("taking over unlabeled peer configmap", "namespace", s.cfg.Namespace, "name", s.cfg.Name)
	}
	cm := existing.DeepCopy()
	cm.Data = data
	s.labeler.ApplyLabels(cm)
	metadata.SetAnnotation(cm, s.cfg.AnnotationKey, stamp)
	updateCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if _, err := configMaps.Update(updateCtx, cm, metav1.UpdateOptions{}); err != nil {
		return s.error(opUpdate, err)
	}
	s.log.V(1).Info("updated peer configmap", "namespace", s.cfg.Namespace, "name", s.cfg.Name, "peers", len(peers))
	return nil
}

func (s *ConfigMapSink) error(op string, err error) *Error {
	return &Error{Op: op, Namespace: s.cfg.Namespace, Name: s.cfg.Name, Err: err}
}
