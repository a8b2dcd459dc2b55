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
package powerdns

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

const (
	APIKey   = "test-key"
	ServerID = "localhost"
)

// Record is the state of one A record held by the fake server.
type Record struct {
	IP  string
	TTL int
}

// Change is a single rrset change received by the fake server.
type Change struct {
	Name       string
	ChangeType string
	IP         string
	TTL        int
}

// Server is an in-memory PowerDNS API serving the server info endpoint and
// zone PATCH requests for a single zone.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	zone        string
	ready       bool
	failUpserts int
	upsertCalls int
	readyCalls  int
	records     map[string]Record
	changes     []Change
}

type rrset struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	TTL        int    `json:"ttl"`
	ChangeType string `json:"changetype"`
	Records    []struct {
		Content  string `json:"content"`
		Disabled bool   `json:"disabled"`
	} `json:"records"`
}

// NewServer starts a ready fake server for zone. Callers must Close it.
func NewServer(zone string) *Server {
	s := &Server{
		zone:    zone,
		ready:   true,
		records: map[string]Record{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/servers/{server}", s.handleServer)
	mux.HandleFunc("PATCH /api/v1/servers/{server}/zones/{zone}", s.handleZone)
	s.Server = httptest.NewServer(mux)
	return s
}

// SetReady toggles the answer of the server info endpoint.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// FailUpserts makes the next n REPLACE changes fail with a 500.
func (s *Server) FailUpserts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpserts = n
}

// Records returns a copy of the records in the zone.
func (s *Server) Records() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// Changes returns every change received so far, failed ones included.
func (s *Server) Changes() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Change(nil), s.changes...)
}

// UpsertCalls returns the number of REPLACE changes received.
func (s *Server) UpsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCalls
}

// ReadyCalls returns the number of server info requests received.
func (s *Server) ReadyCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyCalls
}

// PutRecord seeds a record.
func (s *Server) PutRecord(name, ip string, ttl int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = Record{IP: ip, TTL: ttl}
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-API-Key") != APIKey {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	if r.PathValue("server") != ServerID {
		writeError(w, http.StatusNotFound, "Not Found")
		return false
	}
	return true
}

func (s *Server) handleServer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.readyCalls++
	ready := s.ready
	s.mu.Unlock()

	if !s.authorized(w, r) {
		return
	}
	if !ready {
		writeError(w, http.StatusServiceUnavailable, "backend unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": ServerID, "type": "Server"})
}

func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	if r.PathValue("zone") != s.zone {
		writeError(w, http.StatusNotFound, "Could not find domain '"+r.PathValue("zone")+"'")
		return
	}

	var body struct {
		RRSets []rrset `json:"rrsets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rr := range body.RRSets {
		change := Change{Name: rr.Name, ChangeType: rr.ChangeType, TTL: rr.TTL}
		if len(rr.Records) > 0 {
			change.IP = rr.Records[0].Content
		}
		s.changes = append(s.changes, change)

		if rr.Type != "A" {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unsupported type %q", rr.Type))
			return
		}
		switch rr.ChangeType {
		case "REPLACE":
			s.upsertCalls++
			if s.failUpserts > 0 {
				s.failUpserts--
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			s.records[rr.Name] = Record{IP: change.IP, TTL: rr.TTL}
		case "DELETE":
			if _, ok := s.records[rr.Name]; !ok {
				writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("RRset %s IN A: Not found", rr.Name))
				return
			}
			delete(s.records, rr.Name)
		default:
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown changetype %q", rr.ChangeType))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
