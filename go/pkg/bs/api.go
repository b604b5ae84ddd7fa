// Copyright 2020 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bs's debug API exposes read-only status over HTTP: topology,
// current path-store candidates, and queue depths. It is adapted from the
// teacher's chi-based debug API handler struct, trimmed to what spec.md's
// Beacon Server has to show.
package bs

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"github.com/AnotherKamila/scion/go/lib/ctrl/pathstore"
	"github.com/AnotherKamila/scion/go/lib/log"
	"go.uber.org/zap"
)

// maxDebugConns bounds how many concurrent debug-API connections the
// beacon server will serve, so a slow client can't starve the process of
// file descriptors (teacher's api.go wraps its listener the same way).
const maxDebugConns = 16

// api holds the read-only view the debug handlers render.
type api struct {
	srv *Server
}

// NewDebugHandler builds the chi router serving the beacon server's debug
// API.
func NewDebugHandler(srv *Server) http.Handler {
	a := &api{srv: srv}
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET"}}))
	r.Get("/topology", a.getTopology)
	r.Get("/candidates", a.getCandidates)
	r.Get("/paths", a.getPaths)
	r.Get("/status", a.getStatus)
	r.Handle("/metrics", promhttp.HandlerFor(srv.Metrics.Registry(), promhttp.HandlerOpts{}))
	return r
}

// ListenAndServeDebug serves the debug API at addr until the returned
// listener is closed by the caller (it should be closed on shutdown).
func ListenAndServeDebug(addr string, handler http.Handler) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	limited := netutil.LimitListener(ln, maxDebugConns)
	go func() {
		if err := http.Serve(limited, handler); err != nil {
			log.Info("debug API listener closed", zap.Error(err))
		}
	}()
	return ln, nil
}

func (a *api) getTopology(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.srv.Topo)
}

// getStatus renders the store's and policy's human-readable __str__-style
// summaries (spec.md's supplemented String() methods), for quick operator
// inspection without parsing the candidates/paths JSON.
func (a *api) getStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ia=%s\n%s\n%s\n", a.srv.IA, a.srv.Store, a.srv.Policy)
}

type candidateView struct {
	SegmentID    string  `json:"segment_id"`
	Fidelity     float64 `json:"fidelity"`
	Disjointness int     `json:"disjointness"`
	HopsLength   int     `json:"hops_length"`
}

func (a *api) getCandidates(w http.ResponseWriter, r *http.Request) {
	recs := a.srv.Store.GetCandidates(a.srv.Store.Len())
	writeJSON(w, toCandidateViews(recs))
}

func (a *api) getPaths(w http.ResponseWriter, r *http.Request) {
	k := a.srv.Policy.BestSetSize
	recs := a.srv.Store.GetPaths(k)
	writeJSON(w, toCandidateViews(recs))
}

func toCandidateViews(recs []*pathstore.Record) []candidateView {
	out := make([]candidateView, 0, len(recs))
	for _, r := range recs {
		out = append(out, candidateView{
			SegmentID:    hex.EncodeToString(r.ID[:]),
			Fidelity:     r.Fidelity,
			Disjointness: r.Disjointness,
			HopsLength:   r.HopsLength,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode debug API response", zap.Error(err))
	}
}
