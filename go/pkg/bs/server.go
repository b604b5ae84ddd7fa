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

// Package bs is the Beacon Server: the shared pipeline skeleton (spec.md
// §4.5/§9 C5) plus its two role specializations, CoreServer (§4.6, C6) and
// LocalServer (§4.7, C7). The skeleton owns the beacon and registration
// queues, the signing key, and the immutable Topology/Config/Policy views;
// LocalServer holds the third queue (unverified beacons). Each role supplies
// its own propagationTick, registrationTick, and processPCB.
package bs

import (
	"context"
	"crypto/ecdsa"
	"net"
	"sync"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/ctrl/pathpolicy"
	"github.com/AnotherKamila/scion/go/lib/ctrl/pathstore"
	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
	"github.com/AnotherKamila/scion/go/lib/env"
	"github.com/AnotherKamila/scion/go/lib/infra/messenger"
	"github.com/AnotherKamila/scion/go/lib/log"
	"github.com/AnotherKamila/scion/go/lib/scrypto"
	"github.com/AnotherKamila/scion/go/lib/serrors"
	"github.com/AnotherKamila/scion/go/lib/trust"
	"go.uber.org/zap"
)

var errNoHops = serrors.New("PCB has no AD markings, cannot reverse-route")

// Server is the shared Beacon Server skeleton (spec.md §9): queues,
// crypto, and topology are held here; CoreServer and LocalServer
// each wrap a Server with their own origination/propagation/registration
// rules.
type Server struct {
	IA      addr.IsdAs
	Topo    *env.Topology
	Conf    *env.Config
	Policy  *pathpolicy.Policy
	Trust   *trust.Store
	Store   *pathstore.Store
	Msgr    messenger.Messenger
	SignKey *ecdsa.PrivateKey
	Metrics *Metrics

	qmtx    sync.Mutex
	beacons []*seg.PathSegment
	regs    []*seg.PathSegment
}

// New builds the shared skeleton. It does not start any workers; callers
// use CoreServer/LocalServer's Run.
func New(
	topo *env.Topology,
	conf *env.Config,
	policy *pathpolicy.Policy,
	trustStore *trust.Store,
	msgr messenger.Messenger,
	signKey *ecdsa.PrivateKey,
) *Server {
	return &Server{
		IA:      topo.IA(),
		Topo:    topo,
		Conf:    conf,
		Policy:  policy,
		Trust:   trustStore,
		Store:   pathstore.New(policy),
		Msgr:    msgr,
		SignKey: signKey,
		Metrics: NewMetrics(),
	}
}

// enqueueBeacon appends pcb to the beacon queue (spec.md §4.5: "FIFO of
// PCBs accepted for propagation").
func (s *Server) enqueueBeacon(pcb *seg.PathSegment) {
	s.qmtx.Lock()
	s.beacons = append(s.beacons, pcb)
	n := len(s.beacons)
	s.qmtx.Unlock()
	s.Metrics.BeaconQueueLen.Set(float64(n))
}

// drainBeacons atomically removes and returns every currently queued
// beacon.
func (s *Server) drainBeacons() []*seg.PathSegment {
	s.qmtx.Lock()
	defer s.qmtx.Unlock()
	drained := s.beacons
	s.beacons = nil
	s.Metrics.BeaconQueueLen.Set(0)
	return drained
}

// enqueueReg appends pcb to the registration queue.
func (s *Server) enqueueReg(pcb *seg.PathSegment) {
	s.qmtx.Lock()
	s.regs = append(s.regs, pcb)
	n := len(s.regs)
	s.qmtx.Unlock()
	s.Metrics.RegQueueLen.Set(float64(n))
}

// drainRegs atomically removes and returns every currently queued
// registration candidate.
func (s *Server) drainRegs() []*seg.PathSegment {
	s.qmtx.Lock()
	defer s.qmtx.Unlock()
	drained := s.regs
	s.regs = nil
	s.Metrics.RegQueueLen.Set(0)
	return drained
}

// createADMarking builds a freshly signed ADMarking for this AD, with the
// given ingress/egress interfaces, plus one PeerMarking per configured peer
// edge router (spec.md §4.5 "_create_ad_marking").
func (s *Server) createADMarking(ingressIf, egressIf addr.IfId) (seg.ADMarking, error) {
	m := seg.ADMarking{
		PCBM: seg.PCBMarking{
			AdId: s.IA.AD,
			Hof:  seg.HopField{IngressIf: ingressIf, EgressIf: egressIf},
			ISD:  s.IA.ISD,
		},
	}
	for _, peer := range s.Topo.PeerEdgeRouters {
		m.PMS = append(m.PMS, seg.PeerMarking{
			NeighborAd: peer.Interface.NeighborAd,
			Hof:        seg.HopField{IngressIf: peer.Interface.IfId, EgressIf: egressIf},
			ISD:        s.IA.ISD,
		})
	}
	sig, err := scrypto.Sign(seg.SigningBytes(m), s.SignKey)
	if err != nil {
		return seg.ADMarking{}, err
	}
	m.Sig = sig
	return m, nil
}

// propagateTo deep-copies pcb, appends a fresh AD marking for egress router
// r, and sends the copy to r's address (spec.md §4.5/§4.6).
func (s *Server) propagateTo(ctx context.Context, pcb *seg.PathSegment, r env.Router) error {
	addrTo, err := r.UDPAddr()
	if err != nil {
		return err
	}
	ingressIf := pcb.Rotf.IfId
	cp := pcb.Copy()
	cp.Rotf.IfId = r.Interface.IfId
	marking, err := s.createADMarking(ingressIf, r.Interface.IfId)
	if err != nil {
		return err
	}
	cp.AddAD(marking)
	if err := s.Msgr.SendBeacon(ctx, cp, addrTo); err != nil {
		return err
	}
	s.Metrics.BeaconsSent.Inc()
	return nil
}

// propagateToAll sends pcb, via propagateTo, to every router in routers.
// Errors are logged and do not stop propagation to the remaining routers
// (spec.md §7: "nothing in the data plane raises out of workers").
func (s *Server) propagateToAll(ctx context.Context, pcb *seg.PathSegment, routers []env.Router) {
	for _, r := range routers {
		if err := s.propagateTo(ctx, pcb, r); err != nil {
			log.Error("failed to propagate PCB", zap.Error(err), zap.String("to", r.Addr))
		}
	}
}

// parseUDPAddr resolves a textual path-server/certificate-server address.
func parseUDPAddr(a string) (*net.UDPAddr, error) {
	u, err := net.ResolveUDPAddr("udp", a)
	if err != nil {
		return nil, serrors.WrapStr("resolving address", err, "addr", a)
	}
	return u, nil
}

// reverseRouteNextHop looks up the address of the neighbor reachable
// through the ingress interface the originating PCB first arrived on
// (spec.md §4.6/§4.7's ifid2addr[path.first_hop.ingress_if]).
func (s *Server) reverseRouteNextHop(pcb *seg.PathSegment) (net.Addr, error) {
	if len(pcb.Ads) == 0 {
		return nil, errNoHops
	}
	firstHop := pcb.Ads[0].PCBM.Hof
	return s.Topo.Ifid2Addr(firstHop.IngressIf)
}
