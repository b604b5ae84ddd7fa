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

package bs

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/ctrl/pathstore"
	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
	"github.com/AnotherKamila/scion/go/lib/infra/messenger"
	"github.com/AnotherKamila/scion/go/lib/infra/transport"
	"github.com/AnotherKamila/scion/go/lib/log"
	"github.com/AnotherKamila/scion/go/lib/periodic"
	"github.com/AnotherKamila/scion/go/lib/tracing"
	"go.uber.org/zap"
)

// CoreServer is the Core BS specialization (spec.md §4.6, C6): on each
// propagation tick it originates a fresh down-stream and a fresh core PCB,
// propagates drained inbound beacons onward to routing neighbors only, and
// registers core segments both locally and reverse-routed toward the PCB's
// origin.
type CoreServer struct {
	*Server
	transport *transport.UDP
}

// NewCore wraps srv as a Core BS bound to a live transport.
func NewCore(srv *Server, tr *transport.UDP) *CoreServer {
	return &CoreServer{Server: srv, transport: tr}
}

// Run starts the propagation worker, the registration worker, and the
// inbound dispatcher, and blocks until ctx is canceled or one of them
// returns an error (spec.md §5: "at minimum three concurrent activities").
func (c *CoreServer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	propRunner := periodic.Start(
		periodic.TaskFunc{TaskName: "propagation", Func: c.propagationTick},
		c.Conf.PropagationTime,
		c.Metrics.Periodic.ForTask("propagation"),
	)
	regRunner := periodic.Start(
		periodic.TaskFunc{TaskName: "registration", Func: c.registrationTick},
		c.Conf.RegistrationTime,
		c.Metrics.Periodic.ForTask("registration"),
	)
	g.Go(func() error {
		<-ctx.Done()
		propRunner.Stop()
		regRunner.Stop()
		return nil
	})
	g.Go(func() error {
		return c.transport.ReadLoop(ctx, c.dispatch)
	})
	return g.Wait()
}

// propagationTick originates this tick's down-stream and core PCBs, then
// drains and re-propagates every inbound beacon (spec.md §4.6).
func (c *CoreServer) propagationTick(ctx context.Context) {
	span, ctx := tracing.CtxWith(ctx, "bs.core.propagate")
	defer span.Finish()

	now := time.Now()
	iof := seg.InfoField{
		Type:         seg.TdcXovr,
		UpFlag:       false,
		TimestampU16: seg.NewTimestampU16(now),
		ISD:          c.IA.ISD,
	}

	downPCB := &seg.PathSegment{Iof: iof}
	c.propagateToAll(ctx, downPCB, c.Topo.ChildEdgeRouters)

	corePCB := &seg.PathSegment{Iof: iof}
	c.propagateToAll(ctx, corePCB, c.Topo.RoutingEdgeRouters)

	for _, pcb := range c.drainBeacons() {
		c.propagateToAll(ctx, pcb, c.Topo.RoutingEdgeRouters)
		c.enqueueReg(pcb)
	}
}

// registrationTick drains reg_queue and registers each PCB as a core
// segment (spec.md §4.6's register_segments). Gated on Conf.RegistersPaths,
// matching beacon_server.py's register_segments ("if not
// self.config.registers_paths: return").
func (c *CoreServer) registrationTick(ctx context.Context) {
	if !c.Conf.RegistersPaths {
		return
	}
	span, ctx := tracing.CtxWith(ctx, "bs.core.register")
	defer span.Finish()

	for _, pcb := range c.drainRegs() {
		c.Store.AddRecord(pathstore.NewRecord(pcb, time.Now()))
		if err := c.registerCoreSegment(ctx, pcb); err != nil {
			log.Error("failed to register core segment", zap.Error(err))
		}
	}
}

// registerCoreSegment implements spec.md §4.6: copy, append a terminating
// AD marking (egress_if=0), strip signatures, then send both to the local
// path server and reverse-routed toward the PCB's origin.
func (c *CoreServer) registerCoreSegment(ctx context.Context, pcb *seg.PathSegment) error {
	cp := pcb.Copy()
	marking, err := c.createADMarking(cp.Rotf.IfId, 0)
	if err != nil {
		return err
	}
	cp.AddAD(marking)
	cp.RemoveSignatures()

	first := cp.FirstPCBM()
	info := messenger.PathSegmentInfo{
		Type: messenger.SegCore,
		Src:  addr.IsdAs{ISD: first.ISD, AD: first.AdId},
		Dst:  c.IA,
	}
	recs := messenger.PathSegmentRecords{Info: info, Segs: []*seg.PathSegment{cp}}

	if len(c.Topo.PathServers) > 0 {
		local, lerr := parseUDPAddr(c.Topo.PathServers[0])
		if lerr == nil {
			if err := c.Msgr.SendPathSegmentRecords(ctx, recs, local); err != nil {
				log.Error("failed to register core segment locally", zap.Error(err))
			} else {
				c.Metrics.Segments.WithLabelValues("core").Inc()
			}
		}
	}

	nextHop, err := c.reverseRouteNextHop(pcb)
	if err != nil {
		return err
	}
	recs.Path = pcb
	return c.Msgr.SendPathSegmentRecords(ctx, recs, nextHop)
}

// dispatch is the Core BS's packet classifier (spec.md §4.8): only BEACON
// is meaningful to a core server; cert/TRC replies never arrive since a
// core server never issues trust-fetch requests.
func (c *CoreServer) dispatch(in transport.Inbound) {
	switch in.Type {
	case messenger.Beacon:
		var pcb seg.PathSegment
		if err := transport.DecodeBody(in, &pcb); err != nil {
			log.Warn("malformed BEACON, discarding", zap.Error(err))
			return
		}
		c.Metrics.BeaconsRecv.Inc()
		c.processPCB(&pcb)
	case messenger.IfidReq, messenger.IfidRep:
		log.Info("IFID handling not implemented", zap.Stringer("type", in.Type))
	default:
		log.Warn("unsupported packet type", zap.Stringer("type", in.Type))
	}
}

// processPCB implements spec.md §4.6's duplicate suppression: a PCB whose
// ads already contain this AD has looped back and is dropped.
func (c *CoreServer) processPCB(pcb *seg.PathSegment) {
	for _, ad := range pcb.Ads {
		if ad.PCBM.AdId == c.IA.AD && ad.PCBM.ISD == c.IA.ISD {
			c.Metrics.PCBsDropped.WithLabelValues("loop").Inc()
			return
		}
	}
	c.enqueueBeacon(pcb)
}
