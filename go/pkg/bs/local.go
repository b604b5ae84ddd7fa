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
	"bytes"
	"context"
	"crypto/x509"
	"encoding/gob"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/ctrl/pathstore"
	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
	"github.com/AnotherKamila/scion/go/lib/infra/messenger"
	"github.com/AnotherKamila/scion/go/lib/infra/transport"
	"github.com/AnotherKamila/scion/go/lib/log"
	"github.com/AnotherKamila/scion/go/lib/periodic"
	"github.com/AnotherKamila/scion/go/lib/scrypto"
	"github.com/AnotherKamila/scion/go/lib/scrypto/cppki"
	"github.com/AnotherKamila/scion/go/lib/serrors"
	"github.com/AnotherKamila/scion/go/lib/tracing"
	"go.uber.org/zap"
)

// requestsTimeout is the trust-fetch retry window (spec.md §4.7,
// REQUESTS_TIMEOUT).
const requestsTimeout = 10 * time.Second

// ErrTrustMissing is returned by checkCertsTRC when the PCB cannot yet be
// verified because some trust material has not arrived. It is distinct
// from a hard verification failure: the PCB is parked, not dropped (spec.md
// §9 Open Questions: "_check_certs_trc returns None on one branch"; this
// repository resolves that ambiguity with an explicit sentinel rather than
// overloading a bool/nil return).
var ErrTrustMissing = serrors.New("trust material not yet available")

type certKey struct {
	ISD     addr.ISD
	AD      addr.AD
	Version uint64
}

type trcKey struct {
	ISD     addr.ISD
	Version uint64
}

// LocalServer is the Local BS specialization (spec.md §4.7, C7): it
// verifies inbound beacons lazily, fetching missing trust material through
// the trust-fetch controller, and registers up-/down-segments.
type LocalServer struct {
	*Server
	transport *transport.UDP

	rmtx              sync.Mutex
	requestedCerts    map[certKey]time.Time
	requestedTRCs     map[trcKey]time.Time
	registeredHops    [][]seg.HopTuple

	umtx              sync.Mutex
	unverifiedBeacons []*seg.PathSegment
}

// NewLocal wraps srv as a Local BS bound to a live transport.
func NewLocal(srv *Server, tr *transport.UDP) *LocalServer {
	return &LocalServer{
		Server:         srv,
		transport:      tr,
		requestedCerts: make(map[certKey]time.Time),
		requestedTRCs:  make(map[trcKey]time.Time),
	}
}

// Run starts the propagation worker, the registration worker, and the
// inbound dispatcher (spec.md §5).
func (l *LocalServer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	propRunner := periodic.Start(
		periodic.TaskFunc{TaskName: "propagation", Func: l.propagationTick},
		l.Conf.PropagationTime,
		l.Metrics.Periodic.ForTask("propagation"),
	)
	regRunner := periodic.Start(
		periodic.TaskFunc{TaskName: "registration", Func: l.registrationTick},
		l.Conf.RegistrationTime,
		l.Metrics.Periodic.ForTask("registration"),
	)
	g.Go(func() error {
		<-ctx.Done()
		propRunner.Stop()
		regRunner.Stop()
		return nil
	})
	g.Go(func() error {
		return l.transport.ReadLoop(ctx, func(in transport.Inbound) { l.dispatch(ctx, in) })
	})
	return g.Wait()
}

// propagationTick drains beacons and re-propagates each to every
// configured edge router (a local AD has no origination step, spec.md
// §4.6 vs §4.7).
func (l *LocalServer) propagationTick(ctx context.Context) {
	span, ctx := tracing.CtxWith(ctx, "bs.local.propagate")
	defer span.Finish()

	for _, pcb := range l.drainBeacons() {
		l.propagateToAll(ctx, pcb, l.Topo.ChildEdgeRouters)
		l.propagateToAll(ctx, pcb, l.Topo.RoutingEdgeRouters)
		l.propagateToAll(ctx, pcb, l.Topo.PeerEdgeRouters)
		l.enqueueReg(pcb)
	}
}

// registrationTick is gated on Conf.RegistersPaths, matching
// beacon_server.py's register_segments ("if not
// self.config.registers_paths: return").
func (l *LocalServer) registrationTick(ctx context.Context) {
	if !l.Conf.RegistersPaths {
		return
	}
	span, ctx := tracing.CtxWith(ctx, "bs.local.register")
	defer span.Finish()

	for _, pcb := range l.drainRegs() {
		l.Store.AddRecord(pathstore.NewRecord(pcb, time.Now()))
		if err := l.registerSegments(ctx, pcb); err != nil {
			log.Error("failed to register segments", zap.Error(err))
		}
	}
}

// registerSegments implements spec.md §4.7's local registration: one
// UP-segment to the local path server, one DOWN-segment reverse-routed
// toward the originating core path server.
func (l *LocalServer) registerSegments(ctx context.Context, pcb *seg.PathSegment) error {
	cp := pcb.Copy()
	marking, err := l.createADMarking(cp.Rotf.IfId, 0)
	if err != nil {
		return err
	}
	cp.AddAD(marking)
	cp.RemoveSignatures()

	first := cp.FirstPCBM()
	if len(l.Topo.PathServers) > 0 {
		up := messenger.PathSegmentRecords{
			Info: messenger.PathSegmentInfo{
				Type: messenger.SegUp,
				Src:  addr.IsdAs{ISD: first.ISD, AD: first.AdId},
				Dst:  l.IA,
			},
			Segs: []*seg.PathSegment{cp},
		}
		local, lerr := parseUDPAddr(l.Topo.PathServers[0])
		if lerr == nil {
			if err := l.Msgr.SendPathSegmentRecords(ctx, up, local); err != nil {
				log.Error("failed to register up segment", zap.Error(err))
			} else {
				l.Metrics.Segments.WithLabelValues("up").Inc()
			}
		}
	}

	nextHop, err := l.reverseRouteNextHop(pcb)
	if err != nil {
		return err
	}
	down := messenger.PathSegmentRecords{
		Info: messenger.PathSegmentInfo{
			Type: messenger.SegDown,
			Src:  addr.IsdAs{ISD: first.ISD, AD: first.AdId},
			Dst:  l.IA,
		},
		Segs: []*seg.PathSegment{cp},
		Path: pcb,
	}
	if err := l.Msgr.SendPathSegmentRecords(ctx, down, nextHop); err != nil {
		return err
	}
	l.Metrics.Segments.WithLabelValues("down").Inc()
	return nil
}

func (l *LocalServer) dispatch(ctx context.Context, in transport.Inbound) {
	switch in.Type {
	case messenger.Beacon:
		var pcb seg.PathSegment
		if err := transport.DecodeBody(in, &pcb); err != nil {
			log.Warn("malformed BEACON, discarding", zap.Error(err))
			return
		}
		l.Metrics.BeaconsRecv.Inc()
		l.processPCB(ctx, &pcb)
	case messenger.CertRep:
		var rep messenger.CertReply
		if err := transport.DecodeBody(in, &rep); err != nil {
			log.Warn("malformed CERT_REP, discarding", zap.Error(err))
			return
		}
		l.processCertRep(ctx, rep)
	case messenger.TrcRep:
		var rep messenger.TRCReply
		if err := transport.DecodeBody(in, &rep); err != nil {
			log.Warn("malformed TRC_REP, discarding", zap.Error(err))
			return
		}
		l.processTRCRep(ctx, rep)
	case messenger.IfidReq, messenger.IfidRep:
		log.Info("IFID handling not implemented", zap.Stringer("type", in.Type))
	default:
		log.Warn("unsupported packet type", zap.Stringer("type", in.Type))
	}
}

// processPCB implements spec.md §4.7: a PCB whose hop sequence matches an
// already-registered one is trusted without re-verification; otherwise it
// goes through the trust-fetch path.
func (l *LocalServer) processPCB(ctx context.Context, pcb *seg.PathSegment) {
	if l.hasRegisteredHops(pcb) {
		l.enqueueBeacon(pcb)
		return
	}

	last := pcb.LastPCBM()
	subject := addr.IsdAs{ISD: last.ISD, AD: last.AdId}
	chain, trc, err := l.checkCertsTRC(ctx, subject, pcb.Rotf.RotVersion, pcb.Rotf.IfId)
	if err == ErrTrustMissing {
		l.enqueueUnverified(pcb)
		return
	}
	if err != nil {
		log.Error("trust material check failed", zap.Error(err))
		l.enqueueUnverified(pcb)
		return
	}

	// chain is nil when the subject is itself a core AD listed directly in
	// the TRC (spec.md §4.7's "(b) the subject is a core AD for that TRC"):
	// there is no certificate chain to walk in that case, so the PCB is
	// trusted on the strength of the TRC membership alone.
	if chain != nil && !l.verifyBeacon(pcb, subject, chain, trc) {
		l.Metrics.PCBsDropped.WithLabelValues("signature").Inc()
		return
	}
	l.rememberRegisteredHops(pcb)
	l.enqueueBeacon(pcb)
}

// verifyBeacon verifies only the last AD marking's signature against the
// supplied chain/TRC pair (beacon_server.py's _verify_beacon verifies only
// pcb.ads[-1]): every earlier marking was signed by a different AD's key,
// and checkCertsTRC only ever fetches trust material for the last hop's
// subject, so there is no chain available to verify the others against.
func (l *LocalServer) verifyBeacon(pcb *seg.PathSegment, subject addr.IsdAs, chain cppki.CertificateChain, trc *cppki.TRC) bool {
	last := pcb.Ads[len(pcb.Ads)-1]
	data := seg.SigningBytes(last)
	return scrypto.Verify(data, last.Sig, subject, chain, trc, pcb.Rotf.RotVersion)
}

// checkCertsTRC is the trust-fetch controller (spec.md §4.7). It returns
// ErrTrustMissing when the TRC and/or certificate chain are not yet on
// disk, issuing or refreshing a fetch as needed; otherwise it returns the
// loaded chain and TRC.
func (l *LocalServer) checkCertsTRC(
	ctx context.Context,
	subject addr.IsdAs,
	trcVersion uint64,
	ingressIf addr.IfId,
) (cppki.CertificateChain, *cppki.TRC, error) {
	now := time.Now()

	if !l.Trust.HasTRC(l.IA, subject.ISD, trcVersion) {
		l.maybeRequestTRC(ctx, subject, trcVersion, ingressIf, now)
		return nil, nil, ErrTrustMissing
	}
	trc, err := l.loadTRC(subject.ISD, trcVersion)
	if err != nil {
		return nil, nil, err
	}

	if trc.Contains(subject) {
		return nil, trc, nil
	}

	if !l.Trust.HasCertChain(l.IA, subject, 0) {
		l.maybeRequestCert(ctx, subject, 0, ingressIf, now)
		return nil, nil, ErrTrustMissing
	}
	chain, err := l.loadCertChain(subject, 0)
	if err != nil {
		return nil, nil, err
	}
	return chain, trc, nil
}

func (l *LocalServer) maybeRequestTRC(ctx context.Context, subject addr.IsdAs, version uint64, ingressIf addr.IfId, now time.Time) {
	key := trcKey{ISD: subject.ISD, Version: version}
	l.rmtx.Lock()
	last, pending := l.requestedTRCs[key]
	if pending && now.Sub(last) < requestsTimeout {
		l.rmtx.Unlock()
		return
	}
	l.requestedTRCs[key] = now
	l.rmtx.Unlock()

	if len(l.Topo.CertificateServers) == 0 {
		return
	}
	to, err := parseUDPAddr(l.Topo.CertificateServers[0])
	if err != nil {
		log.Error("certificate server address invalid", zap.Error(err))
		return
	}
	req := messenger.TRCRequest{
		IfId:       ingressIf,
		SrcIsd:     l.IA.ISD,
		SrcAd:      l.IA.AD,
		TargetIsd:  subject.ISD,
		TrcVersion: version,
	}
	if err := l.Msgr.SendTRCRequest(ctx, req, to); err != nil {
		log.Error("failed to send TRC request", zap.Error(err))
	}
}

func (l *LocalServer) maybeRequestCert(ctx context.Context, subject addr.IsdAs, version uint64, ingressIf addr.IfId, now time.Time) {
	key := certKey{ISD: subject.ISD, AD: subject.AD, Version: version}
	l.rmtx.Lock()
	last, pending := l.requestedCerts[key]
	if pending && now.Sub(last) < requestsTimeout {
		l.rmtx.Unlock()
		return
	}
	l.requestedCerts[key] = now
	l.rmtx.Unlock()

	if len(l.Topo.CertificateServers) == 0 {
		return
	}
	to, err := parseUDPAddr(l.Topo.CertificateServers[0])
	if err != nil {
		log.Error("certificate server address invalid", zap.Error(err))
		return
	}
	req := messenger.CertRequest{
		IfId:        ingressIf,
		SrcIsd:      l.IA.ISD,
		SrcAd:       l.IA.AD,
		TargetIsd:   subject.ISD,
		TargetAd:    subject.AD,
		CertVersion: version,
	}
	if err := l.Msgr.SendCertChainRequest(ctx, req, to); err != nil {
		log.Error("failed to send certificate chain request", zap.Error(err))
	}
}

// processTRCRep persists a TRC reply, clears its pending-request entry,
// and drains unverified_beacons once (spec.md §4.7).
func (l *LocalServer) processTRCRep(ctx context.Context, rep messenger.TRCReply) {
	if err := l.Trust.StoreTRC(l.IA, rep.TrcIsd, rep.TrcVersion, rep.Raw); err != nil {
		log.Error("failed to store TRC", zap.Error(err))
		return
	}
	l.rmtx.Lock()
	delete(l.requestedTRCs, trcKey{ISD: rep.TrcIsd, Version: rep.TrcVersion})
	l.rmtx.Unlock()
	l.drainUnverified(ctx)
}

// processCertRep persists a certificate chain reply, clears its
// pending-request entry, and drains unverified_beacons once.
func (l *LocalServer) processCertRep(ctx context.Context, rep messenger.CertReply) {
	target := addr.IsdAs{ISD: rep.CertIsd, AD: rep.CertAd}
	if err := l.Trust.StoreCertChain(l.IA, target, rep.CertVersion, rep.Raw); err != nil {
		log.Error("failed to store certificate chain", zap.Error(err))
		return
	}
	l.rmtx.Lock()
	delete(l.requestedCerts, certKey{ISD: rep.CertIsd, AD: rep.CertAd, Version: rep.CertVersion})
	l.rmtx.Unlock()
	l.drainUnverified(ctx)
}

// drainUnverified re-attempts processPCB for every parked beacon exactly
// once (spec.md §4.7: "records still failing remain in the queue").
func (l *LocalServer) drainUnverified(ctx context.Context) {
	l.umtx.Lock()
	pending := l.unverifiedBeacons
	l.unverifiedBeacons = nil
	l.umtx.Unlock()

	for _, pcb := range pending {
		l.processPCB(ctx, pcb)
	}
}

func (l *LocalServer) enqueueUnverified(pcb *seg.PathSegment) {
	l.umtx.Lock()
	l.unverifiedBeacons = append(l.unverifiedBeacons, pcb)
	l.umtx.Unlock()
	l.Metrics.VerifyMisses.Inc()
}

// hasRegisteredHops implements spec.md §4.7's compare_hops fast path: a
// PCB whose hop sequence was already verified once is accepted again
// without re-verification.
func (l *LocalServer) hasRegisteredHops(pcb *seg.PathSegment) bool {
	tuples := pcb.HopTuples()
	l.rmtx.Lock()
	defer l.rmtx.Unlock()
	for _, reg := range l.registeredHops {
		if hopTuplesEqual(reg, tuples) {
			return true
		}
	}
	return false
}

func (l *LocalServer) rememberRegisteredHops(pcb *seg.PathSegment) {
	l.rmtx.Lock()
	l.registeredHops = append(l.registeredHops, pcb.HopTuples())
	l.rmtx.Unlock()
}

func hopTuplesEqual(a, b []seg.HopTuple) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (l *LocalServer) loadTRC(isd addr.ISD, version uint64) (*cppki.TRC, error) {
	raw, err := l.Trust.LoadTRC(l.IA, isd, version)
	if err != nil {
		return nil, err
	}
	var trc cppki.TRC
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&trc); err != nil {
		return nil, serrors.WrapStr("decoding TRC", err)
	}
	return &trc, nil
}

func (l *LocalServer) loadCertChain(subject addr.IsdAs, version uint64) (cppki.CertificateChain, error) {
	raw, err := l.Trust.LoadCertChain(l.IA, subject, version)
	if err != nil {
		return nil, err
	}
	var der [][]byte
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&der); err != nil {
		return nil, serrors.WrapStr("decoding certificate chain", err)
	}
	chain := make(cppki.CertificateChain, 0, len(der))
	for _, d := range der {
		cert, err := x509.ParseCertificate(d)
		if err != nil {
			return nil, serrors.WrapStr("parsing certificate", err)
		}
		chain = append(chain, cert)
	}
	return chain, nil
}

// MarshalTRC gob-encodes a TRC to the byte form the Trust Material Store
// persists and loadTRC decodes.
func MarshalTRC(trc cppki.TRC) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(trc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalCertChain gob-encodes a certificate chain to the byte form the
// Trust Material Store persists and loadCertChain decodes.
func MarshalCertChain(chain cppki.CertificateChain) ([]byte, error) {
	der := make([][]byte, len(chain))
	for i, c := range chain {
		der[i] = c.Raw
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(der); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
