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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/crypto_testutil"
	"github.com/AnotherKamila/scion/go/lib/ctrl/pathpolicy"
	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
	"github.com/AnotherKamila/scion/go/lib/env"
	"github.com/AnotherKamila/scion/go/lib/infra/messenger"
	"github.com/AnotherKamila/scion/go/lib/scrypto/cppki"
)

// cppkiTestTRC returns a TRC for ISD 1 at version 3 that lists a core AD
// other than the pcbFromCore beacon's subject (AD 11), so checkCertsTRC
// falls through to the certificate-chain branch after the TRC lands.
func cppkiTestTRC(t *testing.T) cppki.TRC {
	t.Helper()
	return cppki.TRC{
		ISD:     1,
		Version: 3,
		CoreADs: []addr.IsdAs{{ISD: 1, AD: 10}},
	}
}

func trcReply(raw []byte) messenger.TRCReply {
	return messenger.TRCReply{TrcIsd: 1, TrcVersion: 3, Raw: raw}
}

func localTestTopology() *env.Topology {
	return &env.Topology{
		IsCoreAd:           false,
		IsdId:               1,
		AdId:                 20,
		CertificateServers: []string{"10.0.1.1:30050"},
		PathServers:        []string{"10.0.1.2:30050"},
		RoutingEdgeRouters: []env.Router{
			{Addr: "10.0.1.3:30041", Interface: env.Interface{IfId: 9}},
		},
	}
}

func newTestLocal(t *testing.T) (*LocalServer, *fakeMessenger) {
	t.Helper()
	topo := localTestTopology()
	msgr := &fakeMessenger{}
	key := crypto_testutil.MustGenerateECDSAKey(t)
	srv := New(topo, &env.Config{}, pathpolicy.Default(), crypto_testutil.MustNewTrustStore(t), msgr, key)
	return NewLocal(srv, nil), msgr
}

func pcbFromCore(rotVersion uint64, ingressIf addr.IfId) *seg.PathSegment {
	s := &seg.PathSegment{Rotf: seg.RotField{RotVersion: rotVersion, IfId: ingressIf}}
	s.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 11, ISD: 1, Hof: seg.HopField{IngressIf: ingressIf, EgressIf: 3}}, Sig: []byte("sig")})
	return s
}

// S3 — Local trust miss then success (missing-material half).
func TestLocalProcessPCBRequestsTRCWhenMissing(t *testing.T) {
	local, msgr := newTestLocal(t)

	pcb := pcbFromCore(3, 9)
	local.processPCB(context.Background(), pcb)

	require.Len(t, msgr.trcRequests, 1)
	assert.EqualValues(t, 3, msgr.trcRequests[0].TrcVersion)
	assert.EqualValues(t, 1, msgr.trcRequests[0].TargetIsd)

	local.umtx.Lock()
	pending := len(local.unverifiedBeacons)
	local.umtx.Unlock()
	assert.Equal(t, 1, pending)
}

// S4 — Retry window.
func TestLocalTRCRequestRetryWindow(t *testing.T) {
	local, msgr := newTestLocal(t)

	first := pcbFromCore(3, 9)
	local.processPCB(context.Background(), first)
	require.Len(t, msgr.trcRequests, 1)

	// Resend 5s later: still inside the 10s window, no new request.
	local.rmtx.Lock()
	local.requestedTRCs[trcKey{ISD: 1, Version: 3}] = time.Now().Add(-5 * time.Second)
	local.rmtx.Unlock()
	second := pcbFromCore(3, 9)
	local.processPCB(context.Background(), second)
	assert.Len(t, msgr.trcRequests, 1)

	// 11s later: outside the window, exactly one new request.
	local.rmtx.Lock()
	local.requestedTRCs[trcKey{ISD: 1, Version: 3}] = time.Now().Add(-11 * time.Second)
	local.rmtx.Unlock()
	third := pcbFromCore(3, 9)
	local.processPCB(context.Background(), third)
	assert.Len(t, msgr.trcRequests, 2)
}

// S8 — Verification gating: a PCB whose hop sequence was never registered
// cannot reach beacons without first resolving trust material.
func TestLocalUnverifiedPCBNeverEntersBeaconsDirectly(t *testing.T) {
	local, _ := newTestLocal(t)

	pcb := pcbFromCore(3, 9)
	local.processPCB(context.Background(), pcb)

	assert.Empty(t, local.drainBeacons())
}

func TestLocalCompareHopsFastPathSkipsReverification(t *testing.T) {
	local, msgr := newTestLocal(t)

	pcb := pcbFromCore(3, 9)
	local.rememberRegisteredHops(pcb)

	// An identical-hop-sequence PCB is accepted without any trust-fetch
	// request, per spec.md §4.7.
	again := pcbFromCore(3, 9)
	local.processPCB(context.Background(), again)

	assert.Empty(t, msgr.trcRequests)
	drained := local.drainBeacons()
	require.Len(t, drained, 1)
}

func TestLocalProcessTRCRepDrainsUnverifiedOnce(t *testing.T) {
	local, msgr := newTestLocal(t)

	pcb := pcbFromCore(3, 9)
	local.processPCB(context.Background(), pcb)
	require.Len(t, msgr.trcRequests, 1)

	trcRaw, err := MarshalTRC(cppkiTestTRC(t))
	require.NoError(t, err)
	local.processTRCRep(context.Background(), trcReply(trcRaw))

	// Still missing the cert chain (subject AD 11 is not a core AD), so the
	// PCB should now be parked waiting on a certificate, not dropped nor
	// accepted.
	require.Len(t, msgr.certRequests, 1)
	local.umtx.Lock()
	pending := len(local.unverifiedBeacons)
	local.umtx.Unlock()
	assert.Equal(t, 1, pending)
}
