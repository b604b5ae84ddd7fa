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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/crypto_testutil"
	"github.com/AnotherKamila/scion/go/lib/ctrl/pathpolicy"
	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
	"github.com/AnotherKamila/scion/go/lib/env"
)

func newTestServer(t *testing.T, topo *env.Topology) (*Server, *fakeMessenger) {
	t.Helper()
	msgr := &fakeMessenger{}
	key := crypto_testutil.MustGenerateECDSAKey(t)
	srv := New(
		topo,
		&env.Config{PropagationTime: 0, RegistrationTime: 0},
		pathpolicy.Default(),
		crypto_testutil.MustNewTrustStore(t),
		msgr,
		key,
	)
	return srv, msgr
}

func coreTestTopology() *env.Topology {
	return &env.Topology{
		IsCoreAd: true,
		IsdId:    1,
		AdId:     10,
		ChildEdgeRouters: []env.Router{
			{Addr: "10.0.0.1:30041", Interface: env.Interface{IfId: 5}},
			{Addr: "10.0.0.2:30041", Interface: env.Interface{IfId: 6}},
		},
	}
}

// S1 — Core origination.
func TestCoreOriginationSendsOneBeaconPerChildRouter(t *testing.T) {
	topo := coreTestTopology()
	srv, msgr := newTestServer(t, topo)
	core := NewCore(srv, nil)

	core.propagationTick(context.Background())

	require.Equal(t, 2, msgr.beaconCount())
	assert.Equal(t, 1, msgr.beaconsTo("10.0.0.1:30041"))
	assert.Equal(t, 1, msgr.beaconsTo("10.0.0.2:30041"))

	for _, b := range msgr.beacons {
		require.Len(t, b.pcb.Ads, 1)
		assert.EqualValues(t, 10, b.pcb.Ads[0].PCBM.AdId)
		assert.EqualValues(t, 1, b.pcb.Iof.ISD)
		assert.NotEmpty(t, b.pcb.Ads[0].Sig)
	}
}

// S2 — Dedup.
func TestCoreProcessPCBDropsLoopedBeacon(t *testing.T) {
	topo := coreTestTopology()
	srv, _ := newTestServer(t, topo)
	core := NewCore(srv, nil)

	looped := &seg.PathSegment{}
	looped.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 10, ISD: 1}})

	core.processPCB(looped)

	assert.Empty(t, core.drainBeacons())
}

func TestCoreProcessPCBAcceptsFreshBeacon(t *testing.T) {
	topo := coreTestTopology()
	srv, _ := newTestServer(t, topo)
	core := NewCore(srv, nil)

	fresh := &seg.PathSegment{}
	fresh.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 99, ISD: 2}})

	core.processPCB(fresh)

	drained := core.drainBeacons()
	require.Len(t, drained, 1)
	assert.Same(t, fresh, drained[0])
}

func TestCoreRegisterSegmentSendsLocallyAndReverseRouted(t *testing.T) {
	topo := coreTestTopology()
	topo.PathServers = []string{"10.0.9.9:30050"}
	topo.RoutingEdgeRouters = []env.Router{
		{Addr: "10.0.5.5:30041", Interface: env.Interface{IfId: 7}},
	}
	srv, msgr := newTestServer(t, topo)
	core := NewCore(srv, nil)

	pcb := &seg.PathSegment{}
	pcb.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 77, Hof: seg.HopField{IngressIf: 7, EgressIf: 3}, ISD: 1}})

	require.NoError(t, core.registerCoreSegment(context.Background(), pcb))

	require.Len(t, msgr.segmentRecs, 2)
	assert.Equal(t, "10.0.9.9:30050", msgr.segmentRecs[0].to.String())
	assert.Equal(t, "10.0.5.5:30041", msgr.segmentRecs[1].to.String())
	assert.Equal(t, addr.IsdAs{ISD: 1, AD: 77}, msgr.segmentRecs[0].recs.Info.Src)
}
