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

package seg_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
)

func TestNewTimestampU16RoundTrips(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	u16 := seg.NewTimestampU16(now)
	iof := seg.InfoField{TimestampU16: u16}
	got := iof.Timestamp()
	assert.WithinDuration(t, now, got, seg.TimeInterval*time.Second)
}

func TestSigningBytesIsDeterministic(t *testing.T) {
	m := seg.ADMarking{
		PCBM: seg.PCBMarking{AdId: 10, Hof: seg.HopField{IngressIf: 1, EgressIf: 2}, ISD: 1},
		PMS: []seg.PeerMarking{
			{NeighborAd: 20, Hof: seg.HopField{IngressIf: 3, EgressIf: 2}, ISD: 1},
		},
	}
	a := seg.SigningBytes(m)
	b := seg.SigningBytes(m)
	assert.Equal(t, a, b)
	assert.Equal(t, "10(1,2)[1]20(3,2)[1]", string(a))
}

func TestSegmentIDStableAcrossSignatureStripping(t *testing.T) {
	s := &seg.PathSegment{}
	s.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 10, Hof: seg.HopField{IngressIf: 1, EgressIf: 2}}, Sig: []byte("sig1")})
	s.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 11, Hof: seg.HopField{IngressIf: 3, EgressIf: 4}}, Sig: []byte("sig2")})

	before := s.SegmentID()
	s.RemoveSignatures()
	after := s.SegmentID()
	assert.Equal(t, before, after)
}

func TestCompareHopsStructuralEquality(t *testing.T) {
	a := &seg.PathSegment{}
	a.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 10, Hof: seg.HopField{IngressIf: 1, EgressIf: 2}}, Sig: []byte("x")})
	b := &seg.PathSegment{}
	b.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 10, Hof: seg.HopField{IngressIf: 1, EgressIf: 2}}, Sig: []byte("y")})

	assert.True(t, a.CompareHops(b))

	c := &seg.PathSegment{}
	c.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 99, Hof: seg.HopField{IngressIf: 1, EgressIf: 2}}})
	assert.False(t, a.CompareHops(c))
}

func TestCopyIsIndependent(t *testing.T) {
	s := &seg.PathSegment{Rotf: seg.RotField{IfId: 5}}
	s.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 10}, Sig: []byte("sig")})

	cp := s.Copy()
	if diff := cmp.Diff(s, cp); diff != "" {
		t.Fatalf("fresh copy must equal original (-want +got):\n%s", diff)
	}

	cp.Rotf.IfId = 7
	cp.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: 20}})
	cp.Ads[0].Sig[0] = 'X'

	require.Equal(t, addr.IfId(5), s.Rotf.IfId)
	require.Len(t, s.Ads, 1)
	assert.Equal(t, byte('s'), s.Ads[0].Sig[0])
}

func TestNHopsAndNPeerLinks(t *testing.T) {
	s := &seg.PathSegment{}
	s.AddAD(seg.ADMarking{PMS: []seg.PeerMarking{{}, {}}})
	s.AddAD(seg.ADMarking{PMS: []seg.PeerMarking{{}}})
	assert.Equal(t, 2, s.NHops())
	assert.Equal(t, 3, s.NPeerLinks())
}
