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

// Package seg is the PCB/path-segment data model of spec.md §3: the
// Info/ROT opaque fields, AD/PCB/peer markings, and the derived segment
// properties (segment ID, hop/peer-link counts, reconstructed timestamp)
// that the Path Store and Beacon Pipeline operate on.
package seg

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AnotherKamila/scion/go/lib/addr"
)

// InfoFieldType is the type tag of an InfoField.
type InfoFieldType uint8

// TdcXovr is the only info-field type the beacon server itself produces
// (spec.md §4.6); other types exist in the wider protocol but are opaque to
// beaconing.
const TdcXovr InfoFieldType = 0x02

// Protocol constants from spec.md §4.6.
const (
	Delta        = 24 * 60 * 60 // seconds a PCB timestamp is valid for
	TimeInterval = 4            // SCION second, in real seconds
)

// InfoField is the PCB's info opaque field.
type InfoField struct {
	Type         InfoFieldType
	UpFlag       bool
	TimestampU16 uint16
	ISD          addr.ISD
}

// Timestamp reconstructs the absolute creation time the truncated
// TimestampU16 encodes, by inverting spec.md §4.6's generation formula and
// picking the representative closest to now. The beacon server's own
// Path Store only ever compares reconstructed timestamps that were minted
// within one Delta window of each other, so the ambiguity inherent in a
// 16-bit truncated clock does not matter in practice.
func (f InfoField) Timestamp() time.Time {
	return reconstructTimestamp(f.TimestampU16, time.Now())
}

func reconstructTimestamp(raw uint16, now time.Time) time.Time {
	const period = int64(TimeInterval) * (1 << 16)
	base := int64(raw)*TimeInterval - Delta
	nowUnix := now.Unix()
	k := (nowUnix - base + period/2) / period
	return time.Unix(base+k*period, 0).UTC()
}

// NewTimestampU16 computes the truncated timestamp for "now", per spec.md
// §4.6.
func NewTimestampU16(now time.Time) uint16 {
	v := ((now.Unix() + Delta) % (TimeInterval * (1 << 16))) / TimeInterval
	return uint16(v)
}

// RotField is the PCB's ROT/TRC descriptor.
type RotField struct {
	// RotVersion is the TRC version the PCB's last AD marking was signed
	// under.
	RotVersion uint64
	// IfId carries the ingress-at-receiver interface of the last hop.
	IfId addr.IfId
}

// HopField carries the ingress/egress interfaces of one AD marking.
type HopField struct {
	IngressIf addr.IfId
	EgressIf  addr.IfId
}

// PCBMarking is one AD's own contribution to a PCB (spec.md §3).
type PCBMarking struct {
	AdId addr.AD
	// Ssf is the support-signature-field placeholder; it carries no data
	// in this protocol but is kept for wire-shape parity with the
	// original.
	Ssf   struct{}
	Hof   HopField
	ISD   addr.ISD // spcbf.isd_id
}

// PeerMarking is one peering-link contribution to an AD marking.
type PeerMarking struct {
	NeighborAd addr.AD
	Hof        HopField
	ISD        addr.ISD // spf.isd_id
}

// ADMarking is a single AD's signed contribution to a PCB.
type ADMarking struct {
	PCBM PCBMarking
	PMS  []PeerMarking
	// Sig covers SigningBytes(PCBM, PMS); empty once RemoveSignatures has
	// been called (registration strips signatures, spec.md §4.6/§4.7).
	Sig []byte
}

// SigningBytes returns the deterministic, lexically-stable byte sequence
// an ADMarking's signature covers (spec.md §3): str(ad_id) || str(hof) ||
// str(spcbf) || sum(str(pm_i)).
func SigningBytes(m ADMarking) []byte {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(m.PCBM.AdId), 10))
	writeHof(&b, m.PCBM.Hof)
	writeIsd(&b, m.PCBM.ISD)
	for _, pm := range m.PMS {
		b.WriteString(strconv.FormatUint(uint64(pm.NeighborAd), 10))
		writeHof(&b, pm.Hof)
		writeIsd(&b, pm.ISD)
	}
	return []byte(b.String())
}

func writeHof(b *strings.Builder, h HopField) {
	fmt.Fprintf(b, "(%d,%d)", h.IngressIf, h.EgressIf)
}

func writeIsd(b *strings.Builder, isd addr.ISD) {
	fmt.Fprintf(b, "[%d]", isd)
}

// PathSegment is a PCB: an ordered sequence of AD markings plus the info
// and ROT opaque fields (spec.md §3).
type PathSegment struct {
	Iof  InfoField
	Rotf RotField
	Ads  []ADMarking
}

// AddAD appends an AD marking to the segment.
func (s *PathSegment) AddAD(m ADMarking) {
	s.Ads = append(s.Ads, m)
}

// NHops returns the number of AD markings (hops) in the segment.
func (s *PathSegment) NHops() int {
	return len(s.Ads)
}

// NPeerLinks returns the total number of peering links across all AD
// markings.
func (s *PathSegment) NPeerLinks() int {
	n := 0
	for _, ad := range s.Ads {
		n += len(ad.PMS)
	}
	return n
}

// Timestamp is the absolute creation time reconstructed from Iof.
func (s *PathSegment) Timestamp() time.Time {
	return s.Iof.Timestamp()
}

// FirstPCBM returns the first AD marking's PCBMarking (the originating AD),
// or the zero value if the segment has no AD markings.
func (s *PathSegment) FirstPCBM() PCBMarking {
	if len(s.Ads) == 0 {
		return PCBMarking{}
	}
	return s.Ads[0].PCBM
}

// LastPCBM returns the last AD marking's PCBMarking (the most recent hop).
func (s *PathSegment) LastPCBM() PCBMarking {
	if len(s.Ads) == 0 {
		return PCBMarking{}
	}
	return s.Ads[len(s.Ads)-1].PCBM
}

// HopTuple is the structural identity of one hop, used both for segment-ID
// hashing and for compare_hops equality (spec.md §4.7).
type HopTuple struct {
	AdId      addr.AD
	IngressIf addr.IfId
	EgressIf  addr.IfId
}

// HopTuples returns the structural hop sequence of the segment.
func (s *PathSegment) HopTuples() []HopTuple {
	tuples := make([]HopTuple, len(s.Ads))
	for i, ad := range s.Ads {
		tuples[i] = HopTuple{AdId: ad.PCBM.AdId, IngressIf: ad.PCBM.Hof.IngressIf, EgressIf: ad.PCBM.Hof.EgressIf}
	}
	return tuples
}

// CompareHops reports whether s and o share the same hop sequence
// (spec.md §4.7's compare_hops).
func (s *PathSegment) CompareHops(o *PathSegment) bool {
	a, b := s.HopTuples(), o.HopTuples()
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

// SegmentID is a stable hash of the segment's hop sequence (spec.md §3): it
// does not depend on signatures, so re-signing (or stripping signatures on
// registration) never changes a segment's identity.
func (s *PathSegment) SegmentID() [32]byte {
	h := sha256.New()
	for _, t := range s.HopTuples() {
		var buf [10]byte
		binary.BigEndian.PutUint32(buf[0:4], uint32(t.AdId))
		binary.BigEndian.PutUint16(buf[4:6], uint16(t.IngressIf))
		binary.BigEndian.PutUint16(buf[6:8], uint16(t.EgressIf))
		h.Write(buf[:8])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Copy returns a deep copy of s so that callers can mutate the copy (append
// an AD marking, update Rotf.IfId) without affecting any other holder of
// the original (spec.md §9: "the PCB handed to a worker is shared
// read-only; any mutation happens on a freshly owned copy").
func (s *PathSegment) Copy() *PathSegment {
	cp := &PathSegment{Iof: s.Iof, Rotf: s.Rotf}
	cp.Ads = make([]ADMarking, len(s.Ads))
	for i, ad := range s.Ads {
		cp.Ads[i] = ADMarking{
			PCBM: ad.PCBM,
			PMS:  append([]PeerMarking(nil), ad.PMS...),
			Sig:  append([]byte(nil), ad.Sig...),
		}
	}
	return cp
}

// RemoveSignatures strips every AD marking's signature, as registration
// does before handing a PCB to the path server (spec.md §4.6, §4.7).
func (s *PathSegment) RemoveSignatures() {
	for i := range s.Ads {
		s.Ads[i].Sig = nil
	}
}
