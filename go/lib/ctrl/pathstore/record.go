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

// Package pathstore is the Path Store (spec.md §4.4): a bounded ranked pool
// of PathStoreRecords with disjointness and fidelity updates.
package pathstore

import (
	"time"

	"github.com/AnotherKamila/scion/go/lib/ctrl/pathpolicy"
	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
)

// Record is a PathStoreRecord: one PCB's entry in the Path Store, plus the
// properties derived at insertion and recomputed on every subsequent
// insertion into the same store (spec.md §3).
type Record struct {
	PCB *seg.PathSegment
	ID  [32]byte

	PeerLinks  int
	HopsLength int
	DelayTime  int64

	Disjointness int
	Fidelity     float64

	LastSentTime int64
	LastSeenTime int64

	GuaranteedBandwidth float64
	AvailableBandwidth  float64
	TotalBandwidth      float64
}

// NewRecord builds a Record from pcb, with LastSeenTime set to now and
// DelayTime derived from the PCB's reconstructed creation timestamp.
func NewRecord(pcb *seg.PathSegment, now time.Time) *Record {
	seen := now.Unix()
	delay := seen - pcb.Timestamp().Unix()
	if delay <= 0 {
		// A PCB received in the same second it was produced: spec.md
		// §4.4 mandates 1 rather than a zero or negative divisor.
		delay = 1
	}
	return &Record{
		PCB:        pcb,
		ID:         pcb.SegmentID(),
		PeerLinks:  pcb.NPeerLinks(),
		HopsLength: pcb.NHops(),
		DelayTime:  delay,
		LastSeenTime: seen,
	}
}

// UpdateFidelity recomputes Fidelity from the record's current properties
// and policy's weights, in the exact term order of spec.md §4.4.
func (r *Record) UpdateFidelity(policy *pathpolicy.Policy, now time.Time) {
	w := policy.PropertyWeights
	hopsLength := r.HopsLength
	if hopsLength <= 0 {
		hopsLength = 1
	}
	delayTime := r.DelayTime
	if delayTime <= 0 {
		delayTime = 1
	}
	sinceSent := float64(now.Unix() - r.LastSentTime)

	f := 0.0
	f += w["PeerLinks"] * float64(r.PeerLinks)
	f += w["HopsLength"] / float64(hopsLength)
	f += w["Disjointness"] * float64(r.Disjointness)
	f += w["LastSentTime"] * (sinceSent * sinceSent)
	f += w["LastSeenTime"] * float64(r.LastSeenTime)
	f += w["DelayTime"] / float64(delayTime)
	f += w["GuaranteedBandwidth"] * r.GuaranteedBandwidth
	f += w["AvailableBandwidth"] * r.AvailableBandwidth
	f += w["TotalBandwidth"] * r.TotalBandwidth
	r.Fidelity = f
}
