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

package pathstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnotherKamila/scion/go/lib/addr"
	"github.com/AnotherKamila/scion/go/lib/ctrl/pathpolicy"
	"github.com/AnotherKamila/scion/go/lib/ctrl/pathstore"
	"github.com/AnotherKamila/scion/go/lib/ctrl/seg"
)

func segWithHops(n int, ads ...addr.AD) *seg.PathSegment {
	s := &seg.PathSegment{}
	for i := 0; i < n; i++ {
		ad := addr.AD(i + 1)
		if i < len(ads) {
			ad = ads[i]
		}
		s.AddAD(seg.ADMarking{PCBM: seg.PCBMarking{AdId: ad, Hof: seg.HopField{IngressIf: addr.IfId(i), EgressIf: addr.IfId(i + 1)}}})
	}
	return s
}

// S5 — Path store ranking.
func TestGetPathsOrdersByFidelityDescending(t *testing.T) {
	policy := pathpolicy.Default()
	policy.PropertyWeights["HopsLength"] = 1.0
	store := pathstore.New(policy)

	now := time.Now()
	r3 := pathstore.NewRecord(segWithHops(3), now)
	r4 := pathstore.NewRecord(segWithHops(4), now)
	r5 := pathstore.NewRecord(segWithHops(5), now)

	store.AddRecord(r5)
	store.AddRecord(r4)
	store.AddRecord(r3)

	got := store.GetPaths(3)
	require.Len(t, got, 3)
	assert.Equal(t, 3, got[0].HopsLength)
	assert.Equal(t, 4, got[1].HopsLength)
	assert.Equal(t, 5, got[2].HopsLength)
}

// S6 — Eviction.
func TestAddRecordEvictsLowestFidelityOverCapacity(t *testing.T) {
	policy := pathpolicy.Default()
	policy.CandidatesSetSize = 2
	store := pathstore.New(policy)

	now := time.Now()
	for i, fidelity := range []float64{0.1, 0.2, 0.3} {
		// Distinct ADs give distinct segment IDs, so no insert is deduplicated.
		r := pathstore.NewRecord(segWithHops(1, addr.AD(10+i)), now)
		r.GuaranteedBandwidth = fidelity
		policy.PropertyWeights["GuaranteedBandwidth"] = 1.0
		store.AddRecord(r)
	}

	assert.Equal(t, 2, store.Len())
	remaining := store.GetCandidates(2)
	var fidelities []float64
	for _, r := range remaining {
		fidelities = append(fidelities, r.Fidelity)
	}
	assert.ElementsMatch(t, []float64{0.2, 0.3}, fidelities)
}

func TestAddRecordDedupPreservesLastSentTime(t *testing.T) {
	policy := pathpolicy.Default()
	store := pathstore.New(policy)

	pcb := segWithHops(2, 11, 12)
	r1 := pathstore.NewRecord(pcb, time.Now())
	r1.LastSentTime = 42
	store.AddRecord(r1)

	r2 := pathstore.NewRecord(pcb, time.Now())
	require.Zero(t, r2.LastSentTime)
	store.AddRecord(r2)

	require.Equal(t, 1, store.Len())
	got := store.GetCandidates(1)
	assert.EqualValues(t, 42, got[0].LastSentTime)
}

func TestDisjointnessReflectsOverlapAcrossCandidates(t *testing.T) {
	policy := pathpolicy.Default()
	store := pathstore.New(policy)

	shared := addr.AD(99)
	pcbA := segWithHops(1, shared)
	pcbB := segWithHops(1, shared)
	// Same AD, different egress interface: a distinct segment ID, so pcbB
	// is not deduplicated against pcbA.
	pcbB.Ads[0].PCBM.Hof.EgressIf = 2
	pcbC := segWithHops(1, 7)

	store.AddRecord(pathstore.NewRecord(pcbA, time.Now()))
	store.AddRecord(pathstore.NewRecord(pcbB, time.Now()))
	store.AddRecord(pathstore.NewRecord(pcbC, time.Now()))

	for _, r := range store.GetCandidates(3) {
		if r.PCB.Ads[0].PCBM.AdId == shared {
			assert.Equal(t, 2, r.Disjointness)
		} else {
			assert.Equal(t, 1, r.Disjointness)
		}
	}
}

func TestStoreSelectionClearsCandidatesAndRecordsHistory(t *testing.T) {
	policy := pathpolicy.Default()
	policy.HistoryLimit = 1
	store := pathstore.New(policy)

	store.AddRecord(pathstore.NewRecord(segWithHops(1), time.Now()))
	store.AddRecord(pathstore.NewRecord(segWithHops(2), time.Now()))

	selection := store.StoreSelection(2)
	assert.Len(t, selection, 2)
	assert.Zero(t, store.Len())

	store.AddRecord(pathstore.NewRecord(segWithHops(3), time.Now()))
	store.StoreSelection(1)

	last := store.LastSelection(1)
	require.Len(t, last, 1)
	assert.Equal(t, 3, last[0].HopsLength)
}
