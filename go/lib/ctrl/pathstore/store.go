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

package pathstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AnotherKamila/scion/go/lib/ctrl/pathpolicy"
)

// Store is the Path Store: a bounded, fidelity-ranked pool of candidate
// path segments (spec.md §4.4). It is safe for concurrent use.
type Store struct {
	mtx    sync.Mutex
	policy *pathpolicy.Policy

	candidates []*Record
	// history is ordered newest-first: history[0] is the most recent
	// selection (spec.md §9: store_selection inserts at the front).
	history [][]*Record
}

// New returns an empty Store governed by policy.
func New(policy *pathpolicy.Policy) *Store {
	return &Store{policy: policy}
}

// AddRecord adds or refreshes r in the candidate pool (spec.md §4.4):
//   - if a record with the same ID already exists, r inherits its
//     LastSentTime and the old entry is removed;
//   - disjointness and fidelity are recomputed over the whole pool;
//   - candidates are sorted ascending by fidelity;
//   - if the pool now exceeds CandidatesSetSize, the lowest-fidelity
//     record (index 0 after the ascending sort) is evicted.
func (s *Store) AddRecord(r *Record) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for i, c := range s.candidates {
		if c.ID == r.ID {
			r.LastSentTime = c.LastSentTime
			s.candidates = append(s.candidates[:i], s.candidates[i+1:]...)
			break
		}
	}
	s.candidates = append(s.candidates, r)

	now := time.Now()
	s.updateAllDisjointness()
	s.updateAllFidelity(now)

	sort.SliceStable(s.candidates, func(i, j int) bool {
		return s.candidates[i].Fidelity < s.candidates[j].Fidelity
	})
	if len(s.candidates) > s.policy.CandidatesSetSize {
		s.candidates = s.candidates[1:]
	}
}

// updateAllDisjointness recomputes every candidate's disjointness: the sum,
// over the AD markings it contains, of how many times each AD id occurs
// across the whole candidate pool (spec.md §4.4).
func (s *Store) updateAllDisjointness() {
	counts := make(map[uint32]int)
	for _, c := range s.candidates {
		for _, ad := range c.PCB.Ads {
			counts[uint32(ad.PCBM.AdId)]++
		}
	}
	for _, c := range s.candidates {
		total := 0
		for _, ad := range c.PCB.Ads {
			total += counts[uint32(ad.PCBM.AdId)]
		}
		c.Disjointness = total
	}
}

func (s *Store) updateAllFidelity(now time.Time) {
	for _, c := range s.candidates {
		c.UpdateFidelity(s.policy, now)
	}
}

// GetCandidates returns the first k records (the lowest-fidelity end) of
// the current candidate pool.
func (s *Store) GetCandidates(k int) []*Record {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if k > len(s.candidates) {
		k = len(s.candidates)
	}
	out := make([]*Record, k)
	copy(out, s.candidates[:k])
	return out
}

// GetPaths returns the top k records in descending fidelity order.
func (s *Store) GetPaths(k int) []*Record {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.topK(k)
}

// topK must be called with s.mtx held.
func (s *Store) topK(k int) []*Record {
	n := len(s.candidates)
	if k > n {
		k = n
	}
	out := make([]*Record, k)
	for i := 0; i < k; i++ {
		out[i] = s.candidates[n-1-i]
	}
	return out
}

// StoreSelection snapshots the current top-k (spec.md §9: "must be
// snapshotted before candidates is cleared"), pushes it onto the front of
// the history, truncates the history to HistoryLimit entries (dropping the
// oldest first) when HistoryLimit > 0, and clears the candidate pool.
func (s *Store) StoreSelection(k int) []*Record {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	selection := s.topK(k)
	s.history = append([][]*Record{selection}, s.history...)
	if s.policy.HistoryLimit > 0 && len(s.history) > s.policy.HistoryLimit {
		s.history = s.history[:s.policy.HistoryLimit]
	}
	s.candidates = nil
	return selection
}

// LastSelection returns up to k records from the most recent stored
// selection (supplemental: ports the original's get_last_selection).
func (s *Store) LastSelection(k int) []*Record {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if len(s.history) == 0 {
		return nil
	}
	latest := s.history[0]
	if k > len(latest) {
		k = len(latest)
	}
	out := make([]*Record, k)
	copy(out, latest[:k])
	return out
}

// Len returns the number of candidates currently in the pool.
func (s *Store) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.candidates)
}

// String renders a human-readable summary of the store's current state,
// for operational debugging (ported from the original's PathStore.__str__).
func (s *Store) String() string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return fmt.Sprintf("PathStore{candidates=%d history=%d}", len(s.candidates), len(s.history))
}
