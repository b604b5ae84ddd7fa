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

// Package metrics declares the ExportMetric interface the periodic.Runner
// reports to. Its generated mock lives in mock_metrics; the shape here is
// reconstructed from that mock so that mock stays a faithful stand-in.
package metrics

import "time"

// ExportMetric is the observability sink a periodic.Runner feeds.
type ExportMetric interface {
	// Event records that a run started, for services that only care about
	// run counts (e.g. as a prometheus counter increment).
	Event(name string)
	// Period reports the configured tick interval.
	Period(d time.Duration)
	// Runtime reports how long the most recent run took.
	Runtime(d time.Duration)
	// StartTimestamp reports when the most recent run started.
	StartTimestamp(t time.Time)
}
