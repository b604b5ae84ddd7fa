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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AnotherKamila/scion/go/lib/periodic"
)

const (
	promNamespace = "beacon_server"
)

// Metrics groups the Beacon Server's own prometheus metrics, plus the
// periodic.PromMetric factory its two periodic.Runners report through.
type Metrics struct {
	registry *prometheus.Registry

	BeaconQueueLen prometheus.Gauge
	RegQueueLen    prometheus.Gauge
	BeaconsSent    prometheus.Counter
	BeaconsRecv    prometheus.Counter
	PCBsDropped    *prometheus.CounterVec
	VerifyMisses   prometheus.Counter
	Segments       *prometheus.CounterVec

	Periodic *periodic.PromMetric
}

// NewMetrics builds the Beacon Server's metrics against a registry scoped
// to this one instance, in the teacher's promauto style. Each Server gets
// its own prometheus.Registry rather than registering into the global
// DefaultRegisterer, so that running more than one Server in the same
// process (as the test suite does) never trips a duplicate-collector
// panic; NewDebugHandler exposes this registry under /metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		BeaconQueueLen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      "beacon_queue_size",
			Help:      "Number of PCBs currently queued for propagation.",
		}),
		RegQueueLen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      "reg_queue_size",
			Help:      "Number of PCBs currently queued for registration.",
		}),
		BeaconsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "beacons_sent_total",
			Help:      "Total PCBs sent to a neighboring AD.",
		}),
		BeaconsRecv: factory.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "beacons_received_total",
			Help:      "Total inbound BEACON packets received.",
		}),
		PCBsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "pcbs_dropped_total",
			Help:      "Total PCBs dropped, by reason.",
		}, []string{"reason"}),
		VerifyMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "verify_misses_total",
			Help:      "Total PCBs parked pending trust material.",
		}),
		Segments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "segments_registered_total",
			Help:      "Total path segments registered, by type.",
		}, []string{"type"}),
		Periodic: periodic.NewPromMetric(reg, promNamespace, "task"),
	}
}

// Registry returns the prometheus registry this Metrics instance was
// registered against, for exposing /metrics over the debug API.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
