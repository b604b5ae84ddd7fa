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

package periodic

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetric is the concrete metrics.ExportMetric backing every Runner
// started by the beacon server, exported through prometheus/client_golang.
type PromMetric struct {
	runs     *prometheus.CounterVec
	period   *prometheus.GaugeVec
	runtime  *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
}

// NewPromMetric registers a PromMetric's collectors with reg and namespaces
// them under namespace_subsystem.
func NewPromMetric(reg prometheus.Registerer, namespace, subsystem string) *PromMetric {
	m := &PromMetric{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Number of periodic task runs started.",
		}, []string{"task"}),
		period: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "period_seconds",
			Help:      "Configured tick interval, in seconds.",
		}, []string{"task"}),
		runtime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runtime_seconds",
			Help:      "Duration of each task run, in seconds.",
		}, []string{"task"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the most recent run start.",
		}, []string{"task"}),
	}
	reg.MustRegister(m.runs, m.period, m.runtime, m.lastRun)
	return m
}

// ForTask returns an ExportMetric scoped to a single task name.
func (m *PromMetric) ForTask(task string) *taskMetric {
	return &taskMetric{m: m, task: task}
}

type taskMetric struct {
	m    *PromMetric
	task string
}

func (t *taskMetric) Event(string) {
	t.m.runs.WithLabelValues(t.task).Inc()
}

func (t *taskMetric) Period(d time.Duration) {
	t.m.period.WithLabelValues(t.task).Set(d.Seconds())
}

func (t *taskMetric) Runtime(d time.Duration) {
	t.m.runtime.WithLabelValues(t.task).Observe(d.Seconds())
}

func (t *taskMetric) StartTimestamp(ts time.Time) {
	t.m.lastRun.WithLabelValues(t.task).Set(float64(ts.Unix()))
}
