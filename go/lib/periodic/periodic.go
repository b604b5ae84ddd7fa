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

// Package periodic provides the timed-worker skeleton shared by the
// propagation and registration loops (spec.md §4.5, §5): a Task run on a
// fixed interval, with its run count/duration/start-time exported to a
// metrics sink.
package periodic

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AnotherKamila/scion/go/lib/log"
	"github.com/AnotherKamila/scion/go/lib/periodic/internal/metrics"
)

// Task is one tick's worth of work. Implementations must not block forever;
// ctx carries a deadline of one interval from the start of the run. Stop
// does not cancel ctx; it waits for the run to return.
type Task interface {
	Name() string
	Run(ctx context.Context)
}

// TaskFunc adapts a plain function to Task.
type TaskFunc struct {
	TaskName string
	Func     func(ctx context.Context)
}

func (f TaskFunc) Name() string                { return f.TaskName }
func (f TaskFunc) Run(ctx context.Context)     { f.Func(ctx) }

// Runner ticks a Task on a fixed interval until Stop is called.
type Runner struct {
	task     Task
	interval time.Duration
	metric   metrics.ExportMetric

	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Start creates and starts a Runner. If metric is nil, no metrics are
// reported.
func Start(task Task, interval time.Duration, metric metrics.ExportMetric) *Runner {
	r := &Runner{
		task:     task,
		interval: interval,
		metric:   metric,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if r.metric != nil {
		r.metric.Period(interval)
	}
	go r.loop()
	return r
}

func (r *Runner) loop() {
	defer close(r.stopped)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.runOnce()
		}
	}
}

func (r *Runner) runOnce() {
	start := time.Now()
	if r.metric != nil {
		r.metric.Event(r.task.Name())
		r.metric.StartTimestamp(start)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("periodic task panicked", zap.String("task", r.task.Name()), zap.Any("panic", rec))
		}
	}()
	r.task.Run(ctx)
	if r.metric != nil {
		r.metric.Runtime(time.Since(start))
	}
}

// Stop ends the Runner's loop and waits for any in-flight run to return.
func (r *Runner) Stop() {
	r.once.Do(func() {
		close(r.stop)
	})
	<-r.stopped
}
