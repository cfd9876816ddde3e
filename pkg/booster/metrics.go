/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package booster

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "snmpbooster/booster"

	metricTasksSubmitted = "booster_tasks_submitted_total"
	metricTasksDropped   = "booster_tasks_dropped_total"
	metricErrors         = "booster_errors_total"
	metricResults        = "booster_results_emitted_total"
	metricCycleDuration  = "booster_cycle_duration_seconds"
)

// Metrics holds the engine instruments. A nil *Metrics records nothing.
type Metrics struct {
	submitted metric.Int64Counter
	dropped   metric.Int64Counter
	errors    metric.Int64Counter
	results   metric.Int64Counter
	cycle     metric.Float64Histogram
}

// NewMetrics registers the instruments on provider; nil uses the global provider.
func NewMetrics(provider metric.MeterProvider) *Metrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter(meterName)
	m := &Metrics{}

	var err error

	if m.submitted, err = meter.Int64Counter(metricTasksSubmitted,
		metric.WithDescription("Poll tasks submitted to the transport")); err != nil {
		otel.Handle(err)
	}

	if m.dropped, err = meter.Int64Counter(metricTasksDropped,
		metric.WithDescription("Malformed poll tasks dropped by the dispatcher")); err != nil {
		otel.Handle(err)
	}

	if m.errors, err = meter.Int64Counter(metricErrors,
		metric.WithDescription("Errors reported by the polling engine")); err != nil {
		otel.Handle(err)
	}

	if m.results, err = meter.Int64Counter(metricResults,
		metric.WithDescription("Results emitted to the result channel")); err != nil {
		otel.Handle(err)
	}

	if m.cycle, err = meter.Float64Histogram(metricCycleDuration,
		metric.WithDescription("Duration of one dispatcher cycle"),
		metric.WithUnit("s")); err != nil {
		otel.Handle(err)
	}

	return m
}

func (m *Metrics) taskSubmitted(ctx context.Context) {
	if m == nil || m.submitted == nil {
		return
	}

	m.submitted.Add(ctx, 1)
}

func (m *Metrics) taskDropped(ctx context.Context) {
	if m == nil || m.dropped == nil {
		return
	}

	m.dropped.Add(ctx, 1)
}

func (m *Metrics) errorReported(ctx context.Context, kind string) {
	if m == nil || m.errors == nil {
		return
	}

	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) resultEmitted(ctx context.Context, kind ResultKind) {
	if m == nil || m.results == nil {
		return
	}

	m.results.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m *Metrics) cycleFinished(ctx context.Context, d time.Duration) {
	if m == nil || m.cycle == nil {
		return
	}

	m.cycle.Record(ctx, d.Seconds())
}
