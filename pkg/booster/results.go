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
	"fmt"

	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
)

// ResultKind tags what a Result carries.
type ResultKind string

const (
	// ResultPoll carries the full snapshot of a completed accumulator.
	ResultPoll ResultKind = "poll"
	// ResultService carries one service record after its values were projected.
	ResultService ResultKind = "service"
	// ResultMapping carries the outcome of a table walk.
	ResultMapping ResultKind = "mapping"
)

// Result is one item on the result channel. Exactly one payload field is set.
type Result struct {
	Kind    ResultKind
	Poll    *PollResult
	Service *ServiceResult
	Mapping *MappingResult
}

// PollResult is the snapshot of a completed accumulator.
type PollResult struct {
	AccumulatorID string
	Entries       map[string]Entry
}

// ServiceResult is the per-service placeholder values are projected into.
type ServiceResult struct {
	Host    string
	Service string
	Record  *models.ServiceRecord
	State   models.ServiceState
}

func (r *ServiceResult) clone() *ServiceResult {
	out := *r
	out.Record = r.Record.Clone()

	return &out
}

// MappingResult is the outcome of a table walk.
type MappingResult struct {
	Host       string
	RootOID    string
	Discovered map[string]string
	Finished   bool
	Err        error
}

// CacheWriter is the part of the cache the engine writes through.
type CacheWriter interface {
	UpdateService(ctx context.Context, host, service string, data *models.ServiceRecord) error
}

// Sink is what response handlers deliver into: the result channel, the error
// reporter, the accumulator registry and the cache.
type Sink struct {
	results  chan Result
	reporter *Reporter
	metrics  *Metrics
	registry *Registry
	cache    CacheWriter
	clock    Clock
	logger   logger.Logger
}

// Reporter returns the error reporter.
func (s *Sink) Reporter() *Reporter {
	return s.reporter
}

// Registry returns the accumulator registry.
func (s *Sink) Registry() *Registry {
	return s.registry
}

// emit offers r to the result channel without blocking.
func (s *Sink) emit(ctx context.Context, host string, r Result) {
	select {
	case s.results <- r:
		s.metrics.resultEmitted(ctx, r.Kind)
	default:
		s.reporter.Report(ctx, &EngineError{
			Op:   "emit",
			Host: host,
			Err:  fmt.Errorf("%w: %s", ErrResultDropped, r.Kind),
		})
	}
}

// writeCache merges data into the cached record, reporting failures.
func (s *Sink) writeCache(ctx context.Context, host, service string, data *models.ServiceRecord) {
	if s.cache == nil {
		return
	}

	if err := s.cache.UpdateService(ctx, host, service, data); err != nil {
		s.reporter.Report(ctx, &EngineError{Op: "cache_write", Host: host, Err: err})
	}
}
