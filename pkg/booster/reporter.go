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
	"errors"
	"sync/atomic"

	"github.com/carverauto/snmpbooster/pkg/cache"
	"github.com/carverauto/snmpbooster/pkg/logger"
)

// Reporter is the engine's error channel. Every report is logged and counted;
// it is then offered to a bounded channel and discarded if nobody is reading.
type Reporter struct {
	errs     chan *EngineError
	logger   logger.Logger
	metrics  *Metrics
	overflow atomic.Int64
}

// NewReporter creates a reporter whose channel holds up to buffer errors.
func NewReporter(buffer int, metrics *Metrics, log logger.Logger) *Reporter {
	return &Reporter{
		errs:    make(chan *EngineError, buffer),
		logger:  log,
		metrics: metrics,
	}
}

// Errors returns the channel reported errors are delivered on.
func (r *Reporter) Errors() <-chan *EngineError {
	return r.errs
}

// Overflow returns how many reports did not fit in the channel.
func (r *Reporter) Overflow() int64 {
	return r.overflow.Load()
}

// Report records one engine error. It never blocks.
func (r *Reporter) Report(ctx context.Context, e *EngineError) {
	kind := errorKind(e.Err)

	event := r.logger.Error()
	if kind == "malformed_task" || kind == "response_mismatch" {
		event = r.logger.Warn()
	}

	event.Err(e.Err).
		Str("op", e.Op).
		Str("task_id", e.TaskID).
		Str("host", e.Host).
		Str("kind", kind).
		Msg("Polling engine error")

	r.metrics.errorReported(ctx, kind)

	select {
	case r.errs <- e:
	default:
		r.overflow.Add(1)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedTask):
		return "malformed_task"
	case errors.Is(err, ErrResponseMismatch):
		return "response_mismatch"
	case errors.Is(err, ErrIncompleteResult):
		return "incomplete_result"
	case errors.Is(err, ErrResultDropped):
		return "result_dropped"
	case errors.Is(err, ErrHandlerPanic):
		return "handler_panic"
	case errors.Is(err, ErrRequestFailed):
		return "request_failed"
	case errors.Is(err, cache.ErrTransientWrite),
		errors.Is(err, cache.ErrConnection),
		errors.Is(err, cache.ErrCorruptRecord):
		return "cache"
	default:
		return "other"
	}
}
