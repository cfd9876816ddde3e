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
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

const cycleSpanName = "booster.cycle"

var errNilTransport = errors.New("dispatcher needs a transport")

// Options carries the collaborators of a Dispatcher. Only Transport is required.
type Options struct {
	Queue     *TaskQueue
	Transport snmp.Transport
	Cache     CacheWriter
	Clock     Clock
	Metrics   *Metrics
	Logger    logger.Logger
	Tracer    trace.Tracer
}

// CycleStats summarizes one dispatcher cycle.
type CycleStats struct {
	Submitted int
	Dropped   int
	Rounds    int
	Delivered int
	FollowUps int
}

type inflight struct {
	req     *snmp.Request
	handler Handler
	taskID  string
	host    string
}

// Dispatcher drains the task queue in bursts, drives the transport and
// delivers completed responses to their handlers. Cycle and Run must be
// called from a single goroutine.
type Dispatcher struct {
	config    Config
	queue     *TaskQueue
	transport snmp.Transport
	clock     Clock
	logger    logger.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	sink      *Sink

	inflight []inflight
	pending  atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher. cfg is validated and defaulted.
func NewDispatcher(cfg Config, opts Options) (*Dispatcher, error) {
	if opts.Transport == nil {
		return nil, errNilTransport
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if opts.Queue == nil {
		opts.Queue = NewTaskQueue()
	}

	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}

	if opts.Logger == nil {
		opts.Logger = logger.Wrap(logger.WithComponent("booster"))
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(meterName)
	}

	reporter := NewReporter(cfg.ErrorBuffer, opts.Metrics, opts.Logger)

	return &Dispatcher{
		config:    cfg,
		queue:     opts.Queue,
		transport: opts.Transport,
		clock:     opts.Clock,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		sink: &Sink{
			results:  make(chan Result, cfg.ResultBuffer),
			reporter: reporter,
			metrics:  opts.Metrics,
			registry: NewRegistry(cfg.AccumulatorTTL.Std(), reporter),
			cache:    opts.Cache,
			clock:    opts.Clock,
			logger:   opts.Logger,
		},
		done: make(chan struct{}),
	}, nil
}

// Enqueue adds a task to the queue.
func (d *Dispatcher) Enqueue(task *PollTask) {
	d.queue.Enqueue(task)
}

// Queue returns the task queue.
func (d *Dispatcher) Queue() *TaskQueue {
	return d.queue
}

// Sink returns what response handlers deliver into.
func (d *Dispatcher) Sink() *Sink {
	return d.sink
}

// Results returns the result channel.
func (d *Dispatcher) Results() <-chan Result {
	return d.sink.results
}

// Errors returns the error channel.
func (d *Dispatcher) Errors() <-chan *EngineError {
	return d.sink.reporter.Errors()
}

// InFlight returns how many submitted requests are awaiting delivery.
func (d *Dispatcher) InFlight() int {
	return int(d.pending.Load())
}

// Run executes cycles until ctx is canceled or Stop is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := d.clock.Ticker(d.config.CycleInterval.Std())
	defer ticker.Stop()

	d.logger.Info().
		Int("burst_size", d.config.BurstSize).
		Dur("cycle_interval", d.config.CycleInterval.Std()).
		Msg("Starting dispatcher")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.done:
			return nil
		default:
		}

		d.Cycle(ctx)

		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Dispatcher context canceled")

			return ctx.Err()
		case <-d.done:
			d.logger.Info().Msg("Dispatcher stopped")

			return nil
		case <-ticker.Chan():
		}
	}
}

// Stop ends Run after the current cycle.
func (d *Dispatcher) Stop() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
}

// Cycle runs one dispatcher cycle: submit a burst of tasks, process the
// transport and deliver completed responses, repeating while handlers issue
// follow-up requests.
func (d *Dispatcher) Cycle(ctx context.Context) CycleStats {
	start := d.clock.Now()

	ctx, span := d.tracer.Start(ctx, cycleSpanName)

	var stats CycleStats

	defer func() {
		d.sink.registry.Expire()
		d.pending.Store(int64(len(d.inflight)))
		d.metrics.cycleFinished(ctx, d.clock.Now().Sub(start))

		span.SetAttributes(
			attribute.Int("booster.submitted", stats.Submitted),
			attribute.Int("booster.dropped", stats.Dropped),
			attribute.Int("booster.rounds", stats.Rounds),
			attribute.Int("booster.delivered", stats.Delivered),
			attribute.Int("booster.inflight", len(d.inflight)),
		)
		span.End()
	}()

	for _, task := range d.queue.Drain(d.config.BurstSize) {
		if d.submit(ctx, task) {
			stats.Submitted++
		} else {
			stats.Dropped++
		}
	}

	if len(d.inflight) == 0 {
		return stats
	}

	for stats.Rounds < d.config.MaxRoundsPerCycle {
		stats.Rounds++

		if _, err := d.transport.Process(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Transport processing failed")

			if ctx.Err() != nil {
				break
			}
		}

		delivered, followUps := d.deliver(ctx)
		stats.Delivered += delivered
		stats.FollowUps += followUps

		if followUps == 0 {
			break
		}
	}

	return stats
}

func (d *Dispatcher) submit(ctx context.Context, task *PollTask) bool {
	if err := task.Validate(); err != nil {
		d.drop(ctx, task, err)

		return false
	}

	req := task.request()

	if err := d.transport.Submit(req); err != nil {
		d.drop(ctx, task, fmt.Errorf("%w: %w", ErrMalformedTask, err))

		return false
	}

	d.inflight = append(d.inflight, inflight{req: req, handler: task.Handler, taskID: task.ID, host: task.Host})
	d.metrics.taskSubmitted(ctx)

	return true
}

func (d *Dispatcher) drop(ctx context.Context, task *PollTask, err error) {
	e := &EngineError{Op: "submit", Err: err}

	if task != nil {
		e.TaskID = task.ID
		e.Host = task.Host

		if a, ok := task.Handler.(abandoner); ok {
			a.Abandon(ctx)
		}
	}

	d.sink.reporter.Report(ctx, e)
	d.metrics.taskDropped(ctx)
}

// deliver hands every completed response to its handler and submits follow-ups.
func (d *Dispatcher) deliver(ctx context.Context) (delivered, followUps int) {
	remaining := make([]inflight, 0, len(d.inflight))

	for _, f := range d.inflight {
		var resp *snmp.Response

		select {
		case resp = <-f.req.Done():
		default:
			remaining = append(remaining, f)

			continue
		}

		delivered++

		next := d.handle(ctx, f, resp)
		if next == nil {
			continue
		}

		if err := d.transport.Submit(next); err != nil {
			d.sink.reporter.Report(ctx, &EngineError{Op: "follow_up", TaskID: f.taskID, Host: f.host, Err: err})

			continue
		}

		remaining = append(remaining, inflight{req: next, handler: f.handler, taskID: f.taskID, host: f.host})
		followUps++
	}

	d.inflight = remaining

	return delivered, followUps
}

func (d *Dispatcher) handle(ctx context.Context, f inflight, resp *snmp.Response) (next *snmp.Request) {
	defer func() {
		if r := recover(); r != nil {
			d.sink.reporter.Report(ctx, &EngineError{
				Op:     "handle",
				TaskID: f.taskID,
				Host:   f.host,
				Err:    fmt.Errorf("%w: %v", ErrHandlerPanic, r),
			})

			next = nil
		}
	}()

	return f.handler.HandleResponse(ctx, resp)
}
