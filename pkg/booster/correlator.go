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

	"github.com/carverauto/snmpbooster/pkg/models"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

const (
	valueSuffix     = "_value"
	lastValueSuffix = "_value_last"
)

// Correlator stores the values of one request into a shared accumulator and
// projects completed services into their records.
type Correlator struct {
	sink *Sink
	acc  *Accumulator
	host string
}

// NewCorrelator binds result to acc and takes a reference on it. The
// accumulator must already be registered.
func NewCorrelator(sink *Sink, acc *Accumulator, result *ServiceResult) *Correlator {
	acc.Bind(result)
	acc.Acquire()

	return &Correlator{sink: sink, acc: acc, host: result.Host}
}

// HandleResponse implements Handler. A correlator never issues follow-ups.
func (c *Correlator) HandleResponse(ctx context.Context, resp *snmp.Response) *snmp.Request {
	defer c.sink.registry.Release(ctx, c.acc)

	if resp.Err != nil {
		c.sink.reporter.Report(ctx, &EngineError{
			Op:     "get",
			TaskID: requestID(resp),
			Host:   c.host,
			Err:    fmt.Errorf("%w: %w", ErrRequestFailed, resp.Err),
		})

		return nil
	}

	if _, live := c.sink.registry.Get(c.acc.ID); !live {
		c.sink.reporter.Report(ctx, &EngineError{
			Op:     "correlate",
			TaskID: requestID(resp),
			Host:   c.host,
			Err:    fmt.Errorf("%w: accumulator %s is no longer live", ErrResponseMismatch, c.acc.ID),
		})

		return nil
	}

	now := c.sink.clock.Now()
	matched, exceptions := 0, 0

	for _, vb := range resp.VarBinds {
		if vb.IsException() {
			if c.acc.tracks(vb.OID) {
				exceptions++
			}

			c.sink.logger.Debug().
				Str("host", c.host).
				Str("oid", vb.OID).
				Msg("Skipping exception value")

			continue
		}

		if c.acc.Store(vb.OID, vb.Value, now) {
			matched++
		}
	}

	if matched == 0 && exceptions == 0 && len(resp.VarBinds) > 0 {
		c.sink.reporter.Report(ctx, &EngineError{
			Op:     "correlate",
			TaskID: requestID(resp),
			Host:   c.host,
			Err:    fmt.Errorf("%w: none of %d values expected", ErrResponseMismatch, len(resp.VarBinds)),
		})
	}

	for _, p := range c.acc.readyServices() {
		c.project(ctx, p)
	}

	if c.acc.claimEmission() {
		c.sink.emit(ctx, c.host, Result{
			Kind: ResultPoll,
			Poll: &PollResult{AccumulatorID: c.acc.ID, Entries: c.acc.Snapshot()},
		})
	}

	return nil
}

// Abandon gives up the reference when the task never reaches the transport.
func (c *Correlator) Abandon(ctx context.Context) {
	c.sink.registry.Release(ctx, c.acc)
}

// project rotates the previous values of a service and writes the new ones.
func (c *Correlator) project(ctx context.Context, p projection) {
	now := c.sink.clock.Now()
	result := p.result

	if result.Record == nil {
		result.Record = &models.ServiceRecord{Host: result.Host, Service: result.Service}
	}

	rec := result.Record
	if rec.DS == nil {
		rec.DS = make(map[string]models.Attributes)
	}

	delta := &models.ServiceRecord{DS: make(map[string]models.Attributes, len(p.values))}

	for _, v := range p.values {
		ds := rec.DS[v.DSName]
		if ds == nil {
			ds = make(models.Attributes)
			rec.DS[v.DSName] = ds
		}

		changed := delta.DS[v.DSName]
		if changed == nil {
			changed = make(models.Attributes)
			delta.DS[v.DSName] = changed
		}

		if prev, ok := ds[v.OIDType+valueSuffix]; ok && prev != nil {
			ds[v.OIDType+lastValueSuffix] = prev
			changed[v.OIDType+lastValueSuffix] = prev
		}

		ds[v.OIDType+valueSuffix] = v.Value
		changed[v.OIDType+valueSuffix] = v.Value
	}

	rec.LastCheckTime = rec.CheckTime
	rec.CheckTime = &now
	result.State = models.ServiceStateReceived

	delta.CheckTime = rec.CheckTime
	delta.LastCheckTime = rec.LastCheckTime

	c.sink.writeCache(ctx, result.Host, result.Service, delta)
	c.sink.emit(ctx, result.Host, Result{Kind: ResultService, Service: result.clone()})
}

func requestID(resp *snmp.Response) string {
	if resp == nil || resp.Request == nil {
		return ""
	}

	return resp.Request.ID
}
