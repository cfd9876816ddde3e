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

package main

import (
	"context"
	"time"

	"github.com/carverauto/snmpbooster/pkg/booster"
	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/natsutil"
)

const publishTimeout = 2 * time.Second

// eventSink is the part of natsutil.EventPublisher the daemon publishes through.
type eventSink interface {
	PublishService(ctx context.Context, data natsutil.ServiceEventData) error
	PublishMapping(ctx context.Context, data natsutil.MappingEventData) error
	PublishError(ctx context.Context, data natsutil.ErrorEventData) error
}

// resultPublisher forwards scheduler results and engine errors to NATS.
// Publish failures are logged and never block the scheduler for long.
type resultPublisher struct {
	sink   eventSink
	logger logger.Logger
}

func (p *resultPublisher) onResult(result booster.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	var err error

	switch {
	case result.Kind == booster.ResultService && result.Service != nil:
		r := result.Service
		err = p.sink.PublishService(ctx, natsutil.ServiceEventData{
			Host:    r.Host,
			Service: r.Service,
			State:   r.State,
			Record:  r.Record,
		})
	case result.Kind == booster.ResultMapping && result.Mapping != nil:
		m := result.Mapping
		data := natsutil.MappingEventData{Host: m.Host, RootOID: m.RootOID, Discovered: m.Discovered}

		if m.Err != nil {
			data.Error = m.Err.Error()
		}

		err = p.sink.PublishMapping(ctx, data)
	default:
		return
	}

	if err != nil {
		p.logger.Warn().Err(err).Str("kind", string(result.Kind)).Msg("Failed to publish result")
	}
}

func (p *resultPublisher) onError(engErr *booster.EngineError) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	data := natsutil.ErrorEventData{Op: engErr.Op, TaskID: engErr.TaskID, Host: engErr.Host}

	if engErr.Err != nil {
		data.Error = engErr.Err.Error()
	}

	if err := p.sink.PublishError(ctx, data); err != nil {
		p.logger.Warn().Err(err).Str("op", engErr.Op).Msg("Failed to publish engine error")
	}
}
