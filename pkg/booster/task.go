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

	"github.com/google/uuid"

	"github.com/carverauto/snmpbooster/pkg/snmp"
)

// Handler consumes the response of a request. A non-nil return value is a
// follow-up request that is submitted in the same cycle.
type Handler interface {
	HandleResponse(ctx context.Context, resp *snmp.Response) *snmp.Request
}

// abandoner is implemented by handlers that hold resources until their
// response arrives. It is called when the task is dropped before submission.
type abandoner interface {
	Abandon(ctx context.Context)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, resp *snmp.Response) *snmp.Request

func (f HandlerFunc) HandleResponse(ctx context.Context, resp *snmp.Response) *snmp.Request {
	return f(ctx, resp)
}

// PollTask is one unit of work for the dispatcher. It must not be modified
// after it is enqueued.
type PollTask struct {
	ID             string
	Kind           snmp.Kind
	Host           string
	Auth           snmp.Auth
	Target         snmp.Target
	OIDs           []string
	NonRepeaters   uint8
	MaxRepetitions uint32
	Handler        Handler
}

// NewPollTask creates a task with a fresh ID.
func NewPollTask(kind snmp.Kind, host string, auth snmp.Auth, target snmp.Target, oids []string, handler Handler) *PollTask {
	return &PollTask{
		ID:      uuid.NewString(),
		Kind:    kind,
		Host:    host,
		Auth:    auth,
		Target:  target,
		OIDs:    oids,
		Handler: handler,
	}
}

// Validate reports why a task cannot be submitted.
func (t *PollTask) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: %w", ErrMalformedTask, errNilTask)
	}

	switch t.Kind {
	case snmp.KindGet, snmp.KindGetNext:
	case snmp.KindGetBulk:
		if t.MaxRepetitions == 0 {
			return fmt.Errorf("%w: %w", ErrMalformedTask, errMissingBulkParams)
		}
	default:
		return fmt.Errorf("%w: %w: %s", ErrMalformedTask, errMissingKind, t.Kind)
	}

	if len(t.OIDs) == 0 {
		return fmt.Errorf("%w: %w", ErrMalformedTask, errMissingOIDs)
	}

	if t.Target.Address == "" {
		return fmt.Errorf("%w: %w", ErrMalformedTask, errMissingTarget)
	}

	if t.Handler == nil {
		return fmt.Errorf("%w: %w", ErrMalformedTask, errMissingHandler)
	}

	if err := t.Auth.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedTask, err)
	}

	return nil
}

// request builds the transport request for the task.
func (t *PollTask) request() *snmp.Request {
	req := snmp.NewRequest(t.Kind, t.Auth, t.Target, t.OIDs)
	req.NonRepeaters = t.NonRepeaters
	req.MaxRepetitions = t.MaxRepetitions

	return req
}
