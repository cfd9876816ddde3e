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
	"errors"
	"fmt"
)

var (
	// ErrMalformedTask is reported for a task that cannot be submitted.
	ErrMalformedTask = errors.New("malformed poll task")
	// ErrResponseMismatch is reported when a response carries no OID the accumulator expects.
	ErrResponseMismatch = errors.New("response matches no pending OID")
	// ErrIncompleteResult is reported when an accumulator is expired or released before completion.
	ErrIncompleteResult = errors.New("accumulator released incomplete")
	// ErrResultDropped is reported when the result channel is full.
	ErrResultDropped = errors.New("result dropped, channel full")
	// ErrHandlerPanic is reported when a response handler panics.
	ErrHandlerPanic = errors.New("response handler panicked")
	// ErrRequestFailed is reported when the transport completes a request with an error.
	ErrRequestFailed = errors.New("request failed")

	errMissingKind       = errors.New("unknown task kind")
	errMissingOIDs       = errors.New("task has no OIDs")
	errMissingTarget     = errors.New("task has no target address")
	errMissingHandler    = errors.New("task has no response handler")
	errMissingBulkParams = errors.New("bulk task needs max_repetitions")
	errNilTask           = errors.New("nil task")
	errEmptyRootOID      = errors.New("mapping walk needs a root OID")
)

// EngineError describes one failure inside the polling engine.
type EngineError struct {
	Op     string
	TaskID string
	Host   string
	Err    error
}

func (e *EngineError) Error() string {
	switch {
	case e.Host != "" && e.TaskID != "":
		return fmt.Sprintf("%s [task %s, host %s]: %v", e.Op, e.TaskID, e.Host, e.Err)
	case e.Host != "":
		return fmt.Sprintf("%s [host %s]: %v", e.Op, e.Host, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
