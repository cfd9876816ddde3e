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

package snmp

import "errors"

var (
	// ErrClosed is returned when submitting to a closed engine.
	ErrClosed = errors.New("snmp: engine closed")
	// ErrAgent wraps a non-zero error-status returned by the agent.
	ErrAgent = errors.New("snmp: agent error")
	// ErrUnsupportedVersion is returned for an unknown protocol version.
	ErrUnsupportedVersion = errors.New("snmp: unsupported version")
	// ErrUnknownKind is returned for a request kind the engine cannot perform.
	ErrUnknownKind = errors.New("snmp: unknown request kind")

	errNoOIDs       = errors.New("request has no OIDs")
	errNoAddress    = errors.New("target address is required")
	errNilResponse  = errors.New("agent returned no packet")
	errUnknownAuth  = errors.New("unknown v3 auth protocol")
	errUnknownPriv  = errors.New("unknown v3 privacy protocol")
	errUsernameReq  = errors.New("v3 requires a username")
)
