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

//go:generate mockgen -destination=mock_snmp.go -package=snmp github.com/carverauto/snmpbooster/pkg/snmp Transport,Client,ClientFactory

package snmp

import "context"

// Transport performs submitted requests. Submit only queues; the network I/O
// happens, and requests are completed, when Process is called.
type Transport interface {
	// Submit queues a request for the next Process call.
	Submit(req *Request) error
	// Process performs all queued I/O and completes each request once.
	// It returns the number of requests completed.
	Process(ctx context.Context) (int, error)
	// Pending returns how many submitted requests await processing.
	Pending() int
	// Close fails queued requests and rejects new ones.
	Close() error
}
