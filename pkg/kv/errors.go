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

package kv

import (
	"errors"
)

var (
	errUnknownBackend      = errors.New("unknown kv backend")
	errNatsURLRequired     = errors.New("nats_url is required")
	errPostgresDSNRequired = errors.New("postgres_dsn is required")
	errNilConfig           = errors.New("kv: nil config provided")
	errEmptyKey            = errors.New("kv: empty key")
	errSetContention       = errors.New("kv: set update contention")
)

// ErrUnavailable marks failures caused by the store being unreachable; callers may reconnect.
var ErrUnavailable = errors.New("kv: store unavailable")

// ErrCASMismatch indicates a compare-and-swap failure due to a stale revision.
var ErrCASMismatch = errors.New("kv: compare-and-swap mismatch")

// ErrKeyExists indicates that a create operation found an existing value.
var ErrKeyExists = errors.New("kv: key already exists")
