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

package cache

import "errors"

var (
	// ErrConnection means the backing store could not be reached.
	ErrConnection = errors.New("cache: connection error")
	// ErrTransientWrite means a single merge-write was rejected; the caller may retry.
	ErrTransientWrite = errors.New("cache: transient write error")
	// ErrCorruptRecord means a stored payload could not be decoded.
	ErrCorruptRecord = errors.New("cache: corrupt record")
	// ErrNotFound means no record exists for the requested key.
	ErrNotFound = errors.New("cache: record not found")

	errNotConnected       = errors.New("cache: not connected")
	errMissingIdentity    = errors.New("record requires host and service")
	errInvalidInterval    = errors.New("check_interval must be positive")
	errEmptyMerge         = errors.New("merged record is empty")
	errNegativeInterval   = errors.New("merged record has negative check_interval")
	errInvalidSearchRegex = errors.New("invalid search expression")
	errEmptyPayload       = errors.New("empty payload")
	errTrailingData       = errors.New("trailing data after record")
)
