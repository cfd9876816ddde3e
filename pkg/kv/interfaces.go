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

//go:generate mockgen -destination=mock_kv.go -package=kv github.com/carverauto/snmpbooster/pkg/kv Store

// Package kv pkg/kv/interfaces.go
package kv

import (
	"context"
)

// Store defines the backing store primitives the cache is built on.
// Point values and sets live in separate namespaces; Scan lists keys from both.
type Store interface {
	// Get retrieves the value associated with the given key.
	// Returns the value as a byte slice, a boolean indicating if the key was found, and an error if the operation fails.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetEntry retrieves the value together with its revision.
	GetEntry(ctx context.Context, key string) (Entry, error)

	// Set stores a value under the given key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Create stores a value only if the key does not already exist.
	// Returns ErrKeyExists if it does.
	Create(ctx context.Context, key string, value []byte) (uint64, error)

	// Update performs a compare-and-swap write using the provided revision.
	// Returns ErrCASMismatch when the stored revision differs.
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)

	// SetAdd adds members to the set stored at key. Adding an existing member is a no-op.
	SetAdd(ctx context.Context, key string, members ...string) error

	// SetMembers returns the members of the set stored at key, sorted.
	// A missing set yields an empty slice.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Scan returns every key matching the glob pattern ('*' and '?'), sorted.
	Scan(ctx context.Context, pattern string) ([]string, error)

	// Delete removes the given keys from both namespaces and returns how many keys existed.
	Delete(ctx context.Context, keys ...string) (int, error)

	// Flush removes every key in the store.
	Flush(ctx context.Context) error

	// Close shuts down the store, releasing any resources (e.g., connections).
	Close() error
}
