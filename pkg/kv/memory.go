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
	"context"
	"sync"
)

type memoryValue struct {
	data     []byte
	revision uint64
}

// MemoryStore is a process-local Store used for tests and single-node runs.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string]memoryValue
	sets     map[string]map[string]struct{}
	revision uint64
	closed   bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryValue),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := m.GetEntry(ctx, key)
	if err != nil {
		return nil, false, err
	}

	return entry.Value, entry.Found, nil
}

func (m *MemoryStore) GetEntry(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Entry{}, ErrUnavailable
	}

	v, ok := m.values[key]
	if !ok {
		return Entry{}, nil
	}

	return Entry{Value: copyBytes(v.data), Revision: v.revision, Found: true}, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return errEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrUnavailable
	}

	m.put(key, value)

	return nil
}

func (m *MemoryStore) Create(_ context.Context, key string, value []byte) (uint64, error) {
	if key == "" {
		return 0, errEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrUnavailable
	}

	if _, ok := m.values[key]; ok {
		return 0, ErrKeyExists
	}

	return m.put(key, value), nil
}

func (m *MemoryStore) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if key == "" {
		return 0, errEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrUnavailable
	}

	current, ok := m.values[key]
	if !ok || current.revision != revision {
		return 0, ErrCASMismatch
	}

	return m.put(key, value), nil
}

// put must be called with the write lock held.
func (m *MemoryStore) put(key string, value []byte) uint64 {
	m.revision++
	m.values[key] = memoryValue{data: copyBytes(value), revision: m.revision}

	return m.revision
}

func (m *MemoryStore) SetAdd(_ context.Context, key string, members ...string) error {
	if key == "" {
		return errEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrUnavailable
	}

	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{}, len(members))
		m.sets[key] = set
	}

	for _, member := range members {
		set[member] = struct{}{}
	}

	return nil
}

func (m *MemoryStore) SetMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrUnavailable
	}

	set := m.sets[key]
	out := make([]string, 0, len(set))

	for member := range set {
		out = append(out, member)
	}

	return sortedUnique(out), nil
}

func (m *MemoryStore) Scan(_ context.Context, pattern string) ([]string, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrUnavailable
	}

	out := make([]string, 0)

	for key := range m.values {
		if re.MatchString(key) {
			out = append(out, key)
		}
	}

	for key := range m.sets {
		if re.MatchString(key) {
			out = append(out, key)
		}
	}

	return sortedUnique(out), nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrUnavailable
	}

	removed := 0

	for _, key := range keys {
		_, isValue := m.values[key]
		_, isSet := m.sets[key]

		if isValue || isSet {
			removed++
		}

		delete(m.values, key)
		delete(m.sets, key)
	}

	return removed, nil
}

func (m *MemoryStore) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrUnavailable
	}

	m.values = make(map[string]memoryValue)
	m.sets = make(map[string]map[string]struct{})

	return nil
}

// Close marks the store unavailable. Data is kept so a test can observe what was written.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

// Reopen makes a closed store available again.
func (m *MemoryStore) Reopen() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = false
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	out := make([]byte, len(b))
	copy(out, b)

	return out
}
