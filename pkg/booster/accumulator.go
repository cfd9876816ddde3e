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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/snmpbooster/pkg/models"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

// EntryKey names the datasource an OID value belongs to.
type EntryKey struct {
	Host    string
	Service string
	DSName  string
	OIDType string
}

// Entry is one expected OID of an accumulator.
type Entry struct {
	OID       string
	Value     interface{}
	Received  bool
	CheckedAt time.Time
	Owners    []EntryKey
}

type serviceID struct {
	host    string
	service string
}

// projectedValue is one value ready to be written into a service record.
type projectedValue struct {
	DSName  string
	OIDType string
	Value   interface{}
}

// projection is a service whose every expected OID has been received.
type projection struct {
	result *ServiceResult
	values []projectedValue
}

// Accumulator collects the values of one logical multi-OID poll. It is shared
// by every request of that poll and reference counted: each holder calls
// Acquire and must call Release through the Registry when done.
type Accumulator struct {
	ID string

	mu        sync.Mutex
	entries   map[string]*Entry
	services  map[serviceID]*ServiceResult
	projected map[serviceID]bool
	refs      int
	complete  bool
	emitted   bool
	failed    bool
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		ID:        uuid.NewString(),
		entries:   make(map[string]*Entry),
		services:  make(map[serviceID]*ServiceResult),
		projected: make(map[serviceID]bool),
	}
}

// Track declares an expected OID. The same OID may be owned by several
// datasources. It returns false once the accumulator is complete.
func (a *Accumulator) Track(oid string, key EntryKey) bool {
	oid = snmp.NormalizeOID(oid)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.complete {
		return false
	}

	entry, ok := a.entries[oid]
	if !ok {
		entry = &Entry{OID: oid}
		a.entries[oid] = entry
	}

	entry.Owners = append(entry.Owners, key)

	return true
}

// Bind attaches the result placeholder a service's values are projected into.
func (a *Accumulator) Bind(result *ServiceResult) {
	a.mu.Lock()
	a.services[serviceID{result.Host, result.Service}] = result
	a.mu.Unlock()
}

// Store records the value of oid. It reports whether the OID is expected;
// an OID that already holds a value keeps it.
func (a *Accumulator) Store(oid string, value interface{}, at time.Time) bool {
	oid = snmp.NormalizeOID(oid)

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.entries[oid]
	if !ok {
		return false
	}

	if !entry.Received {
		entry.Value = value
		entry.Received = true
		entry.CheckedAt = at
	}

	return true
}

func (a *Accumulator) tracks(oid string) bool {
	oid = snmp.NormalizeOID(oid)

	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.entries[oid]

	return ok
}

// Complete reports whether every expected OID has a value. Once true it stays true.
func (a *Accumulator) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.completeLocked()
}

func (a *Accumulator) completeLocked() bool {
	if a.complete {
		return true
	}

	if len(a.entries) == 0 {
		return false
	}

	for _, entry := range a.entries {
		if !entry.Received {
			return false
		}
	}

	a.complete = true

	return true
}

// claimEmission returns true exactly once, after the accumulator is complete.
func (a *Accumulator) claimEmission() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.completeLocked() || a.emitted {
		return false
	}

	a.emitted = true

	return true
}

// claimFailure returns true the first time an incomplete accumulator is given up.
func (a *Accumulator) claimFailure() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completeLocked() || a.failed {
		return false
	}

	a.failed = true

	return true
}

// readyServices returns every service whose own OIDs are all received and that
// has not been projected yet, marking them projected.
func (a *Accumulator) readyServices() []projection {
	a.mu.Lock()
	defer a.mu.Unlock()

	values := make(map[serviceID][]projectedValue)
	pending := make(map[serviceID]bool)

	for _, entry := range a.entries {
		for _, owner := range entry.Owners {
			id := serviceID{owner.Host, owner.Service}
			if a.projected[id] {
				continue
			}

			if !entry.Received {
				pending[id] = true

				continue
			}

			values[id] = append(values[id], projectedValue{
				DSName:  owner.DSName,
				OIDType: owner.OIDType,
				Value:   entry.Value,
			})
		}
	}

	ids := make([]serviceID, 0, len(values))

	for id := range values {
		if !pending[id] {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool {
		if ids[i].host != ids[j].host {
			return ids[i].host < ids[j].host
		}

		return ids[i].service < ids[j].service
	})

	out := make([]projection, 0, len(ids))

	for _, id := range ids {
		a.projected[id] = true

		result, ok := a.services[id]
		if !ok {
			result = &ServiceResult{
				Host:    id.host,
				Service: id.service,
				State:   models.ServiceStatePending,
			}
			a.services[id] = result
		}

		vals := values[id]
		sort.Slice(vals, func(i, j int) bool {
			if vals[i].DSName != vals[j].DSName {
				return vals[i].DSName < vals[j].DSName
			}

			return vals[i].OIDType < vals[j].OIDType
		})

		out = append(out, projection{result: result, values: vals})
	}

	return out
}

// Snapshot copies the current entries keyed by OID.
func (a *Accumulator) Snapshot() map[string]Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]Entry, len(a.entries))

	for oid, entry := range a.entries {
		copied := *entry
		copied.Owners = append([]EntryKey(nil), entry.Owners...)
		out[oid] = copied
	}

	return out
}

// Len returns the number of expected OIDs.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.entries)
}

// Acquire takes a reference.
func (a *Accumulator) Acquire() {
	a.mu.Lock()
	a.refs++
	a.mu.Unlock()
}

// release drops a reference and returns how many remain.
func (a *Accumulator) release() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.refs > 0 {
		a.refs--
	}

	return a.refs
}

// Refs returns the number of live references.
func (a *Accumulator) Refs() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.refs
}
