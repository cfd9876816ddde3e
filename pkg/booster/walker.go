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
	"sort"
	"strings"

	"github.com/carverauto/snmpbooster/pkg/models"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

// MappingState resolves instance names to table indexes while walking a table.
type MappingState struct {
	RootOID    string
	Wanted     map[string]bool
	Discovered map[string]string
	Finished   bool
}

// NewMappingState creates the state for a walk of root looking for names.
func NewMappingState(root string, names ...string) *MappingState {
	s := &MappingState{
		RootOID:    snmp.NormalizeOID(root),
		Wanted:     make(map[string]bool, len(names)),
		Discovered: make(map[string]string, len(names)),
	}

	for _, name := range names {
		s.Wanted[name] = true
	}

	return s
}

// Observe applies one row of the walk. It returns false once the walk is finished:
// when oid leaves the table or every wanted name has been resolved.
func (s *MappingState) Observe(oid string, value interface{}) bool {
	if s.Finished {
		return false
	}

	oid = snmp.NormalizeOID(oid)
	if !snmp.HasOIDPrefix(oid, s.RootOID) || oid == s.RootOID {
		s.Finished = true

		return false
	}

	index := strings.TrimPrefix(oid, s.RootOID+".")
	name := instanceName(value)

	if s.Wanted[name] {
		if _, ok := s.Discovered[name]; !ok {
			s.Discovered[name] = index
		}
	}

	if s.Resolved() {
		s.Finished = true

		return false
	}

	return true
}

// Resolved reports whether every wanted name has an index.
func (s *MappingState) Resolved() bool {
	for name := range s.Wanted {
		if _, ok := s.Discovered[name]; !ok {
			return false
		}
	}

	return true
}

func instanceName(v interface{}) string {
	switch typed := v.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}

// MappingWalker walks a table with GetNext or GetBulk until its MappingState
// finishes, then writes the discovered instances to the bound services.
type MappingWalker struct {
	sink  *Sink
	host  string
	state *MappingState
	// services lists, per instance name, the services waiting for it.
	services map[string][]string
	rounds   int
}

// NewMappingWalker creates a walker for host. services maps each wanted
// instance name to the services that use it.
func NewMappingWalker(sink *Sink, host, root string, services map[string][]string) (*MappingWalker, error) {
	if strings.Trim(root, ".") == "" {
		return nil, errEmptyRootOID
	}

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}

	sort.Strings(names)

	return &MappingWalker{
		sink:     sink,
		host:     host,
		state:    NewMappingState(root, names...),
		services: services,
	}, nil
}

// State returns the walk state. It must not be read while the walk is running.
func (w *MappingWalker) State() *MappingState {
	return w.state
}

// Rounds returns how many responses the walker has handled.
func (w *MappingWalker) Rounds() int {
	return w.rounds
}

// HandleResponse implements Handler.
func (w *MappingWalker) HandleResponse(ctx context.Context, resp *snmp.Response) *snmp.Request {
	w.rounds++

	if resp.Err != nil {
		err := fmt.Errorf("%w: %w", ErrRequestFailed, resp.Err)
		w.sink.reporter.Report(ctx, &EngineError{Op: "walk", TaskID: requestID(resp), Host: w.host, Err: err})
		w.finish(ctx, err)

		return nil
	}

	rows := resp.Rows()
	if len(rows) == 0 {
		w.state.Finished = true
		w.finish(ctx, nil)

		return nil
	}

	var last []snmp.VarBind

	for _, row := range rows {
		for _, vb := range row {
			if vb.IsException() || !w.state.Observe(vb.OID, vb.Value) {
				w.state.Finished = true
				w.finish(ctx, nil)

				return nil
			}
		}

		last = row
	}

	oids := make([]string, len(last))
	for i, vb := range last {
		oids[i] = vb.OID
	}

	prev := resp.Request
	next := snmp.NewRequest(prev.Kind, prev.Auth, prev.Target, oids)
	next.MaxRepetitions = prev.MaxRepetitions

	return next
}

// Abandon reports the walk as failed when its task never reaches the transport.
func (w *MappingWalker) Abandon(ctx context.Context) {
	w.finish(ctx, ErrMalformedTask)
}

func (w *MappingWalker) finish(ctx context.Context, err error) {
	discovered := make(map[string]string, len(w.state.Discovered))
	for name, index := range w.state.Discovered {
		discovered[name] = index
	}

	if err == nil {
		names := make([]string, 0, len(discovered))
		for name := range discovered {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			for _, service := range w.services[name] {
				w.sink.writeCache(ctx, w.host, service, &models.ServiceRecord{
					Instance:     discovered[name],
					InstanceName: name,
				})
			}
		}

		if !w.state.Resolved() {
			w.sink.logger.Warn().
				Str("host", w.host).
				Str("root_oid", w.state.RootOID).
				Int("wanted", len(w.state.Wanted)).
				Int("discovered", len(discovered)).
				Msg("Table walk finished with unresolved instances")
		}
	}

	w.sink.emit(ctx, w.host, Result{
		Kind: ResultMapping,
		Mapping: &MappingResult{
			Host:       w.host,
			RootOID:    w.state.RootOID,
			Discovered: discovered,
			Finished:   w.state.Finished,
			Err:        err,
		},
	})
}
