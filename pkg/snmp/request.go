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

import (
	"sync"

	"github.com/google/uuid"
)

// Request is one asynchronous SNMP operation. It is completed exactly once;
// the Response is delivered on the channel returned by Done.
type Request struct {
	ID             string
	Kind           Kind
	Auth           Auth
	Target         Target
	OIDs           []string
	NonRepeaters   uint8
	MaxRepetitions uint32

	done chan *Response
	once sync.Once
}

// NewRequest builds a request with a fresh ID. OIDs are normalized with a leading dot.
func NewRequest(kind Kind, auth Auth, target Target, oids []string) *Request {
	normalized := make([]string, len(oids))

	for i, oid := range oids {
		normalized[i] = NormalizeOID(oid)
	}

	return &Request{
		ID:     uuid.NewString(),
		Kind:   kind,
		Auth:   auth,
		Target: target,
		OIDs:   normalized,
		done:   make(chan *Response, 1),
	}
}

// Done returns the channel the response is delivered on.
func (r *Request) Done() <-chan *Response {
	return r.done
}

// Complete delivers resp. Only the first call has any effect; it never blocks.
func (r *Request) Complete(resp *Response) bool {
	delivered := false

	r.once.Do(func() {
		resp.Request = r
		r.done <- resp
		delivered = true
	})

	return delivered
}

// Fail completes the request with an error.
func (r *Request) Fail(err error) bool {
	return r.Complete(&Response{Err: err})
}

// Response is the outcome of a Request.
type Response struct {
	Request  *Request
	VarBinds []VarBind
	Err      error
}

// Rows splits the variable bindings into rows of one binding per requested
// OID, as returned by GetNext and GetBulk.
func (r *Response) Rows() [][]VarBind {
	width := 1
	if r.Request != nil && len(r.Request.OIDs) > 0 {
		width = len(r.Request.OIDs)
	}

	if r.Request != nil && r.Request.Kind == KindGetBulk {
		return bulkRows(r.VarBinds, width, int(r.Request.NonRepeaters))
	}

	rows := make([][]VarBind, 0, (len(r.VarBinds)+width-1)/width)

	for start := 0; start < len(r.VarBinds); start += width {
		end := start + width
		if end > len(r.VarBinds) {
			end = len(r.VarBinds)
		}

		rows = append(rows, r.VarBinds[start:end])
	}

	return rows
}

// bulkRows drops the non-repeater bindings and groups the repetitions.
func bulkRows(binds []VarBind, width, nonRepeaters int) [][]VarBind {
	if nonRepeaters > len(binds) {
		nonRepeaters = len(binds)
	}

	repeating := width - nonRepeaters
	if repeating <= 0 {
		return [][]VarBind{binds}
	}

	binds = binds[nonRepeaters:]
	rows := make([][]VarBind, 0, (len(binds)+repeating-1)/repeating)

	for start := 0; start < len(binds); start += repeating {
		end := start + repeating
		if end > len(binds) {
			end = len(binds)
		}

		rows = append(rows, binds[start:end])
	}

	return rows
}
