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

// Package models pkg/models/service_record.go
package models

import (
	"time"
)

// ServiceState describes where a polled service result stands in the current cycle.
type ServiceState string

const (
	ServiceStatePending  ServiceState = "pending"
	ServiceStateReceived ServiceState = "received"
)

// Attributes is an open nested mapping used for datasource and trigger definitions.
// Values may themselves be nested Attributes (or map[string]interface{} after decoding).
type Attributes map[string]interface{}

// ServiceRecord is the persisted, mergeable snapshot of one monitored service.
// Identity is (Host, Service). Zero-valued fields are treated as absent when merging.
type ServiceRecord struct {
	Host          string                `json:"host,omitempty"`
	Service       string                `json:"service,omitempty"`
	CheckInterval int                   `json:"check_interval,omitempty"`
	DS            map[string]Attributes `json:"ds,omitempty"`
	Triggers      map[string]Attributes `json:"triggers,omitempty"`
	CheckTime     *time.Time            `json:"check_time,omitempty"`
	LastCheckTime *time.Time            `json:"last_check_time,omitempty"`
	Mapping       string                `json:"mapping,omitempty"`
	Instance      string                `json:"instance,omitempty"`
	InstanceName  string                `json:"instance_name,omitempty"`
}

// IsZero reports whether no field of the record is set.
func (r *ServiceRecord) IsZero() bool {
	if r == nil {
		return true
	}

	return r.Host == "" &&
		r.Service == "" &&
		r.CheckInterval == 0 &&
		len(r.DS) == 0 &&
		len(r.Triggers) == 0 &&
		r.CheckTime == nil &&
		r.LastCheckTime == nil &&
		r.Mapping == "" &&
		r.Instance == "" &&
		r.InstanceName == ""
}

// Clone returns a deep copy of the record.
func (r *ServiceRecord) Clone() *ServiceRecord {
	if r == nil {
		return nil
	}

	out := *r
	out.DS = cloneAttributeSet(r.DS)
	out.Triggers = cloneAttributeSet(r.Triggers)

	if r.CheckTime != nil {
		t := *r.CheckTime
		out.CheckTime = &t
	}

	if r.LastCheckTime != nil {
		t := *r.LastCheckTime
		out.LastCheckTime = &t
	}

	return &out
}

// Clone returns a deep copy of the attribute mapping.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}

	out := make(Attributes, len(a))

	for k, v := range a {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneAttributeSet(in map[string]Attributes) map[string]Attributes {
	if in == nil {
		return nil
	}

	out := make(map[string]Attributes, len(in))

	for name, attrs := range in {
		out[name] = attrs.Clone()
	}

	return out
}

func cloneValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case Attributes:
		return typed.Clone()
	case map[string]interface{}:
		return Attributes(typed).Clone()
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i := range typed {
			out[i] = cloneValue(typed[i])
		}

		return out
	default:
		return v
	}
}

// AsAttributes returns v as Attributes when it is a nested mapping.
func AsAttributes(v interface{}) (Attributes, bool) {
	switch typed := v.(type) {
	case Attributes:
		return typed, true
	case map[string]interface{}:
		return Attributes(typed), true
	default:
		return nil, false
	}
}
