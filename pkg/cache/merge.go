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

import (
	"github.com/carverauto/snmpbooster/pkg/models"
)

// Merge returns a new record holding old overlaid with data. Fields set in data
// win; fields only present in old are kept. DS and trigger mappings merge
// recursively. Neither input is modified.
func Merge(old, data *models.ServiceRecord) *models.ServiceRecord {
	out := old.Clone()
	if out == nil {
		out = &models.ServiceRecord{}
	}

	if data == nil {
		return out
	}

	if data.Host != "" {
		out.Host = data.Host
	}

	if data.Service != "" {
		out.Service = data.Service
	}

	if data.CheckInterval != 0 {
		out.CheckInterval = data.CheckInterval
	}

	out.DS = mergeAttributeSet(out.DS, data.DS)
	out.Triggers = mergeAttributeSet(out.Triggers, data.Triggers)

	if data.CheckTime != nil {
		t := *data.CheckTime
		out.CheckTime = &t
	}

	if data.LastCheckTime != nil {
		t := *data.LastCheckTime
		out.LastCheckTime = &t
	}

	if data.Mapping != "" {
		out.Mapping = data.Mapping
	}

	if data.Instance != "" {
		out.Instance = data.Instance
	}

	if data.InstanceName != "" {
		out.InstanceName = data.InstanceName
	}

	return out
}

func mergeAttributeSet(dst, src map[string]models.Attributes) map[string]models.Attributes {
	if len(src) == 0 {
		return dst
	}

	if dst == nil {
		dst = make(map[string]models.Attributes, len(src))
	}

	for name, attrs := range src {
		dst[name] = MergeAttributes(dst[name], attrs)
	}

	return dst
}

// MergeAttributes overlays src onto a copy of dst, recursing into nested mappings.
func MergeAttributes(dst, src models.Attributes) models.Attributes {
	out := dst.Clone()
	if out == nil {
		out = make(models.Attributes, len(src))
	}

	for k, v := range src {
		srcMap, srcIsMap := models.AsAttributes(v)
		dstMap, dstIsMap := models.AsAttributes(out[k])

		if srcIsMap && dstIsMap {
			out[k] = MergeAttributes(dstMap, srcMap)

			continue
		}

		if srcIsMap {
			out[k] = srcMap.Clone()

			continue
		}

		out[k] = v
	}

	return out
}

// checkMerged rejects records that must never be persisted.
func checkMerged(rec *models.ServiceRecord) error {
	if rec.IsZero() {
		return errEmptyMerge
	}

	if rec.CheckInterval < 0 {
		return errNegativeInterval
	}

	return nil
}
