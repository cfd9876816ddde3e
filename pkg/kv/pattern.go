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
	"regexp"
	"sort"
	"strings"
)

// compilePattern turns a key glob into an anchored regexp.
// Only '*' (any run) and '?' (one character) are special.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = "*"
	}

	var b strings.Builder

	b.WriteString("^")

	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	b.WriteString("$")

	return regexp.Compile(b.String())
}

// likePattern translates a key glob into a SQL LIKE pattern using '\' as escape.
func likePattern(pattern string) string {
	if pattern == "" {
		return "%"
	}

	var b strings.Builder

	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// sortedUnique sorts keys and drops duplicates in place.
func sortedUnique(keys []string) []string {
	sort.Strings(keys)

	out := keys[:0]

	for i, k := range keys {
		if i > 0 && k == keys[i-1] {
			continue
		}

		out = append(out, k)
	}

	return out
}

// mergeMembers adds members to an existing sorted member list.
func mergeMembers(existing []string, members ...string) (merged []string, changed bool) {
	seen := make(map[string]struct{}, len(existing)+len(members))
	merged = make([]string, 0, len(existing)+len(members))

	for _, m := range existing {
		seen[m] = struct{}{}
		merged = append(merged, m)
	}

	for _, m := range members {
		if _, ok := seen[m]; ok {
			continue
		}

		seen[m] = struct{}{}
		merged = append(merged, m)
		changed = true
	}

	sort.Strings(merged)

	return merged, changed
}
