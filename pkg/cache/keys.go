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
	"regexp"
	"strconv"
)

var intervalKeyPattern = regexp.MustCompile(`:[0-9]+$`)

// BuildKey joins a host and a secondary part (service name or check interval).
func BuildKey(host, secondary string) string {
	return host + ":" + secondary
}

// IntervalKey is the key of the set holding service names polled every interval minutes.
func IntervalKey(host string, interval int) string {
	return BuildKey(host, strconv.Itoa(interval))
}

// isIntervalKey reports whether key looks like host:<digits>.
func isIntervalKey(key string) bool {
	return intervalKeyPattern.MatchString(key)
}
