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
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/carverauto/snmpbooster/pkg/models"
)

// Encode serializes a record for the backing store.
func Encode(rec *models.ServiceRecord) ([]byte, error) {
	return json.Marshal(rec)
}

// Decode parses a stored payload. A payload that is not a JSON object yields
// ErrCorruptRecord and no record. Numbers inside attribute maps decode as
// json.Number so counters above 2^53 keep every digit.
func Decode(payload []byte) (*models.ServiceRecord, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, errEmptyPayload)
	}

	var rec models.ServiceRecord

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}

	if dec.More() {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, errTrailingData)
	}

	return &rec, nil
}
