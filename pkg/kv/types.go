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
	"github.com/carverauto/snmpbooster/pkg/models"
	"github.com/carverauto/snmpbooster/pkg/natsutil"
)

// Backend names accepted in Config.Backend.
const (
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Entry captures the value, revision, and presence metadata for a key lookup.
type Entry struct {
	Value    []byte
	Revision uint64
	Found    bool
}

// Config holds the backing store selection and connection settings.
type Config struct {
	Backend        string          `json:"backend"`
	NATSURL        string          `json:"nats_url,omitempty"`
	Bucket         string          `json:"bucket,omitempty"`
	BucketHistory  uint8           `json:"bucket_history,omitempty"`
	PostgresDSN    string          `json:"postgres_dsn,omitempty"`
	ConnectTimeout models.Duration `json:"connect_timeout,omitempty"`
	// TLS enables mTLS to NATS.
	TLS *natsutil.TLSSettings `json:"tls,omitempty"`
	// NKeySeedFile authenticates to NATS with a user nkey seed.
	NKeySeedFile string `json:"nkey_seed_file,omitempty"`
}
