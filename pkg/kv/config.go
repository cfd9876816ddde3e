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
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/snmpbooster/pkg/models"
)

const (
	defaultBucket         = "snmp-booster"
	defaultConnectTimeout = 5 * time.Second
)

// Validate ensures the configuration is valid and fills in defaults.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))

	if c.Backend == "" {
		c.Backend = BackendNATS
	}

	switch c.Backend {
	case BackendNATS:
		if c.NATSURL == "" {
			return errNatsURLRequired
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errPostgresDSNRequired
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, c.Backend)
	}

	c.setDefaults()

	return nil
}

func (c *Config) setDefaults() {
	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}

	if c.BucketHistory == 0 {
		c.BucketHistory = 1
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = models.Duration(defaultConnectTimeout)
	}
}

// Open connects to the backend named in the configuration.
func Open(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout.Std())
	defer cancel()

	switch cfg.Backend {
	case BackendNATS:
		return NewNATSStore(connectCtx, cfg)
	case BackendPostgres:
		return NewPostgresStore(connectCtx, cfg)
	default:
		return NewMemoryStore(), nil
	}
}
