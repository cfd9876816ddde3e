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
	"time"

	"github.com/carverauto/snmpbooster/pkg/models"
)

const (
	defaultBurstSize         = 2
	defaultCycleInterval     = 500 * time.Millisecond
	defaultMaxRoundsPerCycle = 64
	defaultResultBuffer      = 1024
	defaultErrorBuffer       = 256
	defaultAccumulatorTTL    = 5 * time.Minute
)

// Config tunes the dispatcher loop.
type Config struct {
	// BurstSize is the most tasks submitted per cycle.
	BurstSize int `json:"burst_size,omitempty"`
	// CycleInterval is the pause between cycles.
	CycleInterval models.Duration `json:"cycle_interval,omitempty"`
	// MaxRoundsPerCycle caps follow-up processing rounds (table walks) in one cycle.
	MaxRoundsPerCycle int             `json:"max_rounds_per_cycle,omitempty"`
	ResultBuffer      int             `json:"result_buffer,omitempty"`
	ErrorBuffer       int             `json:"error_buffer,omitempty"`
	AccumulatorTTL    models.Duration `json:"accumulator_ttl,omitempty"`
}

// Validate fills defaults for unset fields.
func (c *Config) Validate() error {
	if c.BurstSize <= 0 {
		c.BurstSize = defaultBurstSize
	}

	if c.CycleInterval <= 0 {
		c.CycleInterval = models.Duration(defaultCycleInterval)
	}

	if c.MaxRoundsPerCycle <= 0 {
		c.MaxRoundsPerCycle = defaultMaxRoundsPerCycle
	}

	if c.ResultBuffer <= 0 {
		c.ResultBuffer = defaultResultBuffer
	}

	if c.ErrorBuffer <= 0 {
		c.ErrorBuffer = defaultErrorBuffer
	}

	if c.AccumulatorTTL <= 0 {
		c.AccumulatorTTL = models.Duration(defaultAccumulatorTTL)
	}

	return nil
}
