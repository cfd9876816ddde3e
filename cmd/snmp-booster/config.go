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

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/snmpbooster/pkg/booster"
	"github.com/carverauto/snmpbooster/pkg/cache"
	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
	"github.com/carverauto/snmpbooster/pkg/natsutil"
	"github.com/carverauto/snmpbooster/pkg/scheduler"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

const defaultShutdownTimeout = 10 * time.Second

var errEventsURLRequired = errors.New("events: nats_url is required when enabled")

// Config is the daemon configuration file.
type Config struct {
	Logging         *logger.Config        `json:"logging"`
	Metrics         *logger.MetricsConfig `json:"metrics"`
	Cache           cache.Config          `json:"cache"`
	SNMP            snmp.Config           `json:"snmp"`
	Booster         booster.Config        `json:"booster"`
	Scheduler       scheduler.Config      `json:"scheduler"`
	Events          natsutil.EventsConfig `json:"events"`
	ShutdownTimeout models.Duration       `json:"shutdown_timeout,omitempty"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	if c.Metrics == nil {
		m := logger.DefaultMetricsConfig()
		c.Metrics = &m
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = models.Duration(defaultShutdownTimeout)
	}

	var errs []error

	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}

	if err := c.SNMP.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("snmp: %w", err))
	}

	if err := c.Booster.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("booster: %w", err))
	}

	if c.Events.Enabled && c.Events.NATSURL == "" {
		c.Events.NATSURL = c.Cache.NATSURL
	}

	if c.Events.Enabled && c.Events.NATSURL == "" {
		errs = append(errs, errEventsURLRequired)
	}

	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}

	return errors.Join(errs...)
}
