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

// Package scheduler turns configured SNMP targets into poll tasks on
// per-interval tickers and consumes the polling engine's results.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/snmpbooster/pkg/models"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

const defaultIntervalUnit = time.Minute

// Datasource OID attribute names in a service record.
const (
	OIDTypeValue = "ds_oid"
	OIDTypeMax   = "ds_max_oid"
	OIDTypeMin   = "ds_min_oid"

	attrType = "ds_type"

	instancePlaceholder = "{instance}"
)

var oidTypes = []string{OIDTypeValue, OIDTypeMax, OIDTypeMin}

var (
	errHostRequired        = errors.New("target host is required")
	errDuplicateHost       = errors.New("duplicate target host")
	errServiceRequired     = errors.New("service name is required")
	errDuplicateService    = errors.New("duplicate service")
	errIntervalRequired    = errors.New("service check_interval must be positive")
	errDSRequired          = errors.New("service needs at least one datasource")
	errDSNameRequired      = errors.New("datasource name is required")
	errDSOIDRequired       = errors.New("datasource needs an oid")
	errInstanceNameMissing = errors.New("mapping needs instance_name")
)

// DSConfig is one datasource of a service.
type DSConfig struct {
	Name   string `json:"name"`
	OID    string `json:"oid,omitempty"`
	MaxOID string `json:"max_oid,omitempty"`
	MinOID string `json:"min_oid,omitempty"`
	Type   string `json:"type,omitempty"`
}

// ServiceConfig is one monitored service on a target. OIDs may contain the
// {instance} placeholder, resolved from Instance or by walking the Mapping table
// for InstanceName.
type ServiceConfig struct {
	Name          string                       `json:"name"`
	CheckInterval int                          `json:"check_interval"`
	Instance      string                       `json:"instance,omitempty"`
	InstanceName  string                       `json:"instance_name,omitempty"`
	Mapping       string                       `json:"mapping,omitempty"`
	Triggers      map[string]models.Attributes `json:"triggers,omitempty"`
	DS            []DSConfig                   `json:"ds"`
}

// TargetConfig is one polled device.
type TargetConfig struct {
	Host           string          `json:"host"`
	Address        string          `json:"address,omitempty"`
	Port           uint16          `json:"port,omitempty"`
	Timeout        models.Duration `json:"timeout,omitempty"`
	Retries        int             `json:"retries,omitempty"`
	MaxRepetitions uint32          `json:"max_repetitions,omitempty"`
	Auth           snmp.Auth       `json:"auth"`
	Services       []ServiceConfig `json:"services"`
}

// Config is the scheduler configuration.
type Config struct {
	// IntervalUnit is the length of one check_interval step.
	IntervalUnit models.Duration `json:"interval_unit,omitempty"`
	Targets      []TargetConfig  `json:"targets"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.IntervalUnit <= 0 {
		c.IntervalUnit = models.Duration(defaultIntervalUnit)
	}

	hosts := make(map[string]bool, len(c.Targets))

	for i := range c.Targets {
		target := &c.Targets[i]

		if err := target.validate(); err != nil {
			return err
		}

		if hosts[target.Host] {
			return fmt.Errorf("%w: %s", errDuplicateHost, target.Host)
		}

		hosts[target.Host] = true
	}

	return nil
}

func (t *TargetConfig) validate() error {
	if t.Host == "" {
		return errHostRequired
	}

	if t.Address == "" {
		t.Address = t.Host
	}

	if t.Auth.Version == "" {
		t.Auth.Version = snmp.Version2c
	}

	if err := t.Auth.Validate(); err != nil {
		return fmt.Errorf("target %s: %w", t.Host, err)
	}

	services := make(map[string]bool, len(t.Services))

	for i := range t.Services {
		svc := &t.Services[i]

		if err := svc.validate(); err != nil {
			return fmt.Errorf("target %s: %w", t.Host, err)
		}

		if services[svc.Name] {
			return fmt.Errorf("target %s: %w: %s", t.Host, errDuplicateService, svc.Name)
		}

		services[svc.Name] = true
	}

	return nil
}

func (s *ServiceConfig) validate() error {
	if s.Name == "" {
		return errServiceRequired
	}

	if s.CheckInterval <= 0 {
		return fmt.Errorf("service %s: %w", s.Name, errIntervalRequired)
	}

	if s.Mapping != "" && s.InstanceName == "" {
		return fmt.Errorf("service %s: %w", s.Name, errInstanceNameMissing)
	}

	if len(s.DS) == 0 {
		return fmt.Errorf("service %s: %w", s.Name, errDSRequired)
	}

	for _, ds := range s.DS {
		if ds.Name == "" {
			return fmt.Errorf("service %s: %w", s.Name, errDSNameRequired)
		}

		if ds.OID == "" && ds.MaxOID == "" && ds.MinOID == "" {
			return fmt.Errorf("service %s ds %s: %w", s.Name, ds.Name, errDSOIDRequired)
		}
	}

	return nil
}

// snmpTarget returns the transport endpoint of t.
func (t *TargetConfig) snmpTarget() snmp.Target {
	return snmp.Target{
		Address: t.Address,
		Port:    t.Port,
		Timeout: t.Timeout.Std(),
		Retries: t.Retries,
	}
}

// record builds the cache record a service is initialized with.
func (s *ServiceConfig) record(host string) *models.ServiceRecord {
	ds := make(map[string]models.Attributes, len(s.DS))

	for _, d := range s.DS {
		attrs := make(models.Attributes)

		for oidType, oid := range map[string]string{OIDTypeValue: d.OID, OIDTypeMax: d.MaxOID, OIDTypeMin: d.MinOID} {
			if oid != "" {
				attrs[oidType] = oid
			}
		}

		if d.Type != "" {
			attrs[attrType] = d.Type
		}

		ds[d.Name] = attrs
	}

	return &models.ServiceRecord{
		Host:          host,
		Service:       s.Name,
		CheckInterval: s.CheckInterval,
		DS:            ds,
		Triggers:      s.Triggers,
		Mapping:       s.Mapping,
		Instance:      s.Instance,
		InstanceName:  s.InstanceName,
	}
}
