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

// Package cache implements the composite-keyed service cache with
// merge-on-write semantics and per-interval service indices.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/carverauto/snmpbooster/pkg/kv"
	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
)

const (
	defaultMaxWriteElapsed = 5 * time.Second
	writeInitialBackoff    = 20 * time.Millisecond
	writeMaxBackoff        = 500 * time.Millisecond
)

// Config selects the backing store and the write mode.
type Config struct {
	kv.Config

	// Transactional upgrades merge-writes to compare-and-swap with retries.
	Transactional   bool            `json:"transactional,omitempty"`
	MaxWriteElapsed models.Duration `json:"max_write_elapsed,omitempty"`
}

// Validate checks the backing store settings and fills defaults.
func (c *Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}

	if c.MaxWriteElapsed <= 0 {
		c.MaxWriteElapsed = models.Duration(defaultMaxWriteElapsed)
	}

	return nil
}

// Opener dials a backing store.
type Opener func(ctx context.Context) (kv.Store, error)

// Store is the cache. All access is serialized.
type Store struct {
	mu     sync.Mutex
	config Config
	open   Opener
	kv     kv.Store
	logger logger.Logger
	now    func() time.Time
}

// New creates a cache that dials its backing store with open.
func New(cfg Config, open Opener, log logger.Logger) *Store {
	if cfg.MaxWriteElapsed <= 0 {
		cfg.MaxWriteElapsed = models.Duration(defaultMaxWriteElapsed)
	}

	return &Store{
		config: cfg,
		open:   open,
		logger: logger.Wrap(log.WithComponent("cache")),
		now:    time.Now,
	}
}

// NewFromConfig creates a cache backed by the store described in cfg.
func NewFromConfig(cfg Config, log logger.Logger) *Store {
	kvCfg := cfg.Config

	return New(cfg, func(ctx context.Context) (kv.Store, error) {
		return kv.Open(ctx, &kvCfg)
	}, log)
}

// Connect opens the backing connection. Failures are reported as ErrConnection.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connectLocked(ctx)
}

func (s *Store) connectLocked(ctx context.Context) error {
	if s.kv != nil {
		return nil
	}

	store, err := s.open(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("backend", s.config.Backend).Msg("Failed to connect to backing store")

		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	s.kv = store

	return nil
}

// Disconnect releases the backing connection.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kv == nil {
		return nil
	}

	err := s.kv.Close()
	s.kv = nil

	return err
}

// do runs fn against the backing store. When fn fails because the store is
// unavailable, the handle is dropped, reopened once and fn is retried once.
// Callers must hold s.mu.
func (s *Store) do(ctx context.Context, fn func(kv.Store) error) error {
	if s.kv == nil {
		return fmt.Errorf("%w: %w", ErrConnection, errNotConnected)
	}

	err := fn(s.kv)
	if !errors.Is(err, kv.ErrUnavailable) {
		return err
	}

	s.logger.Warn().Err(err).Msg("Backing store unavailable, reconnecting")

	_ = s.kv.Close()
	s.kv = nil

	if cerr := s.connectLocked(ctx); cerr != nil {
		return cerr
	}

	return fn(s.kv)
}

// UpdateService merges data into the record stored for (host, service).
func (s *Store) UpdateService(ctx context.Context, host, service string, data *models.ServiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateServiceLocked(ctx, host, service, data)
}

func (s *Store) updateServiceLocked(ctx context.Context, host, service string, data *models.ServiceRecord) error {
	key := BuildKey(host, service)

	var err error

	if s.config.Transactional {
		err = s.casMergeWrite(ctx, key, data)
	} else {
		err = s.do(ctx, func(store kv.Store) error {
			return mergeWrite(ctx, store, key, data)
		})
	}

	if err != nil {
		s.logger.Error().Err(err).Str("host", host).Str("service", service).Msg("Failed to update service")
	}

	return err
}

func mergeWrite(ctx context.Context, store kv.Store, key string, data *models.ServiceRecord) error {
	payload, found, err := store.Get(ctx, key)
	if err != nil {
		return err
	}

	var old *models.ServiceRecord

	if found {
		if old, err = Decode(payload); err != nil {
			return err
		}
	}

	merged := Merge(old, data)
	if err := checkMerged(merged); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransientWrite, key, err)
	}

	encoded, err := Encode(merged)
	if err != nil {
		return err
	}

	return store.Set(ctx, key, encoded)
}

func (s *Store) casMergeWrite(ctx context.Context, key string, data *models.ServiceRecord) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = writeInitialBackoff
	bo.MaxInterval = writeMaxBackoff
	bo.Multiplier = 1.6
	bo.RandomizationFactor = 0.2

	operation := func() (struct{}, error) {
		err := s.do(ctx, func(store kv.Store) error {
			return casMergeOnce(ctx, store, key, data)
		})

		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, kv.ErrCASMismatch), errors.Is(err, kv.ErrKeyExists):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(s.config.MaxWriteElapsed.Std()))
	if errors.Is(err, kv.ErrCASMismatch) || errors.Is(err, kv.ErrKeyExists) {
		return fmt.Errorf("%w: %s: %w", ErrTransientWrite, key, err)
	}

	return err
}

func casMergeOnce(ctx context.Context, store kv.Store, key string, data *models.ServiceRecord) error {
	entry, err := store.GetEntry(ctx, key)
	if err != nil {
		return err
	}

	var old *models.ServiceRecord

	if entry.Found {
		if old, err = Decode(entry.Value); err != nil {
			return err
		}
	}

	merged := Merge(old, data)
	if err := checkMerged(merged); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransientWrite, key, err)
	}

	encoded, err := Encode(merged)
	if err != nil {
		return err
	}

	if entry.Found {
		_, err = store.Update(ctx, key, encoded, entry.Revision)
	} else {
		_, err = store.Create(ctx, key, encoded)
	}

	return err
}

// UpdateServiceInit registers service in the interval index of host and then
// merges data into its record.
func (s *Store) UpdateServiceInit(ctx context.Context, host, service string, data *models.ServiceRecord) error {
	if data == nil || data.CheckInterval <= 0 {
		return fmt.Errorf("%w: %s: %w", ErrTransientWrite, BuildKey(host, service), errInvalidInterval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	indexKey := IntervalKey(host, data.CheckInterval)

	err := s.do(ctx, func(store kv.Store) error {
		return store.SetAdd(ctx, indexKey, service)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("host", host).Str("service", service).Msg("Failed to index service")

		return err
	}

	return s.updateServiceLocked(ctx, host, service, data)
}

// GetService returns the record stored for (host, service).
func (s *Store) GetService(ctx context.Context, host, service string) (*models.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(ctx, BuildKey(host, service))
}

func (s *Store) getLocked(ctx context.Context, key string) (*models.ServiceRecord, error) {
	var (
		payload []byte
		found   bool
	)

	err := s.do(ctx, func(store kv.Store) error {
		var err error

		payload, found, err = store.Get(ctx, key)

		return err
	})
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return Decode(payload)
}

// GetServices returns every record indexed under (host, checkInterval).
// Index members without a record, or whose record now carries another
// check interval, are skipped and logged.
func (s *Store) GetServices(ctx context.Context, host string, checkInterval int) ([]*models.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []string

	err := s.do(ctx, func(store kv.Store) error {
		var err error

		members, err = store.SetMembers(ctx, IntervalKey(host, checkInterval))

		return err
	})
	if err != nil {
		return nil, err
	}

	records := make([]*models.ServiceRecord, 0, len(members))

	for _, service := range members {
		rec, err := s.getLocked(ctx, BuildKey(host, service))

		switch {
		case errors.Is(err, ErrNotFound):
			s.logger.Warn().
				Str("host", host).
				Str("service", service).
				Str("check_interval", strconv.Itoa(checkInterval)).
				Msg("Indexed service has no record")

			continue
		case errors.Is(err, ErrCorruptRecord):
			s.logger.Error().Err(err).Str("host", host).Str("service", service).Msg("Skipping corrupt record")

			continue
		case err != nil:
			return nil, err
		}

		if rec.CheckInterval != checkInterval {
			s.logger.Warn().
				Str("host", host).
				Str("service", service).
				Int("indexed_interval", checkInterval).
				Int("check_interval", rec.CheckInterval).
				Msg("Indexed service moved to another interval")

			continue
		}

		records = append(records, rec)
	}

	return records, nil
}
