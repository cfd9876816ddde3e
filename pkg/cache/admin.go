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
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/carverauto/snmpbooster/pkg/kv"
	"github.com/carverauto/snmpbooster/pkg/models"
)

// The operations below scan the whole store and are meant for operator tooling only.

// ServiceKey identifies one service record.
type ServiceKey struct {
	Host    string
	Service string
}

// MappingClearResult reports what ClearMapping did for one record.
type MappingClearResult struct {
	Host    string
	Service string
	Cleared bool
}

// ShowKeys lists every key in the store.
func (s *Store) ShowKeys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scanLocked(ctx, "*")
}

func (s *Store) scanLocked(ctx context.Context, pattern string) ([]string, error) {
	var keys []string

	err := s.do(ctx, func(store kv.Store) error {
		var err error

		keys, err = store.Scan(ctx, pattern)

		return err
	})

	return keys, err
}

type keyedRecord struct {
	key    string
	record *models.ServiceRecord
}

func (s *Store) recordsMatching(ctx context.Context, keep func(key string) bool) ([]*models.ServiceRecord, error) {
	keyed, err := s.keyedRecordsMatching(ctx, keep)
	if err != nil {
		return nil, err
	}

	records := make([]*models.ServiceRecord, 0, len(keyed))

	for _, kr := range keyed {
		records = append(records, kr.record)
	}

	return records, nil
}

// keyedRecordsMatching decodes every record whose key passes keep. Keys without a
// point value (interval sets) are skipped.
func (s *Store) keyedRecordsMatching(ctx context.Context, keep func(key string) bool) ([]keyedRecord, error) {
	keys, err := s.scanLocked(ctx, "*")
	if err != nil {
		return nil, err
	}

	var records []keyedRecord

	for _, key := range keys {
		if !keep(key) {
			continue
		}

		rec, err := s.getLocked(ctx, key)

		switch {
		case errors.Is(err, ErrNotFound):
			continue
		case errors.Is(err, ErrCorruptRecord):
			s.logger.Warn().Err(err).Str("key", key).Msg("Skipping corrupt record")

			continue
		case err != nil:
			return nil, err
		}

		records = append(records, keyedRecord{key: key, record: rec})
	}

	return records, nil
}

// GetHostsFromService returns records whose key contains a match for the service expression.
func (s *Store) GetHostsFromService(ctx context.Context, service string) ([]*models.ServiceRecord, error) {
	re, err := regexp.Compile(service)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidSearchRegex, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recordsMatching(ctx, re.MatchString)
}

// GetServicesFromHost returns records whose key starts with a match for the host
// expression. Interval index keys are skipped.
func (s *Store) GetServicesFromHost(ctx context.Context, host string) ([]*models.ServiceRecord, error) {
	re, err := regexp.Compile("^(?:" + host + ")")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidSearchRegex, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recordsMatching(ctx, func(key string) bool {
		return re.MatchString(key) && !isIntervalKey(key)
	})
}

// GetAllServices returns every service record.
func (s *Store) GetAllServices(ctx context.Context) ([]*models.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recordsMatching(ctx, func(key string) bool {
		return !isIntervalKey(key)
	})
}

// ReplaceService writes rec as is under its own (host, service) key, without merging.
func (s *Store) ReplaceService(ctx context.Context, rec *models.ServiceRecord) error {
	if rec == nil || rec.Host == "" || rec.Service == "" {
		return fmt.Errorf("%w: %w", ErrTransientWrite, errMissingIdentity)
	}

	payload, err := Encode(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.do(ctx, func(store kv.Store) error {
		return store.Set(ctx, BuildKey(rec.Host, rec.Service), payload)
	})
}

// ClearMapping drops the discovered instance of every selected record that
// carries an instance name, forcing a new mapping walk. Empty host and service
// select everything.
func (s *Store) ClearMapping(ctx context.Context, host, service string) ([]MappingClearResult, error) {
	records, err := s.selectRecords(ctx, host, service)
	if err != nil {
		return nil, err
	}

	results := make([]MappingClearResult, 0, len(records))

	for _, rec := range records {
		result := MappingClearResult{Host: rec.Host, Service: rec.Service}

		if rec.InstanceName != "" && rec.Instance != "" && rec.Host != "" && rec.Service != "" {
			rec.Instance = ""

			if err := s.ReplaceService(ctx, rec); err != nil {
				return results, err
			}

			result.Cleared = true

			s.logger.Info().Str("host", rec.Host).Str("service", rec.Service).Msg("Instance cleared")
		}

		results = append(results, result)
	}

	return results, nil
}

// selectRecords resolves the host/service selection used by the operator commands.
func (s *Store) selectRecords(ctx context.Context, host, service string) ([]*models.ServiceRecord, error) {
	switch {
	case host != "" && service != "":
		rec, err := s.GetService(ctx, host, service)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}

		if err != nil {
			return nil, err
		}

		return []*models.ServiceRecord{rec}, nil
	case service != "":
		return s.GetHostsFromService(ctx, service)
	case host != "":
		return s.GetServicesFromHost(ctx, host)
	default:
		return s.GetAllServices(ctx)
	}
}

// DeleteHost removes every key of host, records and interval indices alike.
func (s *Store) DeleteHost(ctx context.Context, host string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.scanLocked(ctx, BuildKey(host, "*"))
	if err != nil {
		return 0, err
	}

	return s.deleteLocked(ctx, keys...)
}

// DeleteServices removes the given service records.
func (s *Store) DeleteServices(ctx context.Context, services ...ServiceKey) (int, error) {
	keys := make([]string, 0, len(services))

	for _, svc := range services {
		keys = append(keys, BuildKey(svc.Host, svc.Service))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteLocked(ctx, keys...)
}

func (s *Store) deleteLocked(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	var removed int

	err := s.do(ctx, func(store kv.Store) error {
		var err error

		removed, err = store.Delete(ctx, keys...)

		return err
	})

	return removed, err
}

// ClearCache removes everything from the store.
func (s *Store) ClearCache(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.do(ctx, func(store kv.Store) error {
		return store.Flush(ctx)
	})
}

// ClearOld removes records whose last check is older than maxAge. Records that
// were never checked are kept.
func (s *Store) ClearOld(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.keyedRecordsMatching(ctx, func(key string) bool {
		return !isIntervalKey(key)
	})
	if err != nil {
		return 0, err
	}

	var stale []string

	for _, kr := range records {
		if kr.record.CheckTime == nil || !kr.record.CheckTime.Before(cutoff) {
			continue
		}

		stale = append(stale, kr.key)
	}

	return s.deleteLocked(ctx, stale...)
}
