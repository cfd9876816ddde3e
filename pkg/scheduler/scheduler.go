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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/snmpbooster/pkg/booster"
	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

var (
	errNilStore      = errors.New("scheduler needs a service store")
	errNilDispatcher = errors.New("scheduler needs a dispatcher")
	errUnknownHost   = errors.New("unknown host")

	errInstanceUnresolved = errors.New("instance unresolved")
	errNoOIDs             = errors.New("service has no oids")
)

// ServiceStore is the part of the cache the scheduler reads and initializes.
type ServiceStore interface {
	UpdateServiceInit(ctx context.Context, host, service string, data *models.ServiceRecord) error
	GetServices(ctx context.Context, host string, checkInterval int) ([]*models.ServiceRecord, error)
}

// Stats counts what the scheduler has seen.
type Stats struct {
	Enqueued int64
	Walks    int64
	Skipped  int64
	Services int64
	Polls    int64
	Mappings int64
	Errors   int64
}

type counters struct {
	enqueued atomic.Int64
	walks    atomic.Int64
	skipped  atomic.Int64
	services atomic.Int64
	polls    atomic.Int64
	mappings atomic.Int64
	errors   atomic.Int64
}

// Scheduler enqueues poll tasks for every configured target on its services'
// check intervals.
type Scheduler struct {
	config     Config
	store      ServiceStore
	dispatcher *booster.Dispatcher
	clock      booster.Clock
	logger     logger.Logger
	targets    map[string]*TargetConfig
	// intervals maps a check interval to the hosts owning services at it.
	intervals map[int][]string

	// OnResult, when set before Start, receives every engine result.
	OnResult func(booster.Result)
	// OnError, when set before Start, receives every reported engine error.
	OnError func(*booster.EngineError)

	stats     counters
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a scheduler. cfg is validated.
func New(cfg *Config, store ServiceStore, dispatcher *booster.Dispatcher, clock booster.Clock, log logger.Logger) (*Scheduler, error) {
	if store == nil {
		return nil, errNilStore
	}

	if dispatcher == nil {
		return nil, errNilDispatcher
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = booster.RealClock{}
	}

	s := &Scheduler{
		config:     *cfg,
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
		logger:     log,
		targets:    make(map[string]*TargetConfig, len(cfg.Targets)),
		intervals:  make(map[int][]string),
		done:       make(chan struct{}),
	}

	for i := range s.config.Targets {
		target := &s.config.Targets[i]
		s.targets[target.Host] = target

		seen := make(map[int]bool)

		for _, svc := range target.Services {
			if seen[svc.CheckInterval] {
				continue
			}

			seen[svc.CheckInterval] = true
			s.intervals[svc.CheckInterval] = append(s.intervals[svc.CheckInterval], target.Host)
		}
	}

	return s, nil
}

// Intervals returns the distinct check intervals, ascending.
func (s *Scheduler) Intervals() []int {
	out := make([]int, 0, len(s.intervals))
	for interval := range s.intervals {
		out = append(out, interval)
	}

	sort.Ints(out)

	return out
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Enqueued: s.stats.enqueued.Load(),
		Walks:    s.stats.walks.Load(),
		Skipped:  s.stats.skipped.Load(),
		Services: s.stats.services.Load(),
		Polls:    s.stats.polls.Load(),
		Mappings: s.stats.mappings.Load(),
		Errors:   s.stats.errors.Load(),
	}
}

// Init writes every configured service into the cache and its interval index.
func (s *Scheduler) Init(ctx context.Context) error {
	count := 0

	for _, target := range s.config.Targets {
		for i := range target.Services {
			svc := &target.Services[i]

			if err := s.store.UpdateServiceInit(ctx, target.Host, svc.Name, svc.record(target.Host)); err != nil {
				return fmt.Errorf("failed to initialize %s:%s: %w", target.Host, svc.Name, err)
			}

			count++
		}
	}

	s.logger.Info().
		Int("targets", len(s.config.Targets)).
		Int("services", count).
		Msg("Initialized service cache")

	return nil
}

// Start polls every interval group on its own ticker and consumes results
// until ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	intervals := s.Intervals()

	s.logger.Info().
		Ints("intervals", intervals).
		Dur("interval_unit", s.config.IntervalUnit.Std()).
		Msg("Starting scheduler")

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.consume(ctx)
	}()

	for _, interval := range intervals {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			s.runInterval(ctx, interval)
		}()
	}

	var err error

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-s.done:
	}

	s.wg.Wait()

	return err
}

// Stop ends Start.
func (s *Scheduler) Stop() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Scheduler) runInterval(ctx context.Context, interval int) {
	ticker := s.clock.Ticker(time.Duration(interval) * s.config.IntervalUnit.Std())
	defer ticker.Stop()

	for {
		if err := s.PollInterval(ctx, interval); err != nil {
			s.logger.Error().Err(err).Int("check_interval", interval).Msg("Error during poll")
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.Chan():
		}
	}
}

// PollInterval enqueues the tasks of every host with services at interval.
func (s *Scheduler) PollInterval(ctx context.Context, interval int) error {
	var errs []error

	for _, host := range s.intervals[interval] {
		if err := s.PollHost(ctx, host, interval); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// walkPlan groups the services waiting on one mapping table.
type walkPlan struct {
	root     string
	services map[string][]string
}

// PollHost enqueues one Get per resolved service of host at interval, all
// sharing one accumulator, and one walk per mapping table with unresolved
// instances.
func (s *Scheduler) PollHost(ctx context.Context, host string, interval int) error {
	target, ok := s.targets[host]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownHost, host)
	}

	records, err := s.store.GetServices(ctx, host, interval)
	if err != nil {
		return fmt.Errorf("failed to load services for %s: %w", host, err)
	}

	sink := s.dispatcher.Sink()
	acc := booster.NewAccumulator()

	type planned struct {
		record *models.ServiceRecord
		oids   []string
	}

	var (
		gets  []planned
		walks = make(map[string]*walkPlan)
	)

	for _, rec := range records {
		if rec.Mapping != "" && rec.InstanceName != "" && rec.Instance == "" {
			plan, ok := walks[rec.Mapping]
			if !ok {
				plan = &walkPlan{root: rec.Mapping, services: make(map[string][]string)}
				walks[rec.Mapping] = plan
			}

			plan.services[rec.InstanceName] = append(plan.services[rec.InstanceName], rec.Service)

			continue
		}

		oids, err := trackService(acc, host, rec)
		if err != nil {
			s.stats.skipped.Add(1)
			s.logger.Warn().Err(err).Str("host", host).Str("service", rec.Service).Msg("Skipping service")

			continue
		}

		gets = append(gets, planned{record: rec, oids: oids})
	}

	tasks := make([]*booster.PollTask, 0, len(gets)+len(walks))

	if len(gets) > 0 {
		sink.Registry().Register(acc)

		for _, p := range gets {
			corr := booster.NewCorrelator(sink, acc, &booster.ServiceResult{
				Host:    host,
				Service: p.record.Service,
				Record:  p.record,
				State:   models.ServiceStatePending,
			})

			tasks = append(tasks, booster.NewPollTask(snmp.KindGet, host, target.Auth, target.snmpTarget(), p.oids, corr))
		}
	}

	roots := make([]string, 0, len(walks))
	for root := range walks {
		roots = append(roots, root)
	}

	sort.Strings(roots)

	for _, root := range roots {
		walker, err := booster.NewMappingWalker(sink, host, root, walks[root].services)
		if err != nil {
			s.logger.Warn().Err(err).Str("host", host).Str("mapping", root).Msg("Skipping mapping walk")

			continue
		}

		kind := snmp.KindGetNext
		if target.MaxRepetitions > 0 {
			kind = snmp.KindGetBulk
		}

		task := booster.NewPollTask(kind, host, target.Auth, target.snmpTarget(), []string{root}, walker)
		task.MaxRepetitions = target.MaxRepetitions

		tasks = append(tasks, task)
		s.stats.walks.Add(1)
	}

	for _, task := range tasks {
		s.dispatcher.Enqueue(task)
	}

	s.stats.enqueued.Add(int64(len(tasks)))

	s.logger.Debug().
		Str("host", host).
		Int("check_interval", interval).
		Str("accumulator_id", acc.ID).
		Int("gets", len(gets)).
		Int("walks", len(walks)).
		Msg("Enqueued poll tasks")

	return nil
}

// trackService declares the OIDs of rec in acc and returns them deduplicated.
// Nothing is tracked when any OID cannot be resolved.
func trackService(acc *booster.Accumulator, host string, rec *models.ServiceRecord) ([]string, error) {
	names := make([]string, 0, len(rec.DS))
	for name := range rec.DS {
		names = append(names, name)
	}

	sort.Strings(names)

	type tracked struct {
		oid string
		key booster.EntryKey
	}

	var (
		entries []tracked
		oids    []string
	)

	seen := make(map[string]bool)

	for _, name := range names {
		for _, oidType := range oidTypes {
			raw, ok := rec.DS[name][oidType].(string)
			if !ok || raw == "" {
				continue
			}

			oid := strings.ReplaceAll(raw, instancePlaceholder, rec.Instance)
			if strings.Contains(oid, instancePlaceholder) || strings.HasSuffix(oid, ".") {
				return nil, fmt.Errorf("%w: ds %s oid %s", errInstanceUnresolved, name, raw)
			}

			oid = snmp.NormalizeOID(oid)
			entries = append(entries, tracked{
				oid: oid,
				key: booster.EntryKey{Host: host, Service: rec.Service, DSName: name, OIDType: oidType},
			})

			if !seen[oid] {
				seen[oid] = true
				oids = append(oids, oid)
			}
		}
	}

	if len(oids) == 0 {
		return nil, errNoOIDs
	}

	for _, e := range entries {
		acc.Track(e.oid, e.key)
	}

	return oids, nil
}

func (s *Scheduler) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case result := <-s.dispatcher.Results():
			s.handleResult(result)
		case engErr := <-s.dispatcher.Errors():
			s.stats.errors.Add(1)

			if s.OnError != nil {
				s.OnError(engErr)
			}
		}
	}
}

func (s *Scheduler) handleResult(result booster.Result) {
	switch result.Kind {
	case booster.ResultService:
		s.stats.services.Add(1)

		event := s.logger.Debug().
			Str("host", result.Service.Host).
			Str("service", result.Service.Service).
			Str("state", string(result.Service.State))

		if rec := result.Service.Record; rec != nil && rec.CheckTime != nil {
			event = event.Time("check_time", *rec.CheckTime)
		}

		event.Msg("Service polled")
	case booster.ResultPoll:
		s.stats.polls.Add(1)

		s.logger.Debug().
			Str("accumulator_id", result.Poll.AccumulatorID).
			Int("oids", len(result.Poll.Entries)).
			Msg("Poll complete")
	case booster.ResultMapping:
		s.stats.mappings.Add(1)

		m := result.Mapping
		if m.Err != nil {
			s.logger.Warn().Err(m.Err).Str("host", m.Host).Str("mapping", m.RootOID).Msg("Mapping walk failed")
		} else {
			s.logger.Info().
				Str("host", m.Host).
				Str("mapping", m.RootOID).
				Int("discovered", len(m.Discovered)).
				Msg("Mapping walk finished")
		}
	}

	if s.OnResult != nil {
		s.OnResult(result)
	}
}
