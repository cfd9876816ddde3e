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
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/snmpbooster/pkg/booster"
	"github.com/carverauto/snmpbooster/pkg/cache"
	"github.com/carverauto/snmpbooster/pkg/config"
	"github.com/carverauto/snmpbooster/pkg/kv"
	"github.com/carverauto/snmpbooster/pkg/lifecycle"
	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/natsutil"
	"github.com/carverauto/snmpbooster/pkg/scheduler"
	"github.com/carverauto/snmpbooster/pkg/snmp"
	"github.com/carverauto/snmpbooster/pkg/version"
)

var (
	errFailedToLoadConfig = errors.New("failed to load config")
	errCacheUnavailable   = errors.New("cache unavailable at startup")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/snmp-booster/snmp-booster.json", "Path to snmp-booster config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("snmp-booster " + version.GetFullVersion())

		return nil
	}

	ctx := context.Background()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		return err
	}

	if err := lifecycle.InitializeLogger(cfg.Logging); err != nil {
		return err
	}

	base, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	svcLogger := logger.Wrap(base.WithComponent("snmp-booster"))

	if _, err := logger.InitializeMetrics(ctx, *cfg.Metrics); err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		svcLogger.Warn().Err(err).Msg("Metrics exporter not started")
	}

	if _, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    "snmp-booster",
		ServiceVersion: version.GetVersion(),
		OTel:           &cfg.Logging.OTel,
	}); err != nil {
		svcLogger.Warn().Err(err).Msg("Trace exporter not started")
	}

	store := cache.NewFromConfig(cfg.Cache, base)
	if err := store.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", errCacheUnavailable, err)
	}

	engine := snmp.NewEngine(cfg.SNMP, nil, base)

	dispatcher, err := booster.NewDispatcher(cfg.Booster, booster.Options{
		Transport: engine,
		Cache:     store,
		Metrics:   booster.NewMetrics(nil),
		Logger:    logger.Wrap(base.WithComponent("booster")),
	})
	if err != nil {
		return err
	}

	sched, err := scheduler.New(&cfg.Scheduler, store, dispatcher, nil, logger.Wrap(base.WithComponent("scheduler")))
	if err != nil {
		return err
	}

	if err := sched.Init(ctx); err != nil {
		return err
	}

	var eventsConn *nats.Conn

	if cfg.Events.Enabled {
		publisher, nc, err := natsutil.ConnectWithEventPublisher(ctx, &cfg.Events, logger.Wrap(base.WithComponent("events")))
		if err != nil {
			return err
		}

		eventsConn = nc

		events := &resultPublisher{sink: publisher, logger: logger.Wrap(base.WithComponent("events"))}
		sched.OnResult = events.onResult
		sched.OnError = events.onError
	}

	svcLogger.Info().
		Str("version", version.GetFullVersion()).
		Bool("events", cfg.Events.Enabled).
		Str("backend", cfg.Cache.Backend).
		Int("targets", len(cfg.Scheduler.Targets)).
		Ints("intervals", sched.Intervals()).
		Msg("snmp-booster started")

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ServiceName: "snmp-booster",
		Components: []lifecycle.Component{
			{Name: "dispatcher", Run: dispatcher.Run, Stop: dispatcher.Stop},
			{Name: "scheduler", Run: sched.Start, Stop: sched.Stop},
		},
		ShutdownTimeout: cfg.ShutdownTimeout.Std(),
		Logger:          svcLogger,
		OnShutdown: func(ctx context.Context) error {
			stats := sched.Stats()

			svcLogger.Info().
				Int64("enqueued", stats.Enqueued).
				Int64("walks", stats.Walks).
				Int64("skipped", stats.Skipped).
				Int64("services", stats.Services).
				Int64("polls", stats.Polls).
				Int64("mappings", stats.Mappings).
				Int64("errors", stats.Errors).
				Msg("Final scheduler stats")

			if eventsConn != nil {
				if err := eventsConn.Drain(); err != nil {
					svcLogger.Warn().Err(err).Msg("Failed to drain events connection")
				}
			}

			return errors.Join(engine.Close(), store.Disconnect(), logger.ShutdownMetrics(ctx), logger.ShutdownOTEL(ctx))
		},
	})
}

// loadConfig reads the daemon configuration. With CONFIG_SOURCE=kv the
// bootstrap store is described by SNMPBOOSTER_KV_* variables.
func loadConfig(ctx context.Context, path string) (*Config, error) {
	loader := config.NewConfig(nil)

	if strings.EqualFold(os.Getenv("CONFIG_SOURCE"), "kv") {
		var kvCfg kv.Config

		if err := config.NewEnvConfigLoader(logger.Wrap(logger.GetLogger()), "SNMPBOOSTER_KV_").Load(ctx, "", &kvCfg); err != nil {
			return nil, fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
		}

		bootstrap, err := kv.Open(ctx, &kvCfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
		}
		defer func() { _ = bootstrap.Close() }()

		loader.SetKVStore(bootstrap)
	}

	var cfg Config

	if err := loader.LoadAndValidate(ctx, path, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	return &cfg, nil
}
