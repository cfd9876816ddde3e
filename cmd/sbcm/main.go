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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carverauto/snmpbooster/pkg/cache"
	"github.com/carverauto/snmpbooster/pkg/cli"
	"github.com/carverauto/snmpbooster/pkg/config"
	"github.com/carverauto/snmpbooster/pkg/lifecycle"
	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/version"
)

// fileConfig is the part of the daemon configuration sbcm needs.
type fileConfig struct {
	Cache cache.Config `json:"cache"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorStyle(err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd, err := cli.ParseFlags(args)
	if err != nil {
		cli.PrintUsage(os.Stderr)

		return err
	}

	if cmd.Help {
		cli.PrintUsage(os.Stdout)

		return nil
	}

	if cmd.Version {
		fmt.Println("sbcm " + version.GetFullVersion())

		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := lifecycle.CreateComponentLogger("sbcm", &logger.Config{Level: "warn", Output: "stderr"})
	if err != nil {
		return err
	}

	var cfg fileConfig

	if err := config.NewConfig(log).LoadAndValidate(ctx, cmd.ConfigFile, &cfg); err != nil && !hasOverrides(cmd) {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cmd.ApplyOverrides(&cfg.Cache)

	if err := cfg.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache settings: %w", err)
	}

	store := cache.NewFromConfig(cfg.Cache, log)
	if err := store.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = store.Disconnect() }()

	return cli.Run(ctx, cmd, store, os.Stdout)
}

// hasOverrides reports whether the flags alone select a backing store.
func hasOverrides(cmd *cli.CmdConfig) bool {
	return cmd.Backend != ""
}
