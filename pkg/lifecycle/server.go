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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/snmpbooster/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

var errNoComponents = errors.New("no components to run")

// Component is one supervised loop. Run blocks until ctx is canceled or Stop
// is called.
type Component struct {
	Name string
	Run  func(ctx context.Context) error
	Stop func()
}

// ServerOptions configures RunServer.
type ServerOptions struct {
	ServiceName     string
	Components      []Component
	ShutdownTimeout time.Duration
	Logger          logger.Logger
	// OnShutdown runs once every component has returned, bounded by ShutdownTimeout.
	OnShutdown func(ctx context.Context) error
}

// RunServer runs every component until SIGINT/SIGTERM, ctx cancellation or the
// first component failure, then stops the rest and waits for them.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	if len(opts.Components) == 0 {
		return errNoComponents
	}

	log := opts.Logger
	if log == nil {
		log = logger.Wrap(logger.WithComponent(opts.ServiceName))
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	g, gctx := errgroup.WithContext(ctx)

	for _, c := range opts.Components {
		g.Go(func() error {
			log.Info().Str("component", c.Name).Msg("Starting component")

			err := c.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("component", c.Name).Msg("Component failed")

				return fmt.Errorf("%s: %w", c.Name, err)
			}

			log.Info().Str("component", c.Name).Msg("Component stopped")

			return nil
		})
	}

	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		<-gctx.Done()

		log.Info().Str("service", opts.ServiceName).Msg("Shutting down")

		for _, c := range opts.Components {
			if c.Stop != nil {
				c.Stop()
			}
		}
	}()

	err := g.Wait()

	<-stopped

	if opts.OnShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		if shutdownErr := opts.OnShutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("Error during shutdown")

			err = errors.Join(err, shutdownErr)
		}
	}

	return err
}
