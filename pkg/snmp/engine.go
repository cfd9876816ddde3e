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

package snmp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
)

const (
	defaultTimeout        = 2 * time.Second
	defaultRetries        = 1
	defaultMaxConcurrency = 16
)

// Config holds engine-wide defaults.
type Config struct {
	Timeout        models.Duration `json:"timeout,omitempty"`
	Retries        int             `json:"retries,omitempty"`
	MaxConcurrency int             `json:"max_concurrency,omitempty"`
	Port           uint16          `json:"port,omitempty"`
	MaxOIDs        int             `json:"max_oids,omitempty"`
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		c.Timeout = models.Duration(defaultTimeout)
	}

	if c.Retries < 0 {
		c.Retries = defaultRetries
	}

	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}

	if c.MaxOIDs <= 0 {
		c.MaxOIDs = gosnmp.MaxOids
	}

	return nil
}

// Engine is the gosnmp-backed Transport.
type Engine struct {
	mu      sync.Mutex
	pending []*Request
	closed  bool
	config  Config
	factory ClientFactory
	logger  logger.Logger
}

var _ Transport = (*Engine)(nil)

// NewEngine creates an engine. A nil factory uses gosnmp with the config defaults.
func NewEngine(cfg Config, factory ClientFactory, log logger.Logger) *Engine {
	_ = cfg.Validate()

	if factory == nil {
		factory = GoSNMPFactory{
			Port:    cfg.Port,
			Timeout: cfg.Timeout.Std(),
			Retries: cfg.Retries,
			MaxOIDs: cfg.MaxOIDs,
		}
	}

	return &Engine{
		config:  cfg,
		factory: factory,
		logger:  logger.Wrap(log.WithComponent("snmp")),
	}
}

func (e *Engine) Submit(req *Request) error {
	if len(req.OIDs) == 0 {
		return errNoOIDs
	}

	switch req.Kind {
	case KindGet, KindGetNext, KindGetBulk:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	e.pending = append(e.pending, req)

	return nil
}

func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.pending)
}

func (e *Engine) Process(ctx context.Context) (int, error) {
	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxConcurrency)

	for _, req := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				req.Fail(err)

				return nil
			}

			req.Complete(e.execute(req))

			return nil
		})
	}

	_ = g.Wait()

	return len(batch), ctx.Err()
}

func (e *Engine) Close() error {
	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.closed = true
	e.mu.Unlock()

	for _, req := range batch {
		req.Fail(ErrClosed)
	}

	return nil
}

func (e *Engine) execute(req *Request) *Response {
	client, err := e.factory.NewClient(req)
	if err != nil {
		return &Response{Err: err}
	}

	if err := client.Connect(); err != nil {
		return &Response{Err: fmt.Errorf("connect %s: %w", req.Target.Address, err)}
	}

	defer func() {
		if err := client.Close(); err != nil {
			e.logger.Debug().Err(err).Str("host", req.Target.Address).Msg("Failed to close SNMP connection")
		}
	}()

	var binds []VarBind

	switch req.Kind {
	case KindGet, KindGetNext:
		binds, err = e.chunked(client, req)
	case KindGetBulk:
		binds, err = collect(client.GetBulk(req.OIDs, req.NonRepeaters, req.MaxRepetitions))
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}

	if err != nil {
		e.logger.Debug().
			Err(err).
			Str("request_id", req.ID).
			Str("host", req.Target.Address).
			Str("kind", req.Kind.String()).
			Msg("SNMP request failed")

		return &Response{Err: err}
	}

	return &Response{VarBinds: binds}
}

// chunked splits Get and GetNext requests that carry more OIDs than one PDU allows.
func (e *Engine) chunked(client Client, req *Request) ([]VarBind, error) {
	op := client.Get
	if req.Kind == KindGetNext {
		op = client.GetNext
	}

	binds := make([]VarBind, 0, len(req.OIDs))

	for start := 0; start < len(req.OIDs); start += e.config.MaxOIDs {
		end := start + e.config.MaxOIDs
		if end > len(req.OIDs) {
			end = len(req.OIDs)
		}

		part, err := collect(op(req.OIDs[start:end]))
		if err != nil {
			return nil, err
		}

		binds = append(binds, part...)
	}

	return binds, nil
}

func collect(packet *gosnmp.SnmpPacket, err error) ([]VarBind, error) {
	if err != nil {
		return nil, err
	}

	if packet == nil {
		return nil, errNilResponse
	}

	if packet.Error != gosnmp.NoError {
		return nil, fmt.Errorf("%w: %s at index %d", ErrAgent, packet.Error, packet.ErrorIndex)
	}

	binds := make([]VarBind, 0, len(packet.Variables))

	for _, pdu := range packet.Variables {
		binds = append(binds, toVarBind(pdu))
	}

	return binds, nil
}

func toVarBind(pdu gosnmp.SnmpPDU) VarBind {
	bind := VarBind{OID: NormalizeOID(pdu.Name), Type: pdu.Type, Value: pdu.Value}

	//nolint:exhaustive // other types keep the decoded value
	switch pdu.Type {
	case gosnmp.OctetString:
		if raw, ok := pdu.Value.([]byte); ok {
			bind.Value = string(raw)
		}
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		bind.Value = nil
	}

	return bind
}
