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

// Package cli implements sbcm, the operator tool that inspects and cleans the
// snmp-booster cache.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/carverauto/snmpbooster/pkg/cache"
	"github.com/carverauto/snmpbooster/pkg/models"
)

// Dracula theme colors.
const (
	draculaCyan    = "#8BE9FD"
	draculaGreen   = "#50FA7B"
	draculaPurple  = "#BD93F9"
	draculaRed     = "#FF5555"
	draculaYellow  = "#F1FA8C"
	draculaComment = "#6272A4"
)

const (
	headerWidth = 79

	cmdSearch        = "search"
	cmdDeleteHost    = "delete-host"
	cmdDeleteService = "delete-service"
	cmdClearMapping  = "clear-mapping"
	cmdClearCache    = "clear-cache"
	cmdClearOld      = "clear-old"
)

func newLogStyles() logStyles {
	return logStyles{
		info: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaCyan)),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaYellow)),
		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPurple)).
			Bold(true),
	}
}

// ErrorStyle renders a fatal message the way every subcommand reports errors.
func ErrorStyle(msg string) string {
	return newLogStyles().error.Render("[ERROR] " + msg)
}

// CacheAdmin is the cache surface the subcommands operate on.
type CacheAdmin interface {
	ShowKeys(ctx context.Context) ([]string, error)
	GetService(ctx context.Context, host, service string) (*models.ServiceRecord, error)
	GetHostsFromService(ctx context.Context, service string) ([]*models.ServiceRecord, error)
	GetServicesFromHost(ctx context.Context, host string) ([]*models.ServiceRecord, error)
	ClearMapping(ctx context.Context, host, service string) ([]cache.MappingClearResult, error)
	DeleteHost(ctx context.Context, host string) (int, error)
	DeleteServices(ctx context.Context, services ...cache.ServiceKey) (int, error)
	ClearCache(ctx context.Context) error
	ClearOld(ctx context.Context, maxAge time.Duration) (int, error)
}

// SubcommandHandler defines the interface for parsing subcommand flags.
type SubcommandHandler interface {
	Parse(args []string, cfg *CmdConfig) error
}

// SearchHandler handles flags for the search subcommand.
type SearchHandler struct{}

// Parse processes the command-line arguments for the search subcommand.
func (SearchHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet(cmdSearch, flag.ContinueOnError)
	host := fs.String("H", "", "host name (regular expression anchored at the start of the key)")
	service := fs.String("S", "", "service name (regular expression)")
	showTriggers := fs.Bool("t", false, "show triggers")
	showDS := fs.Bool("d", false, "show datasources")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing search flags: %w", err)
	}

	cfg.Host = *host
	cfg.Service = *service
	cfg.ShowTriggers = *showTriggers
	cfg.ShowDS = *showDS

	return nil
}

// DeleteHostHandler handles flags for the delete-host subcommand.
type DeleteHostHandler struct{}

// Parse processes the command-line arguments for the delete-host subcommand.
func (DeleteHostHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet(cmdDeleteHost, flag.ContinueOnError)
	host := fs.String("H", "", "host name")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing delete-host flags: %w", err)
	}

	if *host == "" {
		return fmt.Errorf("%s %w", cmdDeleteHost, errRequiresHost)
	}

	cfg.Host = *host

	return nil
}

// DeleteServiceHandler handles flags for the delete-service subcommand.
type DeleteServiceHandler struct{}

// Parse processes the command-line arguments for the delete-service subcommand.
func (DeleteServiceHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet(cmdDeleteService, flag.ContinueOnError)
	host := fs.String("H", "", "host name")
	service := fs.String("S", "", "service name")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing delete-service flags: %w", err)
	}

	if *host == "" {
		return fmt.Errorf("%s %w", cmdDeleteService, errRequiresHost)
	}

	if *service == "" {
		return fmt.Errorf("%s %w", cmdDeleteService, errRequiresService)
	}

	cfg.Host = *host
	cfg.Service = *service

	return nil
}

// ClearMappingHandler handles flags for the clear-mapping subcommand.
type ClearMappingHandler struct{}

// Parse processes the command-line arguments for the clear-mapping subcommand.
func (ClearMappingHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet(cmdClearMapping, flag.ContinueOnError)
	host := fs.String("H", "", "host name")
	service := fs.String("S", "", "service name")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing clear-mapping flags: %w", err)
	}

	cfg.Host = *host
	cfg.Service = *service

	return nil
}

// ClearCacheHandler handles the clear-cache subcommand, which takes no flags.
type ClearCacheHandler struct{}

// Parse processes the command-line arguments for the clear-cache subcommand.
func (ClearCacheHandler) Parse(args []string, _ *CmdConfig) error {
	fs := flag.NewFlagSet(cmdClearCache, flag.ContinueOnError)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing clear-cache flags: %w", err)
	}

	return nil
}

// ClearOldHandler handles flags for the clear-old subcommand.
type ClearOldHandler struct{}

// Parse processes the command-line arguments for the clear-old subcommand.
func (ClearOldHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet(cmdClearOld, flag.ContinueOnError)
	hours := fs.Int("hours", 0, "remove services with no data for this many hours")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing clear-old flags: %w", err)
	}

	if *hours <= 0 {
		return fmt.Errorf("%w: %d", errInvalidHours, *hours)
	}

	cfg.Hours = *hours

	return nil
}

func subcommands() map[string]SubcommandHandler {
	return map[string]SubcommandHandler{
		cmdSearch:        SearchHandler{},
		cmdDeleteHost:    DeleteHostHandler{},
		cmdDeleteService: DeleteServiceHandler{},
		cmdClearMapping:  ClearMappingHandler{},
		cmdClearCache:    ClearCacheHandler{},
		cmdClearOld:      ClearOldHandler{},
	}
}

// ParseFlags parses the global flags, then the subcommand and its flags.
// args excludes the program name.
func ParseFlags(args []string) (*CmdConfig, error) {
	fs := flag.NewFlagSet("sbcm", flag.ContinueOnError)
	help := fs.Bool("help", false, "show help message")
	showVersion := fs.Bool("version", false, "print version and exit")
	configFile := fs.String("config", "/etc/snmp-booster/snmp-booster.json", "path to the snmp-booster config file")
	backend := fs.String("backend", "", "backing store override: nats, postgres or memory")
	natsURL := fs.String("nats-url", "", "NATS server URL override")
	bucket := fs.String("bucket", "", "JetStream KV bucket override")
	postgresDSN := fs.String("postgres-dsn", "", "PostgreSQL DSN override")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := &CmdConfig{
		Help:        *help,
		Version:     *showVersion,
		ConfigFile:  *configFile,
		Backend:     *backend,
		NATSURL:     *natsURL,
		Bucket:      *bucket,
		PostgresDSN: *postgresDSN,
		Args:        fs.Args(),
	}

	if cfg.Help || cfg.Version {
		return cfg, nil
	}

	if len(cfg.Args) == 0 {
		return cfg, errMissingSubcommand
	}

	cfg.SubCmd = cfg.Args[0]

	handler, ok := subcommands()[cfg.SubCmd]
	if !ok {
		return cfg, fmt.Errorf("%w: %s", errUnknownSubcommand, cfg.SubCmd)
	}

	if err := handler.Parse(cfg.Args[1:], cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ApplyOverrides copies the backing store flags onto the cache configuration.
func (c *CmdConfig) ApplyOverrides(cfg *cache.Config) {
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}

	if c.NATSURL != "" {
		cfg.NATSURL = c.NATSURL
	}

	if c.Bucket != "" {
		cfg.Bucket = c.Bucket
	}

	if c.PostgresDSN != "" {
		cfg.PostgresDSN = c.PostgresDSN
	}
}

// Run executes the parsed subcommand against the cache, writing to w.
func Run(ctx context.Context, cfg *CmdConfig, admin CacheAdmin, w io.Writer) error {
	styles := newLogStyles()

	switch cfg.SubCmd {
	case cmdSearch:
		return RunSearch(ctx, cfg, admin, w, styles)
	case cmdDeleteHost, cmdDeleteService:
		return RunDelete(ctx, cfg, admin, w, styles)
	case cmdClearMapping:
		return RunClearMapping(ctx, cfg, admin, w, styles)
	case cmdClearCache:
		if err := admin.ClearCache(ctx); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}

		fmt.Fprintln(w, styles.success.Render("[SUCCESS] Cache cleared"))

		return nil
	case cmdClearOld:
		return RunClearOld(ctx, cfg, admin, w, styles)
	default:
		return fmt.Errorf("%w: %s", errUnknownSubcommand, cfg.SubCmd)
	}
}

// RunSearch prints the records selected by host and service, or every key when
// neither is given.
func RunSearch(ctx context.Context, cfg *CmdConfig, admin CacheAdmin, w io.Writer, styles logStyles) error {
	if cfg.Host == "" && cfg.Service == "" {
		keys, err := admin.ShowKeys(ctx)
		if err != nil {
			return fmt.Errorf("listing keys: %w", err)
		}

		for _, key := range keys {
			fmt.Fprintln(w, key)
		}

		return nil
	}

	records, err := searchRecords(ctx, cfg, admin)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(w, styles.warning.Render("[WARN] No results found in cache"))

		return nil
	}

	rule := strings.Repeat("=", headerWidth)

	for _, rec := range records {
		out := rec.Clone()

		if !cfg.ShowDS {
			out.DS = nil
		}

		if !cfg.ShowTriggers {
			out.Triggers = nil
		}

		body, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("rendering %s/%s: %w", rec.Host, rec.Service, err)
		}

		fmt.Fprintln(w, styles.header.Render(rule))
		fmt.Fprintln(w, styles.header.Render("== "+rec.Host))
		fmt.Fprintln(w, styles.header.Render("== "+rec.Service))
		fmt.Fprintln(w, styles.header.Render(rule))
		fmt.Fprintln(w, string(body))
	}

	return nil
}

func searchRecords(ctx context.Context, cfg *CmdConfig, admin CacheAdmin) ([]*models.ServiceRecord, error) {
	switch {
	case cfg.Host != "" && cfg.Service != "":
		rec, err := admin.GetService(ctx, cfg.Host, cfg.Service)
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("reading %s/%s: %w", cfg.Host, cfg.Service, err)
		}

		return []*models.ServiceRecord{rec}, nil
	case cfg.Service != "":
		return admin.GetHostsFromService(ctx, cfg.Service)
	default:
		return admin.GetServicesFromHost(ctx, cfg.Host)
	}
}

// RunDelete removes one service record, or every key of a host.
func RunDelete(ctx context.Context, cfg *CmdConfig, admin CacheAdmin, w io.Writer, styles logStyles) error {
	var (
		removed int
		err     error
	)

	if cfg.Service != "" {
		removed, err = admin.DeleteServices(ctx, cache.ServiceKey{Host: cfg.Host, Service: cfg.Service})
	} else {
		removed, err = admin.DeleteHost(ctx, cfg.Host)
	}

	if err != nil {
		return fmt.Errorf("deleting from cache: %w", err)
	}

	fmt.Fprintln(w, styles.success.Render(fmt.Sprintf("[SUCCESS] %d key(s) deleted in cache", removed)))

	return nil
}

// RunClearMapping drops discovered instances so the next poll walks the mapping table again.
func RunClearMapping(ctx context.Context, cfg *CmdConfig, admin CacheAdmin, w io.Writer, styles logStyles) error {
	results, err := admin.ClearMapping(ctx, cfg.Host, cfg.Service)
	if err != nil {
		return fmt.Errorf("clearing mapping: %w", err)
	}

	for _, r := range results {
		if r.Cleared {
			fmt.Fprintln(w, styles.success.Render(
				fmt.Sprintf("[SUCCESS] Instance cleared for host '%s' and service '%s'", r.Host, r.Service)))

			continue
		}

		fmt.Fprintln(w, styles.info.Render(
			fmt.Sprintf("[INFO] Nothing to do for host '%s' and service '%s'", r.Host, r.Service)))
	}

	return nil
}

// RunClearOld removes records that have not been checked for cfg.Hours.
func RunClearOld(ctx context.Context, cfg *CmdConfig, admin CacheAdmin, w io.Writer, styles logStyles) error {
	removed, err := admin.ClearOld(ctx, time.Duration(cfg.Hours)*time.Hour)
	if err != nil {
		return fmt.Errorf("clearing old services: %w", err)
	}

	fmt.Fprintln(w, styles.success.Render(
		fmt.Sprintf("[SUCCESS] %d service(s) without data for %d hour(s) deleted", removed, cfg.Hours)))

	return nil
}
