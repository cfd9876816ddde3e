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

package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// CmdConfig holds the parsed command line.
type CmdConfig struct {
	Help       bool
	Version    bool
	SubCmd     string
	ConfigFile string

	// Backing store overrides applied on top of the config file.
	Backend     string
	NATSURL     string
	Bucket      string
	PostgresDSN string

	Host         string
	Service      string
	ShowTriggers bool
	ShowDS       bool
	Hours        int
	Args         []string
}

// logStyles defines styles for logging messages
type logStyles struct {
	info, success, warning, error, header lipgloss.Style
}
