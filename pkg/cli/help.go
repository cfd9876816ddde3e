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
	"fmt"
	"io"
)

// PrintUsage writes the command help to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: sbcm [global options] <command> [options]

SNMP Booster Cache Manager

Global options:
  -config string        path to the snmp-booster config file (default "/etc/snmp-booster/snmp-booster.json")
  -backend string       backing store override: nats, postgres or memory
  -nats-url string      NATS server URL override
  -bucket string        JetStream KV bucket override
  -postgres-dsn string  PostgreSQL DSN override
  -version              print version and exit
  -help                 show this help message

Commands:
  search          show cached services (lists every key without -H/-S)
    -H string       host name
    -S string       service name
    -t              show triggers
    -d              show datasources
  delete-host     remove every key of a host
    -H string       host name (required)
  delete-service  remove one service
    -H string       host name (required)
    -S string       service name (required)
  clear-mapping   drop discovered instances so mappings are walked again
    -H string       host name
    -S string       service name
  clear-cache     remove everything from the cache
  clear-old       remove services without data
    -hours int      age in hours (required)

Examples:
  sbcm search -H router1 -d
  sbcm -backend nats -nats-url nats://127.0.0.1:4222 clear-mapping -S '^if-'
  sbcm clear-old -hours 48
`)
}
