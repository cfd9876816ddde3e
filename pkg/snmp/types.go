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

// Package snmp performs SNMP requests for the polling engine. Requests are
// submitted to a Transport and completed during its Process step.
package snmp

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// Kind is the protocol operation a request performs.
type Kind int

const (
	KindUnknown Kind = iota
	KindGet
	KindGetNext
	KindGetBulk
)

func (k Kind) String() string {
	switch k {
	case KindGet:
		return "get"
	case KindGetNext:
		return "getnext"
	case KindGetBulk:
		return "getbulk"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Version is an SNMP protocol version.
type Version string

const (
	Version1  Version = "1"
	Version2c Version = "2c"
	Version3  Version = "3"
)

// Auth holds the credentials for one target.
type Auth struct {
	Version         Version `json:"version"`
	Community       string  `json:"community,omitempty"`
	Username        string  `json:"username,omitempty"`
	AuthProtocol    string  `json:"auth_protocol,omitempty"`
	AuthPassword    string  `json:"auth_password,omitempty"`
	PrivacyProtocol string  `json:"privacy_protocol,omitempty"`
	PrivacyPassword string  `json:"privacy_password,omitempty"`
}

// Validate checks that the credentials can build a client.
func (a Auth) Validate() error {
	switch a.Version {
	case Version1, Version2c:
		return nil
	case Version3:
		if a.Username == "" {
			return errUsernameReq
		}

		if _, ok := authProtocols[strings.ToUpper(a.AuthProtocol)]; a.AuthProtocol != "" && !ok {
			return fmt.Errorf("%w: %s", errUnknownAuth, a.AuthProtocol)
		}

		if _, ok := privProtocols[strings.ToUpper(a.PrivacyProtocol)]; a.PrivacyProtocol != "" && !ok {
			return fmt.Errorf("%w: %s", errUnknownPriv, a.PrivacyProtocol)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, a.Version)
	}
}

// Target is the network endpoint of an agent. Zero fields take engine defaults.
type Target struct {
	Address string
	Port    uint16
	Timeout time.Duration
	Retries int
}

// VarBind is one (OID, value) pair from a response. OctetString values are
// returned as strings.
type VarBind struct {
	OID   string
	Type  gosnmp.Asn1BER
	Value interface{}
}

// IsException reports whether the agent answered without a value.
func (v VarBind) IsException() bool {
	switch v.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return true
	default:
		return false
	}
}

// NormalizeOID returns oid with exactly one leading dot.
func NormalizeOID(oid string) string {
	oid = strings.TrimSpace(oid)
	if oid == "" {
		return oid
	}

	return "." + strings.TrimLeft(oid, ".")
}

// HasOIDPrefix reports whether oid lies under root, matching whole arcs only.
func HasOIDPrefix(oid, root string) bool {
	oid = NormalizeOID(oid)
	root = NormalizeOID(root)

	if !strings.HasPrefix(oid, root) {
		return false
	}

	return len(oid) == len(root) || oid[len(root)] == '.'
}
