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
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

const defaultSNMPPort = 161

// Client is the subset of gosnmp the engine uses.
type Client interface {
	Connect() error
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	GetNext(oids []string) (*gosnmp.SnmpPacket, error)
	GetBulk(oids []string, nonRepeaters uint8, maxRepetitions uint32) (*gosnmp.SnmpPacket, error)
	Close() error
}

// ClientFactory builds a client for a request.
type ClientFactory interface {
	NewClient(req *Request) (Client, error)
}

var authProtocols = map[string]gosnmp.SnmpV3AuthProtocol{
	"MD5":    gosnmp.MD5,
	"SHA":    gosnmp.SHA,
	"SHA224": gosnmp.SHA224,
	"SHA256": gosnmp.SHA256,
	"SHA384": gosnmp.SHA384,
	"SHA512": gosnmp.SHA512,
}

var privProtocols = map[string]gosnmp.SnmpV3PrivProtocol{
	"DES":    gosnmp.DES,
	"AES":    gosnmp.AES,
	"AES192": gosnmp.AES192,
	"AES256": gosnmp.AES256,
}

// GoSNMPFactory builds gosnmp clients with engine defaults.
type GoSNMPFactory struct {
	Port    uint16
	Timeout time.Duration
	Retries int
	MaxOIDs int
}

type goSNMPClient struct {
	*gosnmp.GoSNMP
}

func (c goSNMPClient) Close() error {
	if c.Conn == nil {
		return nil
	}

	return c.Conn.Close()
}

// NewClient configures a gosnmp client from the request's target and credentials.
func (f GoSNMPFactory) NewClient(req *Request) (Client, error) {
	if req.Target.Address == "" {
		return nil, errNoAddress
	}

	client := &gosnmp.GoSNMP{
		Target:             req.Target.Address,
		Port:               firstNonZero(req.Target.Port, f.Port, defaultSNMPPort),
		Timeout:            f.Timeout,
		Retries:            f.Retries,
		MaxOids:            gosnmp.MaxOids,
		MaxRepetitions:     10,
		ExponentialTimeout: true,
	}

	if req.Target.Timeout > 0 {
		client.Timeout = req.Target.Timeout
	}

	if req.Target.Retries > 0 {
		client.Retries = req.Target.Retries
	}

	if f.MaxOIDs > 0 {
		client.MaxOids = f.MaxOIDs
	}

	if req.MaxRepetitions > 0 {
		client.MaxRepetitions = req.MaxRepetitions
	}

	if err := configureVersion(client, req.Auth); err != nil {
		return nil, err
	}

	return goSNMPClient{client}, nil
}

func configureVersion(client *gosnmp.GoSNMP, auth Auth) error {
	if err := auth.Validate(); err != nil {
		return err
	}

	switch auth.Version {
	case Version1:
		client.Version = gosnmp.Version1
		client.Community = auth.Community
	case Version2c:
		client.Version = gosnmp.Version2c
		client.Community = auth.Community
	case Version3:
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel

		usm := &gosnmp.UsmSecurityParameters{UserName: auth.Username}
		client.MsgFlags = gosnmp.NoAuthNoPriv

		if proto, ok := authProtocols[strings.ToUpper(auth.AuthProtocol)]; ok {
			usm.AuthenticationProtocol = proto
			usm.AuthenticationPassphrase = auth.AuthPassword
			client.MsgFlags = gosnmp.AuthNoPriv
		}

		if proto, ok := privProtocols[strings.ToUpper(auth.PrivacyProtocol)]; ok && client.MsgFlags == gosnmp.AuthNoPriv {
			usm.PrivacyProtocol = proto
			usm.PrivacyPassphrase = auth.PrivacyPassword
			client.MsgFlags = gosnmp.AuthPriv
		}

		client.SecurityParameters = usm
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, auth.Version)
	}

	return nil
}

func firstNonZero(values ...uint16) uint16 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}

	return 0
}
