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

package kv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/snmpbooster/pkg/natsutil"
)

// NATS subjects cannot carry ':' or spaces, so logical keys are base64url
// encoded under a namespace prefix.
const (
	valuePrefix = "v."
	setPrefix   = "s."

	maxSetAttempts = 16
)

var keyEncoding = base64.RawURLEncoding

// NATSStore implements Store on a JetStream key-value bucket.
type NATSStore struct {
	mu            sync.Mutex
	natsURL       string
	bucket        string
	bucketHistory uint8
	connectFn     func() (*nats.Conn, error)
	nc            *nats.Conn
	kv            jetstream.KeyValue
}

var _ Store = (*NATSStore)(nil)

// NewNATSStore connects to NATS and opens (or creates) the configured bucket.
func NewNATSStore(ctx context.Context, cfg *Config) (*NATSStore, error) {
	store := &NATSStore{
		natsURL:       cfg.NATSURL,
		bucket:        cfg.Bucket,
		bucketHistory: cfg.BucketHistory,
	}

	opts, err := natsutil.AuthOptions(cfg.NKeySeedFile, nats.Name("snmp-booster"))
	if err != nil {
		return nil, err
	}

	store.connectFn = func() (*nats.Conn, error) {
		return natsutil.ConnectWithSecurity(store.natsURL, cfg.TLS, nil, opts...)
	}

	if _, err := store.keyValue(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// keyValue returns the bucket handle, reconnecting when the connection was closed.
func (n *NATSStore) keyValue(ctx context.Context) (jetstream.KeyValue, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.nc != nil && !n.nc.IsClosed() && n.kv != nil {
		return n.kv, nil
	}

	if n.nc != nil {
		n.nc.Close()
		n.nc = nil
		n.kv = nil
	}

	nc, err := n.connectFn()
	if err != nil {
		return nil, fmt.Errorf("%w: connect to NATS: %w", ErrUnavailable, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("%w: create JetStream context: %w", ErrUnavailable, err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  n.bucket,
		History: n.bucketHistory,
	})
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("%w: open bucket %s: %w", ErrUnavailable, n.bucket, err)
	}

	n.nc = nc
	n.kv = kv

	return kv, nil
}

func valueKey(key string) string {
	return valuePrefix + keyEncoding.EncodeToString([]byte(key))
}

func setKey(key string) string {
	return setPrefix + keyEncoding.EncodeToString([]byte(key))
}

// decodeKey reverses valueKey and setKey.
func decodeKey(stored string) (string, bool) {
	var raw string

	switch {
	case strings.HasPrefix(stored, valuePrefix):
		raw = strings.TrimPrefix(stored, valuePrefix)
	case strings.HasPrefix(stored, setPrefix):
		raw = strings.TrimPrefix(stored, setPrefix)
	default:
		return "", false
	}

	decoded, err := keyEncoding.DecodeString(raw)
	if err != nil {
		return "", false
	}

	return string(decoded), true
}

// classify maps connectivity failures onto ErrUnavailable.
func classify(op, key string, err error) error {
	switch {
	case errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, jetstream.ErrNoStreamResponse):
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, op, key, err)
	default:
		return fmt.Errorf("failed to %s key %s: %w", op, key, err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

func isWrongSequence(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}

func (n *NATSStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := n.GetEntry(ctx, key)
	if err != nil {
		return nil, false, err
	}

	return entry.Value, entry.Found, nil
}

func (n *NATSStore) GetEntry(ctx context.Context, key string) (Entry, error) {
	return n.getRaw(ctx, valueKey(key), key)
}

func (n *NATSStore) getRaw(ctx context.Context, stored, key string) (Entry, error) {
	kv, err := n.keyValue(ctx)
	if err != nil {
		return Entry{}, err
	}

	entry, err := kv.Get(ctx, stored)
	if isNotFound(err) {
		return Entry{}, nil
	}

	if err != nil {
		return Entry{}, classify("get", key, err)
	}

	return Entry{Value: entry.Value(), Revision: entry.Revision(), Found: true}, nil
}

func (n *NATSStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errEmptyKey
	}

	kv, err := n.keyValue(ctx)
	if err != nil {
		return err
	}

	if _, err := kv.Put(ctx, valueKey(key), value); err != nil {
		return classify("put", key, err)
	}

	return nil
}

func (n *NATSStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if key == "" {
		return 0, errEmptyKey
	}

	return n.createRaw(ctx, valueKey(key), key, value)
}

func (n *NATSStore) createRaw(ctx context.Context, stored, key string, value []byte) (uint64, error) {
	kv, err := n.keyValue(ctx)
	if err != nil {
		return 0, err
	}

	rev, err := kv.Create(ctx, stored, value)
	if err != nil {
		if isWrongSequence(err) {
			return 0, ErrKeyExists
		}

		return 0, classify("create", key, err)
	}

	return rev, nil
}

func (n *NATSStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if key == "" {
		return 0, errEmptyKey
	}

	return n.updateRaw(ctx, valueKey(key), key, value, revision)
}

func (n *NATSStore) updateRaw(ctx context.Context, stored, key string, value []byte, revision uint64) (uint64, error) {
	kv, err := n.keyValue(ctx)
	if err != nil {
		return 0, err
	}

	rev, err := kv.Update(ctx, stored, value, revision)
	if err != nil {
		if isWrongSequence(err) || isNotFound(err) {
			return 0, ErrCASMismatch
		}

		return 0, classify("update", key, err)
	}

	return rev, nil
}

// SetAdd stores sets as sorted JSON arrays and merges members with a CAS loop.
func (n *NATSStore) SetAdd(ctx context.Context, key string, members ...string) error {
	if key == "" {
		return errEmptyKey
	}

	stored := setKey(key)

	for attempt := 0; attempt < maxSetAttempts; attempt++ {
		entry, err := n.getRaw(ctx, stored, key)
		if err != nil {
			return err
		}

		existing, err := decodeMembers(entry)
		if err != nil {
			return fmt.Errorf("decode set %s: %w", key, err)
		}

		merged, changed := mergeMembers(existing, members...)
		if entry.Found && !changed {
			return nil
		}

		payload, err := json.Marshal(merged)
		if err != nil {
			return err
		}

		if entry.Found {
			_, err = n.updateRaw(ctx, stored, key, payload, entry.Revision)
		} else {
			_, err = n.createRaw(ctx, stored, key, payload)
		}

		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrCASMismatch), errors.Is(err, ErrKeyExists):
			continue
		default:
			return err
		}
	}

	return fmt.Errorf("%w: %s", errSetContention, key)
}

func decodeMembers(entry Entry) ([]string, error) {
	if !entry.Found || len(entry.Value) == 0 {
		return nil, nil
	}

	var members []string
	if err := json.Unmarshal(entry.Value, &members); err != nil {
		return nil, err
	}

	return members, nil
}

func (n *NATSStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	entry, err := n.getRaw(ctx, setKey(key), key)
	if err != nil {
		return nil, err
	}

	members, err := decodeMembers(entry)
	if err != nil {
		return nil, fmt.Errorf("decode set %s: %w", key, err)
	}

	if members == nil {
		return []string{}, nil
	}

	return sortedUnique(members), nil
}

// storedKeys lists the raw bucket keys.
func (n *NATSStore) storedKeys(ctx context.Context) ([]string, error) {
	kv, err := n.keyValue(ctx)
	if err != nil {
		return nil, err
	}

	lister, err := kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}

		return nil, classify("list", n.bucket, err)
	}

	defer func() { _ = lister.Stop() }()

	var keys []string

	for key := range lister.Keys() {
		keys = append(keys, key)
	}

	return keys, nil
}

func (n *NATSStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	stored, err := n.storedKeys(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(stored))

	for _, s := range stored {
		key, ok := decodeKey(s)
		if ok && re.MatchString(key) {
			out = append(out, key)
		}
	}

	return sortedUnique(out), nil
}

func (n *NATSStore) Delete(ctx context.Context, keys ...string) (int, error) {
	kv, err := n.keyValue(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, key := range keys {
		existed := false

		for _, stored := range []string{valueKey(key), setKey(key)} {
			_, err := kv.Get(ctx, stored)
			if isNotFound(err) {
				continue
			}

			if err != nil {
				return removed, classify("get", key, err)
			}

			if err := kv.Purge(ctx, stored); err != nil {
				return removed, classify("delete", key, err)
			}

			existed = true
		}

		if existed {
			removed++
		}
	}

	return removed, nil
}

func (n *NATSStore) Flush(ctx context.Context) error {
	kv, err := n.keyValue(ctx)
	if err != nil {
		return err
	}

	stored, err := n.storedKeys(ctx)
	if err != nil {
		return err
	}

	for _, s := range stored {
		if err := kv.Purge(ctx, s); err != nil && !isNotFound(err) {
			return classify("purge", s, err)
		}
	}

	return nil
}

func (n *NATSStore) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.nc != nil {
		n.nc.Close()
		n.nc = nil
		n.kv = nil
	}

	return nil
}
