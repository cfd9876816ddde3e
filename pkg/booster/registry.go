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

package booster

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Registry tracks live accumulators and gives up on those that outlive their TTL.
type Registry struct {
	items    *ttlcache.Cache[string, *Accumulator]
	reporter *Reporter
}

// NewRegistry creates a registry whose accumulators expire after ttl.
func NewRegistry(ttl time.Duration, reporter *Reporter) *Registry {
	r := &Registry{
		items: ttlcache.New(
			ttlcache.WithTTL[string, *Accumulator](ttl),
			ttlcache.WithDisableTouchOnHit[string, *Accumulator](),
		),
		reporter: reporter,
	}

	r.items.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Accumulator]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}

		r.fail(ctx, item.Value(), "expire")
	})

	return r
}

// Register starts tracking acc.
func (r *Registry) Register(acc *Accumulator) {
	r.items.Set(acc.ID, acc, ttlcache.DefaultTTL)
}

// Get returns a live accumulator by ID.
func (r *Registry) Get(id string) (*Accumulator, bool) {
	item := r.items.Get(id)
	if item == nil {
		return nil, false
	}

	return item.Value(), true
}

// Release drops one reference to acc. When none remain it is forgotten, and
// reported if it never completed.
func (r *Registry) Release(ctx context.Context, acc *Accumulator) {
	if acc.release() > 0 {
		return
	}

	r.items.Delete(acc.ID)
	r.fail(ctx, acc, "release")
}

// Expire evicts accumulators past their TTL.
func (r *Registry) Expire() {
	r.items.DeleteExpired()
}

// Len returns the number of live accumulators.
func (r *Registry) Len() int {
	return r.items.Len()
}

func (r *Registry) fail(ctx context.Context, acc *Accumulator, op string) {
	if !acc.claimFailure() {
		return
	}

	missing := 0

	for _, entry := range acc.Snapshot() {
		if !entry.Received {
			missing++
		}
	}

	r.reporter.Report(ctx, &EngineError{
		Op:  op,
		Err: fmt.Errorf("%w: accumulator %s missing %d of %d values", ErrIncompleteResult, acc.ID, missing, acc.Len()),
	})
}
