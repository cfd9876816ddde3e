package booster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

var testTarget = snmp.Target{Address: "192.0.2.10", Port: 161}

var testAuth = snmp.Auth{Version: snmp.Version2c, Community: "public"}

// fakeTransport completes requests with responder during Process. A nil
// response leaves the request pending.
type fakeTransport struct {
	mu        sync.Mutex
	submitted []*snmp.Request
	queued    []*snmp.Request
	responder func(req *snmp.Request) *snmp.Response
}

func (f *fakeTransport) Submit(req *snmp.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, req)
	f.queued = append(f.queued, req)

	return nil
}

func (f *fakeTransport) Process(_ context.Context) (int, error) {
	f.mu.Lock()
	queued := f.queued
	f.queued = nil
	f.mu.Unlock()

	var remaining []*snmp.Request

	completed := 0

	for _, req := range queued {
		var resp *snmp.Response
		if f.responder != nil {
			resp = f.responder(req)
		}

		if resp == nil {
			remaining = append(remaining, req)

			continue
		}

		req.Complete(resp)
		completed++
	}

	f.mu.Lock()
	f.queued = append(remaining, f.queued...)
	f.mu.Unlock()

	return completed, nil
}

func (f *fakeTransport) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.queued)
}

func (*fakeTransport) Close() error {
	return nil
}

func (f *fakeTransport) Submitted() []*snmp.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*snmp.Request(nil), f.submitted...)
}

// valuesResponder answers Get requests from a fixed OID table.
func valuesResponder(values map[string]interface{}) func(req *snmp.Request) *snmp.Response {
	return func(req *snmp.Request) *snmp.Response {
		resp := &snmp.Response{}

		for _, oid := range req.OIDs {
			v, ok := values[oid]
			if !ok {
				resp.VarBinds = append(resp.VarBinds, snmp.VarBind{OID: oid, Type: gosnmp.NoSuchObject})

				continue
			}

			resp.VarBinds = append(resp.VarBinds, snmp.VarBind{OID: oid, Type: gosnmp.Integer, Value: v})
		}

		return resp
	}
}

type cacheWrite struct {
	host    string
	service string
	data    *models.ServiceRecord
}

type recordingCache struct {
	mu     sync.Mutex
	writes []cacheWrite
	err    error
}

func (c *recordingCache) UpdateService(_ context.Context, host, service string, data *models.ServiceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writes = append(c.writes, cacheWrite{host: host, service: service, data: data.Clone()})

	return c.err
}

func (c *recordingCache) Writes() []cacheWrite {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]cacheWrite(nil), c.writes...)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func (fixedClock) Ticker(d time.Duration) Ticker {
	return RealClock{}.Ticker(d)
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, transport snmp.Transport, cache CacheWriter, cfg Config) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(cfg, Options{
		Transport: transport,
		Cache:     cache,
		Clock:     fixedClock{now: testNow},
		Logger:    logger.NewTestLogger(),
	})
	require.NoError(t, err)

	return d
}

func drainResults(d *Dispatcher) []Result {
	var out []Result

	for {
		select {
		case r := <-d.Results():
			out = append(out, r)
		default:
			return out
		}
	}
}

func drainErrors(d *Dispatcher) []*EngineError {
	var out []*EngineError

	for {
		select {
		case e := <-d.Errors():
			out = append(out, e)
		default:
			return out
		}
	}
}

func resultsOfKind(results []Result, kind ResultKind) []Result {
	var out []Result

	for _, r := range results {
		if r.Kind == kind {
			out = append(out, r)
		}
	}

	return out
}

func noopHandler() Handler {
	return HandlerFunc(func(context.Context, *snmp.Response) *snmp.Request { return nil })
}
