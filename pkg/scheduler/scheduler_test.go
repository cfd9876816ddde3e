package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/snmpbooster/pkg/booster"
	"github.com/carverauto/snmpbooster/pkg/cache"
	"github.com/carverauto/snmpbooster/pkg/kv"
	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

const (
	oidUptime = ".1.3.6.1.2.1.1.3.0"
	oidLoad   = ".1.3.6.1.4.1.2021.10.1.3.1"
	ifDescr   = ".1.3.6.1.2.1.2.2.1.2"
	ifInBase  = ".1.3.6.1.2.1.2.2.1.10"
	ifInEth0  = ifInBase + ".2"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testNow }

func (fixedClock) Ticker(d time.Duration) booster.Ticker { return booster.RealClock{}.Ticker(d) }

// agent answers Get from values and GetNext from the ordered table rows.
type agent struct {
	mu     sync.Mutex
	values map[string]interface{}
	table  []snmp.VarBind
	queued []*snmp.Request
	kinds  []snmp.Kind
}

func (a *agent) Submit(req *snmp.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.queued = append(a.queued, req)
	a.kinds = append(a.kinds, req.Kind)

	return nil
}

func (a *agent) Process(_ context.Context) (int, error) {
	a.mu.Lock()
	queued := a.queued
	a.queued = nil
	a.mu.Unlock()

	for _, req := range queued {
		resp := &snmp.Response{}

		for _, oid := range req.OIDs {
			if req.Kind == snmp.KindGet {
				resp.VarBinds = append(resp.VarBinds, a.get(oid))
			} else {
				resp.VarBinds = append(resp.VarBinds, a.next(oid))
			}
		}

		req.Complete(resp)
	}

	return len(queued), nil
}

func (a *agent) get(oid string) snmp.VarBind {
	v, ok := a.values[oid]
	if !ok {
		return snmp.VarBind{OID: oid, Type: gosnmp.NoSuchInstance}
	}

	return snmp.VarBind{OID: oid, Type: gosnmp.Integer, Value: v}
}

func (a *agent) next(oid string) snmp.VarBind {
	for i, row := range a.table {
		if row.OID == oid && i+1 < len(a.table) {
			return a.table[i+1]
		}

		if i == 0 && snmp.HasOIDPrefix(row.OID, oid) {
			return row
		}
	}

	return snmp.VarBind{OID: oid, Type: gosnmp.EndOfMibView}
}

func (a *agent) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.queued)
}

func (*agent) Close() error { return nil }

func (a *agent) Kinds() []snmp.Kind {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]snmp.Kind(nil), a.kinds...)
}

func newAgent() *agent {
	return &agent{
		values: map[string]interface{}{
			oidUptime: 4242,
			oidLoad:   3,
			ifInEth0:  1000,
		},
		table: []snmp.VarBind{
			{OID: ifDescr + ".1", Type: gosnmp.OctetString, Value: "lo"},
			{OID: ifDescr + ".2", Type: gosnmp.OctetString, Value: "eth0"},
			{OID: ".1.3.6.1.2.1.2.2.1.3.1", Type: gosnmp.Integer, Value: 24},
		},
	}
}

func testConfig() *Config {
	return &Config{
		IntervalUnit: models.Duration(time.Second),
		Targets: []TargetConfig{{
			Host:    "router1",
			Address: "192.0.2.1",
			Auth:    snmp.Auth{Version: snmp.Version2c, Community: "public"},
			Services: []ServiceConfig{
				{
					Name:          "system",
					CheckInterval: 5,
					DS:            []DSConfig{{Name: "uptime", OID: oidUptime, Type: "GAUGE"}},
				},
				{
					Name:          "if-eth0",
					CheckInterval: 5,
					Mapping:       ifDescr,
					InstanceName:  "eth0",
					DS:            []DSConfig{{Name: "in", OID: ifInBase + ".{instance}", Type: "COUNTER"}},
				},
				{
					Name:          "load",
					CheckInterval: 15,
					DS:            []DSConfig{{Name: "load1", OID: oidLoad}},
				},
			},
		}},
	}
}

type fixture struct {
	store      *cache.Store
	agent      *agent
	dispatcher *booster.Dispatcher
	scheduler  *Scheduler
}

func newFixture(t *testing.T, clock booster.Clock) *fixture {
	t.Helper()

	log := logger.NewTestLogger()
	mem := kv.NewMemoryStore()

	store := cache.New(cache.Config{}, func(context.Context) (kv.Store, error) {
		return mem, nil
	}, log)
	require.NoError(t, store.Connect(context.Background()))

	a := newAgent()

	dispatcher, err := booster.NewDispatcher(booster.Config{BurstSize: 10}, booster.Options{
		Transport: a,
		Cache:     store,
		Clock:     fixedClock{},
		Logger:    log,
	})
	require.NoError(t, err)

	sched, err := New(testConfig(), store, dispatcher, clock, log)
	require.NoError(t, err)

	require.NoError(t, sched.Init(context.Background()))

	return &fixture{store: store, agent: a, dispatcher: dispatcher, scheduler: sched}
}

// drain runs dispatcher cycles until nothing is queued or in flight.
func (f *fixture) drain(t *testing.T) {
	t.Helper()

	for range 10 {
		if f.dispatcher.Queue().Len() == 0 && f.dispatcher.InFlight() == 0 {
			return
		}

		f.dispatcher.Cycle(context.Background())
	}

	t.Fatal("dispatcher did not drain")
}

func TestInitWritesServicesAndIndex(t *testing.T) {
	f := newFixture(t, fixedClock{})
	ctx := context.Background()

	records, err := f.store.GetServices(ctx, "router1", 5)
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec, err := f.store.GetService(ctx, "router1", "if-eth0")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.CheckInterval)
	assert.Equal(t, ifDescr, rec.Mapping)
	assert.Equal(t, "eth0", rec.InstanceName)
	assert.Empty(t, rec.Instance)
	assert.Equal(t, ifInBase+".{instance}", rec.DS["in"][OIDTypeValue])
	assert.Equal(t, "COUNTER", rec.DS["in"]["ds_type"])

	load, err := f.store.GetServices(ctx, "router1", 15)
	require.NoError(t, err)
	require.Len(t, load, 1)
	assert.Equal(t, "load", load[0].Service)

	assert.Equal(t, []int{5, 15}, f.scheduler.Intervals())
}

func TestPollHostWalksThenPolls(t *testing.T) {
	f := newFixture(t, fixedClock{})
	ctx := context.Background()

	require.NoError(t, f.scheduler.PollInterval(ctx, 5))
	assert.Equal(t, 2, f.dispatcher.Queue().Len())
	assert.Equal(t, int64(1), f.scheduler.Stats().Walks)

	f.drain(t)

	system, err := f.store.GetService(ctx, "router1", "system")
	require.NoError(t, err)
	assert.Equal(t, json.Number("4242"), system.DS["uptime"]["ds_oid_value"])
	require.NotNil(t, system.CheckTime)
	assert.True(t, testNow.Equal(*system.CheckTime))

	eth0, err := f.store.GetService(ctx, "router1", "if-eth0")
	require.NoError(t, err)
	assert.Equal(t, "2", eth0.Instance)
	assert.NotContains(t, eth0.DS["in"], "ds_oid_value")

	require.NoError(t, f.scheduler.PollInterval(ctx, 5))
	assert.Equal(t, 2, f.dispatcher.Queue().Len())
	assert.Equal(t, int64(1), f.scheduler.Stats().Walks, "resolved instances are not walked again")

	f.drain(t)

	eth0, err = f.store.GetService(ctx, "router1", "if-eth0")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1000"), eth0.DS["in"]["ds_oid_value"])

	system, err = f.store.GetService(ctx, "router1", "system")
	require.NoError(t, err)
	assert.Equal(t, json.Number("4242"), system.DS["uptime"]["ds_oid_value_last"])
	require.NotNil(t, system.LastCheckTime)

	assert.Equal(t, []snmp.Kind{snmp.KindGet, snmp.KindGetNext, snmp.KindGetNext, snmp.KindGet, snmp.KindGet},
		f.agent.Kinds())
}

func TestPollHostUsesBulkWalks(t *testing.T) {
	f := newFixture(t, fixedClock{})
	f.scheduler.targets["router1"].MaxRepetitions = 8

	require.NoError(t, f.scheduler.PollHost(context.Background(), "router1", 5))

	tasks := f.dispatcher.Queue().Drain(10)
	require.Len(t, tasks, 2)
	assert.Equal(t, snmp.KindGet, tasks[0].Kind)
	assert.Equal(t, snmp.KindGetBulk, tasks[1].Kind)
	assert.Equal(t, uint32(8), tasks[1].MaxRepetitions)
	assert.Equal(t, []string{ifDescr}, tasks[1].OIDs)
}

func TestPollHostSkipsUnresolvedInstance(t *testing.T) {
	f := newFixture(t, fixedClock{})
	ctx := context.Background()

	require.NoError(t, f.store.UpdateServiceInit(ctx, "router1", "orphan", &models.ServiceRecord{
		CheckInterval: 5,
		DS:            map[string]models.Attributes{"x": {OIDTypeValue: ".1.3.6.1.2.1.31.1.1.1.6.{instance}"}},
	}))

	require.NoError(t, f.scheduler.PollHost(ctx, "router1", 5))

	assert.Equal(t, int64(1), f.scheduler.Stats().Skipped)
	assert.Equal(t, 2, f.dispatcher.Queue().Len())

	f.drain(t)

	assert.Equal(t, 0, f.dispatcher.Sink().Registry().Len(), "the shared accumulator completes without the skipped service")
}

func TestPollHostUnknownHost(t *testing.T) {
	f := newFixture(t, fixedClock{})

	require.ErrorIs(t, f.scheduler.PollHost(context.Background(), "nope", 5), errUnknownHost)
}

func TestTrackServiceDeduplicatesOIDs(t *testing.T) {
	acc := booster.NewAccumulator()

	oids, err := trackService(acc, "h", &models.ServiceRecord{
		Service:  "if",
		Instance: "3",
		DS: map[string]models.Attributes{
			"in":  {OIDTypeValue: ifInBase + ".{instance}", OIDTypeMax: "1.3.6.1.2.1.2.2.1.5.{instance}"},
			"in2": {OIDTypeValue: ifInBase + ".3"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{ifInBase + ".3", ".1.3.6.1.2.1.2.2.1.5.3"}, oids)
	assert.Equal(t, 2, acc.Len())
	assert.Len(t, acc.Snapshot()[ifInBase+".3"].Owners, 2)
}

func TestTrackServiceNoOIDs(t *testing.T) {
	acc := booster.NewAccumulator()

	_, err := trackService(acc, "h", &models.ServiceRecord{Service: "empty"})
	require.ErrorIs(t, err, errNoOIDs)
	assert.Zero(t, acc.Len())
}

func TestStartPollsIntervalsAndConsumesResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := booster.NewMockClock(ctrl)
	fast := booster.NewMockTicker(ctrl)
	slow := booster.NewMockTicker(ctrl)
	fastCh := make(chan time.Time)
	slowCh := make(chan time.Time)

	clock.EXPECT().Ticker(5 * time.Second).Return(fast)
	clock.EXPECT().Ticker(15 * time.Second).Return(slow)
	fast.EXPECT().Chan().Return((<-chan time.Time)(fastCh)).AnyTimes()
	slow.EXPECT().Chan().Return((<-chan time.Time)(slowCh)).AnyTimes()
	fast.EXPECT().Stop()
	slow.EXPECT().Stop()

	f := newFixture(t, clock)

	var seen atomic.Int64

	f.scheduler.OnResult = func(booster.Result) { seen.Add(1) }

	errCh := make(chan error, 1)

	go func() {
		errCh <- f.scheduler.Start(context.Background())
	}()

	require.Eventually(t, func() bool { return f.scheduler.Stats().Enqueued == 3 }, time.Second, 5*time.Millisecond)

	f.drain(t)

	require.Eventually(t, func() bool {
		stats := f.scheduler.Stats()

		return stats.Services == 2 && stats.Polls == 2 && stats.Mappings == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return seen.Load() == 5 }, time.Second, 5*time.Millisecond)

	fastCh <- testNow

	require.Eventually(t, func() bool { return f.scheduler.Stats().Enqueued == 5 }, time.Second, 5*time.Millisecond)

	f.scheduler.Stop()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestConsumeForwardsEngineErrors(t *testing.T) {
	f := newFixture(t, nil)

	got := make(chan *booster.EngineError, 1)
	f.scheduler.OnError = func(e *booster.EngineError) { got <- e }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go f.scheduler.consume(ctx)

	f.dispatcher.Sink().Reporter().Report(ctx, &booster.EngineError{
		Op:   "get",
		Host: "router1",
		Err:  booster.ErrRequestFailed,
	})

	select {
	case e := <-got:
		assert.Equal(t, "router1", e.Host)
		require.ErrorIs(t, e, booster.ErrRequestFailed)
	case <-time.After(time.Second):
		t.Fatal("engine error was not forwarded")
	}

	assert.Equal(t, int64(1), f.scheduler.Stats().Errors)
}
