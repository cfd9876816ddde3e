package booster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/snmp"
)

func TestDispatcherRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	transport := &fakeTransport{responder: valuesResponder(map[string]interface{}{oidUptime: 3})}

	d, err := NewDispatcher(Config{}, Options{
		Transport: transport,
		Clock:     fixedClock{now: testNow},
		Metrics:   NewMetrics(provider),
		Logger:    logger.NewTestLogger(),
	})
	require.NoError(t, err)

	acc := NewAccumulator()
	acc.Track(oidUptime, EntryKey{"h", "s", "uptime", "ds_oid"})

	for _, task := range pollTasks(d, acc, &ServiceResult{Host: "h", Service: "s"}, oidUptime) {
		d.Enqueue(task)
	}

	d.Enqueue(NewPollTask(snmp.KindGet, "h", testAuth, testTarget, nil, noopHandler()))

	d.Cycle(context.Background())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), sumCounter(t, rm, metricTasksSubmitted))
	assert.Equal(t, int64(1), sumCounter(t, rm, metricTasksDropped))
	assert.Equal(t, int64(1), sumCounter(t, rm, metricErrors))
	assert.Equal(t, int64(2), sumCounter(t, rm, metricResults))
	assert.True(t, hasMetric(rm, metricCycleDuration))
}

func TestDispatcherTracesCycles(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	transport := &fakeTransport{responder: valuesResponder(map[string]interface{}{oidUptime: 3})}

	d, err := NewDispatcher(Config{}, Options{
		Transport: transport,
		Clock:     fixedClock{now: testNow},
		Logger:    logger.NewTestLogger(),
		Tracer:    provider.Tracer("test"),
	})
	require.NoError(t, err)

	acc := NewAccumulator()
	acc.Track(oidUptime, EntryKey{"h", "s", "uptime", "ds_oid"})

	for _, task := range pollTasks(d, acc, &ServiceResult{Host: "h", Service: "s"}, oidUptime) {
		d.Enqueue(task)
	}

	d.Cycle(context.Background())
	d.Cycle(context.Background())

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, cycleSpanName, spans[0].Name())

	attrs := map[attribute.Key]int64{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.AsInt64()
	}

	assert.Equal(t, int64(1), attrs["booster.submitted"])
	assert.Equal(t, int64(1), attrs["booster.delivered"])
	assert.Equal(t, int64(0), attrs["booster.inflight"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.taskSubmitted(context.Background())
	m.taskDropped(context.Background())
	m.errorReported(context.Background(), "other")
	m.resultEmitted(context.Background(), ResultPoll)
	m.cycleFinished(context.Background(), 0)
}

func sumCounter(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)

			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}

			return total
		}
	}

	return 0
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}

	return false
}
