package booster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/snmpbooster/pkg/logger"
)

func TestRegistryExpiresIncompleteAccumulator(t *testing.T) {
	reporter := NewReporter(4, nil, logger.NewTestLogger())
	registry := NewRegistry(20*time.Millisecond, reporter)

	acc := NewAccumulator()
	acc.Track(oidUptime, EntryKey{"h", "s", "uptime", "ds_oid"})
	acc.Acquire()
	registry.Register(acc)

	got, ok := registry.Get(acc.ID)
	require.True(t, ok)
	assert.Same(t, acc, got)

	time.Sleep(40 * time.Millisecond)
	registry.Expire()

	select {
	case e := <-reporter.Errors():
		require.ErrorIs(t, e, ErrIncompleteResult)
		assert.Equal(t, "expire", e.Op)
	case <-time.After(time.Second):
		t.Fatal("expected an incomplete result report")
	}

	assert.Equal(t, 0, registry.Len())

	registry.Release(context.Background(), acc)

	select {
	case e := <-reporter.Errors():
		t.Fatalf("accumulator reported twice: %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistryReleaseCompleteIsSilent(t *testing.T) {
	reporter := NewReporter(4, nil, logger.NewTestLogger())
	registry := NewRegistry(time.Minute, reporter)

	acc := NewAccumulator()
	acc.Track(oidUptime, EntryKey{"h", "s", "uptime", "ds_oid"})
	acc.Acquire()
	acc.Acquire()
	registry.Register(acc)

	acc.Store(oidUptime, 1, testNow)

	registry.Release(context.Background(), acc)
	assert.Equal(t, 1, registry.Len())

	registry.Release(context.Background(), acc)
	assert.Equal(t, 0, registry.Len())

	_, ok := registry.Get(acc.ID)
	assert.False(t, ok)

	select {
	case e := <-reporter.Errors():
		t.Fatalf("unexpected report: %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistryReleaseIncompleteReports(t *testing.T) {
	reporter := NewReporter(4, nil, logger.NewTestLogger())
	registry := NewRegistry(time.Minute, reporter)

	acc := NewAccumulator()
	acc.Track(oidUptime, EntryKey{"h", "s", "uptime", "ds_oid"})
	acc.Track(oidName, EntryKey{"h", "s", "name", "ds_oid"})
	acc.Acquire()
	registry.Register(acc)

	acc.Store(oidName, "router1", testNow)
	registry.Release(context.Background(), acc)

	e := <-reporter.Errors()
	require.ErrorIs(t, e, ErrIncompleteResult)
	assert.Contains(t, e.Error(), "missing 1 of 2 values")
}
