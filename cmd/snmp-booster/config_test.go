package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/snmpbooster/pkg/kv"
)

func TestLoadSampleConfig(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	cfg, err := loadConfig(context.Background(), "snmp-booster.json")
	require.NoError(t, err)

	assert.Equal(t, kv.BackendNATS, cfg.Cache.Backend)
	assert.True(t, cfg.Cache.Transactional)
	assert.Equal(t, 2, cfg.Booster.BurstSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Booster.CycleInterval.Std())
	assert.Equal(t, time.Minute, cfg.Scheduler.IntervalUnit.Std())
	require.Len(t, cfg.Scheduler.Targets, 1)
	assert.Len(t, cfg.Scheduler.Targets[0].Services, 2)

	require.NotNil(t, cfg.Logging)
	require.NotNil(t, cfg.Metrics)
	assert.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout.Std())
}

func TestLoadConfigRejectsInvalidSections(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"cache": {"backend": "postgres"},
		"scheduler": {"targets": [{"host": ""}]}
	}`), 0o600))

	_, err := loadConfig(context.Background(), path)
	require.ErrorIs(t, err, errFailedToLoadConfig)
	assert.Contains(t, err.Error(), "cache:")
	assert.Contains(t, err.Error(), "scheduler:")
}

func TestLoadConfigFromKV(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")
	t.Setenv("SNMPBOOSTER_KV_BACKEND", kv.BackendMemory)

	// The bootstrap memory store is empty, so loading falls back to the file.
	cfg, err := loadConfig(context.Background(), "snmp-booster.json")
	require.NoError(t, err)
	assert.Len(t, cfg.Scheduler.Targets, 1)
}
