package booster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/snmpbooster/pkg/snmp"
)

func TestPollTaskRequest(t *testing.T) {
	task := NewPollTask(snmp.KindGetBulk, "h", testAuth, testTarget, []string{"1.3.6.1.2.1.2.2.1.2"}, noopHandler())
	task.MaxRepetitions = 10
	task.NonRepeaters = 1

	require.NoError(t, task.Validate())
	assert.NotEmpty(t, task.ID)

	req := task.request()
	assert.Equal(t, snmp.KindGetBulk, req.Kind)
	assert.Equal(t, []string{".1.3.6.1.2.1.2.2.1.2"}, req.OIDs)
	assert.Equal(t, uint32(10), req.MaxRepetitions)
	assert.Equal(t, uint8(1), req.NonRepeaters)
	assert.NotEqual(t, task.ID, req.ID)
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultBurstSize, cfg.BurstSize)
	assert.Equal(t, defaultCycleInterval, cfg.CycleInterval.Std())
	assert.Equal(t, defaultMaxRoundsPerCycle, cfg.MaxRoundsPerCycle)
	assert.Equal(t, defaultAccumulatorTTL, cfg.AccumulatorTTL.Std())
}
