package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/snmpbooster/pkg/kv"
	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
)

var errTestInvalid = errors.New("name is required")

type testInner struct {
	BurstSize int             `json:"burst_size"`
	Interval  models.Duration `json:"interval"`
}

type testEmbedded struct {
	Backend string `json:"backend"`
}

type testConfig struct {
	testEmbedded

	Name    string            `json:"name"`
	Debug   bool              `json:"debug"`
	Port    uint16            `json:"port"`
	Hosts   []string          `json:"hosts"`
	Labels  map[string]string `json:"labels"`
	Timeout time.Duration     `json:"timeout"`
	Inner   testInner         `json:"inner"`
	Logging *testInner        `json:"logging"`
	skipped string
}

func (c *testConfig) Validate() error {
	if c.Name == "" {
		return errTestInvalid
	}

	return nil
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "snmp-booster.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadAndValidateFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeConfigFile(t, `{"name":"booster","backend":"memory","inner":{"burst_size":4,"interval":"750ms"}}`)

	var cfg testConfig
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "booster", cfg.Name)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, 4, cfg.Inner.BurstSize)
	assert.Equal(t, 750*time.Millisecond, cfg.Inner.Interval.Std())
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfigFile(t, `{"backend":"memory"}`)

	var cfg testConfig
	require.ErrorIs(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg), errTestInvalid)
}

func TestLoadFileErrors(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	c := NewConfig(logger.NewTestLogger())

	var cfg testConfig
	require.ErrorIs(t, c.LoadAndValidate(context.Background(), "", &cfg), errEmptyPath)
	require.Error(t, c.LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "missing.json"), &cfg))
	require.Error(t, c.LoadAndValidate(context.Background(), writeConfigFile(t, "{"), &cfg))
}

func TestLoadInvalidSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "consul")

	var cfg testConfig
	require.ErrorIs(t, NewConfig(nil).LoadAndValidate(context.Background(), "x.json", &cfg), errInvalidConfigSource)
}

func TestLoadFromEnvJSON(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "")
	t.Setenv("SNMPBOOSTER_CONFIG_JSON", `{"name":"from-env","port":1161}`)

	var cfg testConfig
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, uint16(1161), cfg.Port)
}

func TestLoadFromEnvFields(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "TEST_")
	t.Setenv("TEST_NAME", "fields")
	t.Setenv("TEST_BACKEND", "nats")
	t.Setenv("TEST_DEBUG", "true")
	t.Setenv("TEST_PORT", "1161")
	t.Setenv("TEST_HOSTS", "a, b")
	t.Setenv("TEST_LABELS", `{"site":"lab"}`)
	t.Setenv("TEST_TIMEOUT", "3s")
	t.Setenv("TEST_INNER_BURST_SIZE", "8")
	t.Setenv("TEST_INNER_INTERVAL", "250ms")
	t.Setenv("TEST_LOGGING_BURST_SIZE", "1")

	var cfg testConfig
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "fields", cfg.Name)
	assert.Equal(t, "nats", cfg.Backend)
	assert.True(t, cfg.Debug)
	assert.Equal(t, uint16(1161), cfg.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.Hosts)
	assert.Equal(t, map[string]string{"site": "lab"}, cfg.Labels)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 8, cfg.Inner.BurstSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Inner.Interval.Std())
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, 1, cfg.Logging.BurstSize)
}

func TestLoadFromEnvLeavesUnsetPointersNil(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "PTR_")
	t.Setenv("PTR_NAME", "x")

	var cfg testConfig
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg))
	assert.Nil(t, cfg.Logging)
}

func TestLoadFromEnvInvalidValue(t *testing.T) {
	t.Setenv("TEST_NAME", "x")
	t.Setenv("TEST_PORT", "not-a-port")

	var cfg testConfig

	err := NewEnvConfigLoader(logger.NewTestLogger(), "TEST_").Load(context.Background(), "", &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_PORT")
	assert.Equal(t, "x", cfg.Name, "valid fields are still loaded")
}

func TestEnvLoaderRejectsNonStruct(t *testing.T) {
	loader := NewEnvConfigLoader(logger.NewTestLogger(), "NOPE_")

	var s string
	require.ErrorIs(t, loader.Load(context.Background(), "", &s), ErrDstMustBePointerToStruct)

	var cfg *testConfig
	require.ErrorIs(t, loader.Load(context.Background(), "", cfg), ErrDstMustBeNonNilPointer)
}

func TestLoadFromKV(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	ctx := context.Background()
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyFor("/etc/snmp-booster/snmp-booster.json"), []byte(`{"name":"from-kv"}`)))

	c := NewConfig(logger.NewTestLogger())
	c.SetKVStore(store)

	var cfg testConfig
	require.NoError(t, c.LoadAndValidate(ctx, "/etc/snmp-booster/snmp-booster.json", &cfg))
	assert.Equal(t, "from-kv", cfg.Name)
}

func TestLoadFromKVFallsBackToFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	c := NewConfig(logger.NewTestLogger())
	c.SetKVStore(kv.NewMemoryStore())

	var cfg testConfig
	require.NoError(t, c.LoadAndValidate(context.Background(), writeConfigFile(t, `{"name":"from-file"}`), &cfg))
	assert.Equal(t, "from-file", cfg.Name)

	err := c.LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "missing.json"), &cfg)
	require.ErrorIs(t, err, errLoadConfigFailed)
	require.ErrorIs(t, err, errKVKeyNotFound)
}

func TestLoadFromKVRequiresStore(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	var cfg testConfig
	require.ErrorIs(t, NewConfig(nil).LoadAndValidate(context.Background(), "x.json", &cfg), errKVStoreNotSet)
}
