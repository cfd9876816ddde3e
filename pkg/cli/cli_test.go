package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/snmpbooster/pkg/cache"
	"github.com/carverauto/snmpbooster/pkg/kv"
	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    CmdConfig
		wantErr error
	}{
		{
			name: "search with filters",
			args: []string{"search", "-H", "router1", "-S", "if-eth0", "-t", "-d"},
			want: CmdConfig{SubCmd: cmdSearch, Host: "router1", Service: "if-eth0", ShowTriggers: true, ShowDS: true},
		},
		{
			name: "global overrides",
			args: []string{"-backend", "memory", "-bucket", "b", "clear-cache"},
			want: CmdConfig{SubCmd: cmdClearCache, Backend: "memory", Bucket: "b"},
		},
		{
			name: "delete service",
			args: []string{"delete-service", "-H", "router1", "-S", "cpu"},
			want: CmdConfig{SubCmd: cmdDeleteService, Host: "router1", Service: "cpu"},
		},
		{
			name: "clear old",
			args: []string{"clear-old", "-hours", "12"},
			want: CmdConfig{SubCmd: cmdClearOld, Hours: 12},
		},
		{name: "missing subcommand", args: nil, wantErr: errMissingSubcommand},
		{name: "unknown subcommand", args: []string{"purge"}, wantErr: errUnknownSubcommand},
		{name: "delete host without host", args: []string{"delete-host"}, wantErr: errRequiresHost},
		{name: "delete service without service", args: []string{"delete-service", "-H", "r"}, wantErr: errRequiresService},
		{name: "clear old without hours", args: []string{"clear-old"}, wantErr: errInvalidHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseFlags(tt.args)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.SubCmd, cfg.SubCmd)
			assert.Equal(t, tt.want.Host, cfg.Host)
			assert.Equal(t, tt.want.Service, cfg.Service)
			assert.Equal(t, tt.want.ShowTriggers, cfg.ShowTriggers)
			assert.Equal(t, tt.want.ShowDS, cfg.ShowDS)
			assert.Equal(t, tt.want.Hours, cfg.Hours)
			assert.Equal(t, tt.want.Backend, cfg.Backend)
			assert.Equal(t, tt.want.Bucket, cfg.Bucket)
		})
	}
}

func TestParseFlagsHelp(t *testing.T) {
	cfg, err := ParseFlags([]string{"-help"})
	require.NoError(t, err)
	assert.True(t, cfg.Help)

	var buf bytes.Buffer

	PrintUsage(&buf)
	assert.Contains(t, buf.String(), "clear-mapping")
}

func TestApplyOverrides(t *testing.T) {
	cacheCfg := cache.Config{}
	cacheCfg.Backend = "nats"
	cacheCfg.NATSURL = "nats://a:4222"

	cmd := &CmdConfig{Backend: "postgres", PostgresDSN: "postgres://x"}
	cmd.ApplyOverrides(&cacheCfg)

	assert.Equal(t, "postgres", cacheCfg.Backend)
	assert.Equal(t, "postgres://x", cacheCfg.PostgresDSN)
	assert.Equal(t, "nats://a:4222", cacheCfg.NATSURL)
}

func newTestCache(t *testing.T) *cache.Store {
	t.Helper()

	mem := kv.NewMemoryStore()
	store := cache.New(cache.Config{}, func(context.Context) (kv.Store, error) {
		return mem, nil
	}, logger.NewTestLogger())
	require.NoError(t, store.Connect(context.Background()))

	ctx := context.Background()
	old := time.Now().Add(-100 * time.Hour)
	recent := time.Now()

	records := []*models.ServiceRecord{
		{
			Host: "router1", Service: "if-eth0", CheckInterval: 5, CheckTime: &recent,
			Mapping: ".1.3.6.1.2.1.2.2.1.2", Instance: "2", InstanceName: "eth0",
			DS:       map[string]models.Attributes{"in": {"ds_oid": ".1.3.6.1.2.1.2.2.1.10.{instance}"}},
			Triggers: map[string]models.Attributes{"down": {"critical": "in < 1"}},
		},
		{Host: "router1", Service: "cpu", CheckInterval: 5, CheckTime: &old},
		{Host: "router2", Service: "if-eth0", CheckInterval: 5, InstanceName: "eth0"},
	}

	for _, rec := range records {
		require.NoError(t, store.UpdateServiceInit(ctx, rec.Host, rec.Service, rec))
	}

	return store
}

func runCmd(t *testing.T, store CacheAdmin, args ...string) (string, error) {
	t.Helper()

	cfg, err := ParseFlags(args)
	require.NoError(t, err)

	var buf bytes.Buffer

	err = Run(context.Background(), cfg, store, &buf)

	return buf.String(), err
}

func TestRunSearch(t *testing.T) {
	store := newTestCache(t)

	out, err := runCmd(t, store, "search")
	require.NoError(t, err)
	assert.Contains(t, out, "router1:cpu")
	assert.Contains(t, out, "router1:5")

	out, err = runCmd(t, store, "search", "-H", "router1", "-S", "if-eth0")
	require.NoError(t, err)
	assert.Contains(t, out, "== router1")
	assert.Contains(t, out, `"instance": "2"`)
	assert.NotContains(t, out, "ds_oid")
	assert.NotContains(t, out, "critical")

	out, err = runCmd(t, store, "search", "-H", "router1", "-S", "if-eth0", "-d", "-t")
	require.NoError(t, err)
	assert.Contains(t, out, "ds_oid")
	assert.Contains(t, out, "critical")

	out, err = runCmd(t, store, "search", "-S", "if-eth0")
	require.NoError(t, err)
	assert.Contains(t, out, "== router1")
	assert.Contains(t, out, "== router2")

	out, err = runCmd(t, store, "search", "-H", "router9", "-S", "cpu")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found")
}

func TestRunClearMapping(t *testing.T) {
	store := newTestCache(t)

	out, err := runCmd(t, store, "clear-mapping", "-S", "if-eth0")
	require.NoError(t, err)
	assert.Contains(t, out, "Instance cleared for host 'router1' and service 'if-eth0'")
	assert.Contains(t, out, "Nothing to do for host 'router2' and service 'if-eth0'")

	rec, err := store.GetService(context.Background(), "router1", "if-eth0")
	require.NoError(t, err)
	assert.Empty(t, rec.Instance)
	assert.Equal(t, "eth0", rec.InstanceName)
}

func TestRunDelete(t *testing.T) {
	store := newTestCache(t)
	ctx := context.Background()

	out, err := runCmd(t, store, "delete-service", "-H", "router1", "-S", "cpu")
	require.NoError(t, err)
	assert.Contains(t, out, "1 key(s) deleted")

	_, err = store.GetService(ctx, "router1", "cpu")
	require.ErrorIs(t, err, cache.ErrNotFound)

	out, err = runCmd(t, store, "delete-host", "-H", "router1")
	require.NoError(t, err)
	assert.Contains(t, out, "2 key(s) deleted")

	keys, err := store.ShowKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"router2:5", "router2:if-eth0"}, keys)
}

func TestRunClearOldAndCache(t *testing.T) {
	store := newTestCache(t)
	ctx := context.Background()

	out, err := runCmd(t, store, "clear-old", "-hours", "48")
	require.NoError(t, err)
	assert.Contains(t, out, "1 service(s)")

	_, err = store.GetService(ctx, "router1", "cpu")
	require.ErrorIs(t, err, cache.ErrNotFound)

	_, err = store.GetService(ctx, "router2", "if-eth0")
	require.NoError(t, err, "never checked records are kept")

	out, err = runCmd(t, store, "clear-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared")

	keys, err := store.ShowKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

var errBoom = errors.New("boom")

type failingAdmin struct {
	CacheAdmin
}

func (failingAdmin) ClearCache(context.Context) error { return errBoom }

func TestRunPropagatesErrors(t *testing.T) {
	_, err := runCmd(t, failingAdmin{}, "clear-cache")
	require.ErrorIs(t, err, errBoom)

	err = Run(context.Background(), &CmdConfig{SubCmd: "nope"}, failingAdmin{}, &bytes.Buffer{})
	require.ErrorIs(t, err, errUnknownSubcommand)
}
