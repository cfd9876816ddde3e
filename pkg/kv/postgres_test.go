package kv

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

const postgresDSNEnv = "SNMPBOOSTER_TEST_POSTGRES_DSN"

func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}

	runStoreContract(t, func(t *testing.T) Store {
		t.Helper()

		cfg := &Config{Backend: BackendPostgres, PostgresDSN: dsn}
		require.NoError(t, cfg.Validate())

		store, err := NewPostgresStore(testContext(t), cfg)
		require.NoError(t, err)
		require.NoError(t, store.Flush(testContext(t)))

		t.Cleanup(func() { _ = store.Close() })

		return store
	})
}
