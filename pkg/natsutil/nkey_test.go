package natsutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/snmpbooster/pkg/logger"
)

func writeSeed(t *testing.T, kp nkeys.KeyPair) string {
	t.Helper()

	seed, err := kp.Seed()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "user.nk")
	require.NoError(t, os.WriteFile(path, append(seed, '\n'), 0o600))

	return path
}

func TestNKeyOption(t *testing.T) {
	opt, err := NKeyOption("")
	require.NoError(t, err)
	assert.Nil(t, opt)

	_, err = NKeyOption(filepath.Join(t.TempDir(), "missing.nk"))
	require.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.nk")
	require.NoError(t, os.WriteFile(garbage, []byte("not-a-seed"), 0o600))

	_, err = NKeyOption(garbage)
	require.Error(t, err)

	account, err := nkeys.CreateAccount()
	require.NoError(t, err)

	_, err = NKeyOption(writeSeed(t, account))
	require.ErrorIs(t, err, ErrNKeyNotUser)

	user, err := nkeys.CreateUser()
	require.NoError(t, err)

	opt, err = NKeyOption(writeSeed(t, user))
	require.NoError(t, err)

	pub, err := user.PublicKey()
	require.NoError(t, err)

	var opts nats.Options
	require.NoError(t, opt(&opts))
	assert.Equal(t, pub, opts.Nkey)
	require.NotNil(t, opts.SignatureCB)

	nonce := []byte("nonce")
	sig, err := opts.SignatureCB(nonce)
	require.NoError(t, err)
	require.NoError(t, user.Verify(nonce, sig))
}

func TestAuthOptionsWithoutSeed(t *testing.T) {
	opts, err := AuthOptions("", nats.Name("a"), nats.Name("b"))
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestConnectWithEventPublisherUsesNKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	user, err := nkeys.CreateUser()
	require.NoError(t, err)

	pub, err := user.PublicKey()
	require.NoError(t, err)

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		Nkeys:     []*server.NkeyUser{{Nkey: pub}},
	})
	require.NoError(t, err)

	go srv.Start()
	t.Cleanup(srv.Shutdown)

	require.True(t, srv.ReadyForConnections(10*time.Second), "embedded NATS server not ready")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _, err = ConnectWithEventPublisher(ctx, &EventsConfig{Enabled: true, NATSURL: srv.ClientURL()}, logger.NewTestLogger())
	require.Error(t, err, "anonymous connections are refused")

	p, nc, err := ConnectWithEventPublisher(ctx, &EventsConfig{
		Enabled:      true,
		NATSURL:      srv.ClientURL(),
		NKeySeedFile: writeSeed(t, user),
	}, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	require.NoError(t, p.PublishError(ctx, ErrorEventData{Op: "get", Error: "timeout"}))
}
