package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
)

var errTestFixture = errors.New("fixture error")

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.msgs = append(f.msgs, published{subject: subject, data: data})

	return &jetstream.PubAck{Stream: DefaultStream, Sequence: uint64(len(f.msgs))}, nil
}

func decodeEvent(t *testing.T, raw []byte, data interface{}) CloudEvent {
	t.Helper()

	var event struct {
		CloudEvent

		Data json.RawMessage `json:"data"`
	}

	require.NoError(t, json.Unmarshal(raw, &event))
	require.NoError(t, json.Unmarshal(event.Data, data))

	return event.CloudEvent
}

func TestPublishServiceEvent(t *testing.T) {
	js := &fakePublisher{}
	p := NewEventPublisher(js, DefaultStream)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	err := p.PublishService(context.Background(), ServiceEventData{
		Host:    "router1",
		Service: "if-eth0",
		State:   models.ServiceStateReceived,
		Record:  &models.ServiceRecord{Host: "router1", Service: "if-eth0", Instance: "2"},
	})
	require.NoError(t, err)
	require.Len(t, js.msgs, 1)
	assert.Equal(t, SubjectService, js.msgs[0].subject)

	var data ServiceEventData

	event := decodeEvent(t, js.msgs[0].data, &data)
	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, "com.carverauto.snmpbooster.service", event.Type)
	assert.Equal(t, "router1:if-eth0", event.Subject)
	assert.NotEmpty(t, event.ID)
	require.NotNil(t, event.Time)
	assert.True(t, fixed.Equal(*event.Time))
	assert.Equal(t, "2", data.Record.Instance)
	assert.Equal(t, models.ServiceStateReceived, data.State)
}

func TestPublishMappingAndErrorEvents(t *testing.T) {
	js := &fakePublisher{}
	p := NewEventPublisher(js, DefaultStream)
	ctx := context.Background()

	require.NoError(t, p.PublishMapping(ctx, MappingEventData{
		Host: "router1", RootOID: ".1.3.6.1.2.1.2.2.1.2", Discovered: map[string]string{"eth0": "2"},
	}))
	require.NoError(t, p.PublishError(ctx, ErrorEventData{Op: "get", Host: "router1", Error: "timeout"}))

	require.Len(t, js.msgs, 2)
	assert.Equal(t, SubjectMapping, js.msgs[0].subject)
	assert.Equal(t, SubjectError, js.msgs[1].subject)

	var mapping MappingEventData

	event := decodeEvent(t, js.msgs[0].data, &mapping)
	assert.Equal(t, "com.carverauto.snmpbooster.mapping", event.Type)
	assert.Equal(t, "2", mapping.Discovered["eth0"])

	var engErr ErrorEventData

	decodeEvent(t, js.msgs[1].data, &engErr)
	assert.Equal(t, "timeout", engErr.Error)
}

func TestPublishFailure(t *testing.T) {
	p := NewEventPublisher(&fakePublisher{err: errTestFixture}, DefaultStream)

	err := p.PublishError(context.Background(), ErrorEventData{Op: "get"})
	require.ErrorIs(t, err, errTestFixture)
}

func TestConnectWithEventPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()
	t.Cleanup(srv.Shutdown)

	require.True(t, srv.ReadyForConnections(10*time.Second), "embedded NATS server not ready")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, nc, err := ConnectWithEventPublisher(ctx, &EventsConfig{Enabled: true, NATSURL: srv.ClientURL()}, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	assert.Equal(t, DefaultStream, p.Stream())

	require.NoError(t, p.PublishService(ctx, ServiceEventData{Host: "router1", Service: "cpu", State: models.ServiceStateReceived}))

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, DefaultStream)
	require.NoError(t, err)

	msg, err := stream.GetLastMsgForSubject(ctx, SubjectService)
	require.NoError(t, err)

	var data ServiceEventData

	decodeEvent(t, msg.Data, &data)
	assert.Equal(t, "cpu", data.Service)

	// A second publisher reuses the existing stream.
	_, err = CreateEventPublisher(ctx, nc, DefaultStream)
	require.NoError(t, err)
}

func TestConnectWithSecurityRejectsIncompleteTLS(t *testing.T) {
	_, err := ConnectWithSecurity("nats://127.0.0.1:1", &TLSSettings{CertFile: "only-cert.pem"}, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrTLSRequired)
}
