// Package natsutil holds NATS connection helpers and the JetStream publisher
// that streams engine results as CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/snmpbooster/pkg/logger"
	"github.com/carverauto/snmpbooster/pkg/models"
)

const (
	// DefaultStream is the JetStream stream results are published to.
	DefaultStream = "SNMP_BOOSTER"

	SubjectService = "snmpbooster.results.service"
	SubjectMapping = "snmpbooster.results.mapping"
	SubjectError   = "snmpbooster.errors"

	streamSubjects = "snmpbooster.>"
	eventSource    = "snmp-booster"
	eventTypeBase  = "com.carverauto.snmpbooster."
)

// CloudEvent is the envelope every published message uses.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data"`
}

// ServiceEventData is the payload of a service result event.
type ServiceEventData struct {
	Host    string                `json:"host"`
	Service string                `json:"service"`
	State   models.ServiceState   `json:"state"`
	Record  *models.ServiceRecord `json:"record,omitempty"`
}

// MappingEventData is the payload of a mapping result event.
type MappingEventData struct {
	Host       string            `json:"host"`
	RootOID    string            `json:"root_oid"`
	Discovered map[string]string `json:"discovered,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ErrorEventData is the payload of an engine error event.
type ErrorEventData struct {
	Op     string `json:"op"`
	TaskID string `json:"task_id,omitempty"`
	Host   string `json:"host,omitempty"`
	Error  string `json:"error"`
}

// Publisher is the part of jetstream.JetStream the publisher needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher provides methods for publishing CloudEvents to NATS JetStream.
type EventPublisher struct {
	js     Publisher
	stream string
	now    func() time.Time
}

// NewEventPublisher creates a new EventPublisher for the specified stream.
func NewEventPublisher(js Publisher, streamName string) *EventPublisher {
	return &EventPublisher{
		js:     js,
		stream: streamName,
		now:    time.Now,
	}
}

// Stream returns the stream name.
func (p *EventPublisher) Stream() string {
	return p.stream
}

func (p *EventPublisher) publish(ctx context.Context, subject, kind, about string, data interface{}) error {
	now := p.now()

	event := CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventTypeBase + kind,
		DataContentType: "application/json",
		Subject:         about,
		Time:            &now,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}

	if _, err := p.js.Publish(ctx, subject, eventBytes); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", kind, err)
	}

	return nil
}

// PublishService publishes a service result.
func (p *EventPublisher) PublishService(ctx context.Context, data ServiceEventData) error {
	return p.publish(ctx, SubjectService, "service", data.Host+":"+data.Service, data)
}

// PublishMapping publishes the outcome of a mapping walk.
func (p *EventPublisher) PublishMapping(ctx context.Context, data MappingEventData) error {
	return p.publish(ctx, SubjectMapping, "mapping", data.Host, data)
}

// PublishError publishes an engine error.
func (p *EventPublisher) PublishError(ctx context.Context, data ErrorEventData) error {
	return p.publish(ctx, SubjectError, "error", data.Host, data)
}

// ConnectWithSecurity creates a NATS connection, using mTLS when tlsSettings is set.
func ConnectWithSecurity(natsURL string, tlsSettings *TLSSettings, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	if log == nil {
		log = logger.Wrap(logger.WithComponent("nats"))
	}

	var opts []nats.Option

	if tlsSettings != nil {
		tlsConf, err := TLSConfig(tlsSettings)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// CreateEventPublisher creates an EventPublisher for an existing NATS
// connection, creating the stream when it does not exist.
func CreateEventPublisher(ctx context.Context, nc *nats.Conn, streamName string) (*EventPublisher, error) {
	if streamName == "" {
		streamName = DefaultStream
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.Stream(ctx, streamName); err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{streamSubjects},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create or get stream %s: %w", streamName, err)
		}
	}

	return NewEventPublisher(js, streamName), nil
}

// EventsConfig enables result publishing.
type EventsConfig struct {
	Enabled bool         `json:"enabled"`
	NATSURL string       `json:"nats_url"`
	Stream  string       `json:"stream,omitempty"`
	TLS     *TLSSettings `json:"tls,omitempty"`
	// NKeySeedFile authenticates with a user nkey seed.
	NKeySeedFile string `json:"nkey_seed_file,omitempty"`
}

// ConnectWithEventPublisher connects to NATS and returns a publisher for cfg.Stream.
func ConnectWithEventPublisher(ctx context.Context, cfg *EventsConfig, log logger.Logger) (*EventPublisher, *nats.Conn, error) {
	opts, err := AuthOptions(cfg.NKeySeedFile, nats.Name("snmp-booster-events"))
	if err != nil {
		return nil, nil, err
	}

	nc, err := ConnectWithSecurity(cfg.NATSURL, cfg.TLS, log, opts...)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := CreateEventPublisher(ctx, nc, cfg.Stream)
	if err != nil {
		nc.Close()

		return nil, nil, err
	}

	return publisher, nc, nil
}
