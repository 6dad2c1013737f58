package integration

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-multierror"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/netbill/netbill-server/internal/config"
)

// SubjectRouterEvents matches every event published about the router
const SubjectRouterEvents = "router.>"

// Sink delivers one forwarded event
type Sink interface {
	Name() string
	Send(ctx context.Context, subject string, payload []byte) error
	Close()
}

// Envelope wraps a router event for external systems
type Envelope struct {
	Subject   string          `json:"subject"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Event     json.RawMessage `json:"event"`
}

// ForwarderService relays router events from NATS to external sinks
type ForwarderService struct {
	nc     *nats.Conn
	source string
	sinks  []Sink
	now    func() time.Time
}

// NewForwarderService creates a forwarder. source names this server in
// each envelope.
func NewForwarderService(nc *nats.Conn, source string, sinks ...Sink) *ForwarderService {
	return &ForwarderService{
		nc:     nc,
		source: source,
		sinks:  sinks,
		now:    time.Now,
	}
}

// NewSinks builds the sinks enabled in cfg. A broker that cannot be
// reached is an error.
func NewSinks(cfg *config.IntegrationConfig) ([]Sink, error) {
	var sinks []Sink
	if cfg.HTTP.Endpoint != "" {
		sinks = append(sinks, NewHTTPSink(cfg.HTTP))
	}
	if cfg.MQTT.BrokerURL != "" {
		sink, err := NewMQTTSink(cfg.MQTT)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

// Start subscribes to router events and blocks until ctx is done
func (s *ForwarderService) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe(SubjectRouterEvents, func(msg *nats.Msg) {
		fctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.Forward(fctx, msg.Subject, msg.Data); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to forward router event")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to router events: %w", err)
	}

	log.Info().Int("sinks", len(s.sinks)).Msg("Integration forwarder service started")

	<-ctx.Done()

	sub.Unsubscribe()
	for _, sink := range s.sinks {
		sink.Close()
	}

	return ctx.Err()
}

// Forward wraps data in an Envelope and hands it to every sink. Each sink
// is tried even when an earlier one fails.
func (s *ForwarderService) Forward(ctx context.Context, subject string, data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("event on %s is not valid JSON", subject)
	}

	payload, err := json.Marshal(Envelope{
		Subject:   subject,
		Source:    s.source,
		Timestamp: s.now().UTC(),
		Event:     json.RawMessage(data),
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	var result *multierror.Error
	for _, sink := range s.sinks {
		if err := sink.Send(ctx, subject, payload); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		log.Debug().
			Str("sink", sink.Name()).
			Str("subject", subject).
			Str("key", eventKey(data)).
			Msg("Router event forwarded")
	}
	return result.ErrorOrNil()
}

// eventKey picks the field identifying an event for logs
func eventKey(data []byte) string {
	r := gjson.GetManyBytes(data, "username", "interface")
	for _, v := range r {
		if v.Exists() {
			return v.String()
		}
	}
	return ""
}

// HTTPSink posts envelopes to a webhook
type HTTPSink struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// NewHTTPSink creates an HTTP sink
func NewHTTPSink(cfg config.HTTPIntegrationConfig) *HTTPSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSink{
		endpoint: cfg.Endpoint,
		headers:  cfg.Headers,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name implements Sink
func (h *HTTPSink) Name() string { return "http" }

// Send implements Sink
func (h *HTTPSink) Send(ctx context.Context, subject string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Subject", subject)
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", h.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("post %s: status %d", h.endpoint, resp.StatusCode)
	}
	return nil
}

// Close implements Sink
func (h *HTTPSink) Close() {}

// MQTTSink publishes envelopes to a broker. The topic is the prefix
// followed by the subject with dots turned into slashes.
type MQTTSink struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewMQTTSink connects to the broker
func NewMQTTSink(cfg config.MQTTIntegrationConfig) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Str("broker", cfg.BrokerURL).Msg("MQTT client connected")
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Error().Err(err).Str("broker", cfg.BrokerURL).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: timeout", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.BrokerURL, err)
	}

	return newMQTTSink(client, cfg.TopicPrefix, cfg.QoS), nil
}

func newMQTTSink(client mqtt.Client, prefix string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, prefix: strings.TrimSuffix(prefix, "/"), qos: qos}
}

// Topic returns the MQTT topic for a NATS subject
func (m *MQTTSink) Topic(subject string) string {
	topic := strings.ReplaceAll(subject, ".", "/")
	if m.prefix == "" {
		return topic
	}
	return m.prefix + "/" + topic
}

// Name implements Sink
func (m *MQTTSink) Name() string { return "mqtt" }

// Send implements Sink
func (m *MQTTSink) Send(ctx context.Context, subject string, payload []byte) error {
	topic := m.Topic(subject)
	token := m.client.Publish(topic, m.qos, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close implements Sink
func (m *MQTTSink) Close() {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}
