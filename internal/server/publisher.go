package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
)

// Outbound subjects
const (
	SubjectSecretSynced   = "router.secret.synced"
	SubjectSecretImported = "router.secret.imported"
	SubjectTrafficPrefix  = "router.traffic."
)

// Publisher publishes router events as JSON. A Publisher without a
// connection drops every event, so callers need no NATS checks.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a publisher; nc may be nil
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// Enabled reports whether events leave the process
func (p *Publisher) Enabled() bool {
	return p != nil && p.nc != nil
}

// PublishSecretSynced publishes a sync outcome
func (p *Publisher) PublishSecretSynced(ctx context.Context, event *models.SecretSyncedEvent) error {
	return p.publish(SubjectSecretSynced, event)
}

// PublishSecretsImported publishes import counts
func (p *Publisher) PublishSecretsImported(ctx context.Context, event *models.SecretsImportedEvent) error {
	return p.publish(SubjectSecretImported, event)
}

// PublishTraffic publishes one reading on router.traffic.{interface}
func (p *Publisher) PublishTraffic(ctx context.Context, event *models.TrafficEvent) error {
	return p.publish(TrafficSubject(event.Interface), event)
}

// TrafficSubject returns the subject of readings of iface
func TrafficSubject(iface string) string {
	return SubjectTrafficPrefix + subjectToken(iface)
}

// subjectToken replaces characters NATS treats as separators or wildcards
func subjectToken(s string) string {
	out := []byte(s)
	for i, c := range out {
		switch c {
		case '.', '*', '>', ' ', '\t':
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

func (p *Publisher) publish(subject string, v interface{}) error {
	if !p.Enabled() {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.Debug().Str("subject", subject).Int("size", len(data)).Msg("Published event")
	return nil
}
