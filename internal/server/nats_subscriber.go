package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/router"
	"github.com/netbill/netbill-server/internal/storage"
	"github.com/netbill/netbill-server/pkg/crypto"
)

// Billing workflow subjects
const (
	SubjectSuspended   = "billing.subscription.suspended"
	SubjectActivated   = "billing.subscription.activated"
	SubjectProvisioned = "billing.subscription.provisioned"
)

// generatedPasswordBytes yields a 16 character password
const generatedPasswordBytes = 12

// SecretRouter is what billing events change on the router
type SecretRouter interface {
	ToggleSecret(ctx context.Context, username string, service models.ServiceType, enable bool) error
	CreateSecret(ctx context.Context, spec router.SecretSpec, pkg *models.Package) (*router.CreateResult, error)
}

// BillingSubscriber applies subscription lifecycle events to the router
type BillingSubscriber struct {
	nc      *nats.Conn
	store   storage.Store
	router  SecretRouter
	timeout time.Duration
	subs    []*nats.Subscription
}

// NewBillingSubscriber creates the subscriber
func NewBillingSubscriber(nc *nats.Conn, store storage.Store, r SecretRouter) *BillingSubscriber {
	return &BillingSubscriber{
		nc:      nc,
		store:   store,
		router:  r,
		timeout: time.Minute,
		subs:    make([]*nats.Subscription, 0),
	}
}

// Start subscribes and blocks until ctx is done
func (s *BillingSubscriber) Start(ctx context.Context) error {
	for _, subject := range []string{SubjectSuspended, SubjectActivated, SubjectProvisioned} {
		sub, err := s.nc.Subscribe(subject, s.handleMessage)
		if err != nil {
			s.unsubscribe()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}

	log.Info().
		Int("subscriptions", len(s.subs)).
		Msg("Billing subscriber started")

	<-ctx.Done()
	s.unsubscribe()

	return ctx.Err()
}

func (s *BillingSubscriber) unsubscribe() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = s.subs[:0]
}

func (s *BillingSubscriber) handleMessage(msg *nats.Msg) {
	log.Debug().
		Str("subject", msg.Subject).
		Int("size", len(msg.Data)).
		Msg("Received billing event")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Handle(ctx, msg.Subject, msg.Data); err != nil {
		log.Error().
			Err(err).
			Str("subject", msg.Subject).
			Str("kind", router.Kind(err)).
			Msg("Failed to apply billing event")
	}
}

// Handle applies one billing event
func (s *BillingSubscriber) Handle(ctx context.Context, subject string, data []byte) error {
	var event models.SubscriptionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshal subscription event: %w", err)
	}
	if event.Username == "" {
		return fmt.Errorf("%w: subscription %s has no username", router.ErrInvalid, event.SubscriptionID)
	}
	if event.Service == "" {
		event.Service = models.ServicePPPoE
	}

	switch subject {
	case SubjectSuspended:
		return s.toggle(ctx, &event, false)
	case SubjectActivated:
		return s.toggle(ctx, &event, true)
	case SubjectProvisioned:
		return s.provision(ctx, &event)
	default:
		return fmt.Errorf("unknown subject %q", subject)
	}
}

func (s *BillingSubscriber) toggle(ctx context.Context, event *models.SubscriptionEvent, enable bool) error {
	err := s.router.ToggleSecret(ctx, event.Username, event.Service, enable)
	if errors.Is(err, router.ErrNotConfigured) {
		log.Warn().Str("username", event.Username).Msg("Router not configured, billing event skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("toggle %s: %w", event.Username, err)
	}

	if secret, err := s.store.GetSecretByUsername(ctx, event.Username, event.Service); err == nil {
		secret.Disabled = !enable
		if err := s.store.UpdateSecret(ctx, secret); err != nil {
			log.Warn().Err(err).Str("username", event.Username).Msg("Failed to update local secret state")
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Warn().Err(err).Str("username", event.Username).Msg("Failed to load local secret")
	}

	log.Info().
		Str("subscription_id", event.SubscriptionID.String()).
		Str("username", event.Username).
		Bool("enabled", enable).
		Msg("Router user toggled for subscription")

	return nil
}

func (s *BillingSubscriber) provision(ctx context.Context, event *models.SubscriptionEvent) error {
	if event.Password == "" {
		password, err := crypto.GenerateRandomString(generatedPasswordBytes)
		if err != nil {
			return fmt.Errorf("generate password: %w", err)
		}
		event.Password = password
	}

	var pkg *models.Package
	profile := "default"
	if event.PackageID != nil {
		p, err := s.store.GetPackage(ctx, *event.PackageID)
		if err != nil {
			return fmt.Errorf("load package %s: %w", event.PackageID, err)
		}
		pkg = p
		profile = p.ProfileName()
	}

	secret := &models.Secret{
		Username:   event.Username,
		Password:   event.Password,
		Service:    event.Service,
		Profile:    profile,
		Comment:    "subscription " + event.SubscriptionID.String(),
		CustomerID: event.CustomerID,
		PackageID:  event.PackageID,
	}

	result, err := s.router.CreateSecret(ctx, router.SpecFromSecret(secret), pkg)
	if errors.Is(err, router.ErrNotConfigured) {
		log.Warn().Str("username", event.Username).Msg("Router not configured, provisioning skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("provision %s: %w", event.Username, err)
	}

	if err := s.store.CreateSecret(ctx, secret); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("store secret %s: %w", event.Username, err)
	}

	log.Info().
		Str("subscription_id", event.SubscriptionID.String()).
		Str("username", event.Username).
		Str("router_id", result.SecretID).
		Bool("queue", result.Queue != nil).
		Msg("Router user provisioned for subscription")

	return nil
}
