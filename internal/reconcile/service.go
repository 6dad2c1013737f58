// Package reconcile keeps locally stored secrets and the router's PPP
// secrets and Hotspot users in step, one explicit request at a time.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/router"
	"github.com/netbill/netbill-server/internal/storage"
)

// Router is the subset of router operations reconciliation needs
type Router interface {
	ListSecrets(ctx context.Context, service models.ServiceType) ([]router.RemoteSecret, error)
	CreateSecret(ctx context.Context, spec router.SecretSpec, pkg *models.Package) (*router.CreateResult, error)
	UpdateSecret(ctx context.Context, spec router.SecretSpec) error
	DeleteSecret(ctx context.Context, username string, service models.ServiceType) error
}

// EventPublisher receives reconciliation outcomes
type EventPublisher interface {
	PublishSecretSynced(ctx context.Context, event *models.SecretSyncedEvent) error
	PublishSecretsImported(ctx context.Context, event *models.SecretsImportedEvent) error
}

// ImportResult counts the outcome of ImportFromRouter
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
	Total    int `json:"total"`
}

// Message summarises the result
func (r *ImportResult) Message() string {
	return fmt.Sprintf("Import completed: %d imported, %d skipped, %d errors", r.Imported, r.Skipped, r.Errors)
}

// SyncRequest asks for one local secret to be pushed to the router. For
// deletes of records already gone locally, Username and Service identify
// the remote row.
type SyncRequest struct {
	SecretID *uuid.UUID         `json:"secretId,omitempty"`
	Action   models.SyncAction  `json:"action" validate:"required,oneof=create update delete"`
	Username string             `json:"username,omitempty"`
	Service  models.ServiceType `json:"service,omitempty"`
	// PreviousUsername is the name on the router before a local rename
	PreviousUsername string `json:"previousUsername,omitempty"`
}

// SyncResult reports what a sync did
type SyncResult struct {
	Action        models.SyncAction  `json:"action"`
	Username      string             `json:"username"`
	Service       models.ServiceType `json:"service"`
	AlreadyAbsent bool               `json:"alreadyAbsent,omitempty"`
	Queue         *router.QueueRule  `json:"queue,omitempty"`
}

// Service runs imports and syncs
type Service struct {
	store  storage.Store
	router Router
	events EventPublisher
	now    func() time.Time
}

// NewService creates a service; events may be nil
func NewService(store storage.Store, r Router, events EventPublisher) *Service {
	return &Service{store: store, router: r, events: events, now: time.Now}
}

// ImportFromRouter copies router secrets missing locally into the store.
// Rows that fail are logged and counted; only reading the router fails the
// call.
func (s *Service) ImportFromRouter(ctx context.Context) (*ImportResult, error) {
	ppp, err := s.router.ListSecrets(ctx, models.ServicePPPoE)
	if err != nil {
		return nil, fmt.Errorf("read ppp secrets: %w", err)
	}

	hotspot, err := s.router.ListSecrets(ctx, models.ServiceHotspot)
	if err != nil {
		if router.Kind(err) != router.KindProtocol {
			return nil, fmt.Errorf("read hotspot users: %w", err)
		}
		// routers without the hotspot package reject the menu
		log.Warn().Err(err).Msg("Hotspot users unavailable, importing PPP secrets only")
		hotspot = nil
	}

	remote := append(ppp, hotspot...)
	result := &ImportResult{Total: len(remote)}

	for _, rs := range remote {
		imported, err := s.importOne(ctx, rs)
		switch {
		case err != nil:
			result.Errors++
			log.Warn().
				Err(err).
				Str("username", rs.Username).
				Str("service", rs.Service.String()).
				Msg("Failed to import secret")
		case imported:
			result.Imported++
		default:
			result.Skipped++
		}
	}

	log.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("errors", result.Errors).
		Int("total", result.Total).
		Msg("Secret import completed")

	if s.events != nil {
		event := &models.SecretsImportedEvent{
			Imported:  result.Imported,
			Skipped:   result.Skipped,
			Errors:    result.Errors,
			Total:     result.Total,
			Timestamp: s.now(),
		}
		if err := s.events.PublishSecretsImported(ctx, event); err != nil {
			log.Warn().Err(err).Msg("Failed to publish import event")
		}
	}

	return result, nil
}

func (s *Service) importOne(ctx context.Context, rs router.RemoteSecret) (bool, error) {
	if rs.Username == "" {
		return false, errors.New("remote row has no name")
	}

	_, err := s.store.GetSecretByUsername(ctx, rs.Username, rs.Service)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("lookup: %w", err)
	}

	secret := &models.Secret{
		Username:      rs.Username,
		Password:      rs.Password,
		Service:       rs.Service,
		Profile:       orDefault(rs.Profile, "default"),
		LocalAddress:  rs.LocalAddress,
		RemoteAddress: rs.RemoteAddress,
		Comment:       rs.Comment,
		Disabled:      rs.Disabled,
	}
	if err := s.store.CreateSecret(ctx, secret); err != nil {
		// a concurrent import may have inserted it first
		if errors.Is(err, storage.ErrDuplicateKey) {
			return false, nil
		}
		return false, fmt.Errorf("insert: %w", err)
	}

	return true, nil
}

// SyncSecret pushes one local secret to the router
func (s *Service) SyncSecret(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", router.ErrInvalid, req.Action)
	}

	var secret *models.Secret
	if req.SecretID != nil {
		found, err := s.store.GetSecret(ctx, *req.SecretID)
		switch {
		case err == nil:
			secret = found
		case errors.Is(err, storage.ErrNotFound) && req.Action == models.SyncDelete:
		case errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("secret %s: %w", req.SecretID, err)
		default:
			return nil, fmt.Errorf("load secret: %w", err)
		}
	} else if req.Action != models.SyncDelete {
		return nil, fmt.Errorf("%w: secretId is required for %s", router.ErrInvalid, req.Action)
	}

	var result *SyncResult
	var err error
	switch req.Action {
	case models.SyncCreate:
		result, err = s.syncCreate(ctx, secret)
	case models.SyncUpdate:
		result, err = s.syncUpdate(ctx, secret, req.PreviousUsername)
	case models.SyncDelete:
		result, err = s.syncDelete(ctx, secret, req)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("action", string(result.Action)).
		Str("username", result.Username).
		Str("service", result.Service.String()).
		Bool("already_absent", result.AlreadyAbsent).
		Msg("Secret synced")

	if s.events != nil {
		event := &models.SecretSyncedEvent{
			SecretID:      req.SecretID,
			Username:      result.Username,
			Service:       result.Service,
			Action:        result.Action,
			AlreadyAbsent: result.AlreadyAbsent,
			Timestamp:     s.now(),
		}
		if err := s.events.PublishSecretSynced(ctx, event); err != nil {
			log.Warn().Err(err).Msg("Failed to publish sync event")
		}
	}

	return result, nil
}

func (s *Service) syncCreate(ctx context.Context, secret *models.Secret) (*SyncResult, error) {
	var pkg *models.Package
	if secret.PackageID != nil {
		p, err := s.store.GetPackage(ctx, *secret.PackageID)
		switch {
		case err == nil:
			pkg = p
		case errors.Is(err, storage.ErrNotFound):
			log.Warn().
				Str("username", secret.Username).
				Str("package_id", secret.PackageID.String()).
				Msg("Package of secret not found, creating without queue")
		default:
			return nil, fmt.Errorf("load package: %w", err)
		}
	}

	created, err := s.router.CreateSecret(ctx, router.SpecFromSecret(secret), pkg)
	if err != nil {
		return nil, err
	}

	return &SyncResult{
		Action:   models.SyncCreate,
		Username: secret.Username,
		Service:  secret.Service,
		Queue:    created.Queue,
	}, nil
}

func (s *Service) syncUpdate(ctx context.Context, secret *models.Secret, previous string) (*SyncResult, error) {
	spec := router.SpecFromSecret(secret)
	if previous != secret.Username {
		spec.CurrentName = previous
	}
	if err := s.router.UpdateSecret(ctx, spec); err != nil {
		return nil, err
	}
	return &SyncResult{Action: models.SyncUpdate, Username: secret.Username, Service: secret.Service}, nil
}

func (s *Service) syncDelete(ctx context.Context, secret *models.Secret, req SyncRequest) (*SyncResult, error) {
	username, service := req.Username, req.Service
	if secret != nil {
		username, service = secret.Username, secret.Service
	}
	if username == "" || !service.Valid() {
		return nil, fmt.Errorf("%w: username and service are required to delete", router.ErrInvalid)
	}

	result := &SyncResult{Action: models.SyncDelete, Username: username, Service: service}

	err := s.router.DeleteSecret(ctx, username, service)
	switch {
	case err == nil:
	case errors.Is(err, router.ErrNotFound):
		result.AlreadyAbsent = true
	default:
		return nil, err
	}

	return result, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
