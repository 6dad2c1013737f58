package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/pkg/crypto"
)

// SealedStore encrypts secret and router passwords before they reach the
// wrapped store and decrypts them on the way out.
type SealedStore struct {
	Store
	sealer *crypto.Sealer
}

// NewSealedStore wraps inner. With a nil sealer it returns inner unchanged.
func NewSealedStore(inner Store, sealer *crypto.Sealer) Store {
	if sealer == nil {
		return inner
	}
	return &SealedStore{Store: inner, sealer: sealer}
}

// BeginTx starts a transaction on the wrapped store
func (s *SealedStore) BeginTx(ctx context.Context) (Store, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &SealedStore{Store: tx, sealer: s.sealer}, nil
}

func (s *SealedStore) sealSecret(secret *models.Secret) (*models.Secret, error) {
	cp := *secret
	sealed, err := s.sealer.Seal(secret.Password)
	if err != nil {
		return nil, err
	}
	cp.Password = sealed
	return &cp, nil
}

func (s *SealedStore) openSecret(secret *models.Secret, err error) (*models.Secret, error) {
	if err != nil {
		return nil, err
	}
	if secret.Password, err = s.sealer.Open(secret.Password); err != nil {
		return nil, err
	}
	return secret, nil
}

// CreateSecret seals the password and creates the secret
func (s *SealedStore) CreateSecret(ctx context.Context, secret *models.Secret) error {
	cp, err := s.sealSecret(secret)
	if err != nil {
		return err
	}
	if err := s.Store.CreateSecret(ctx, cp); err != nil {
		return err
	}
	secret.BaseModel = cp.BaseModel
	return nil
}

// UpdateSecret seals the password and updates the secret
func (s *SealedStore) UpdateSecret(ctx context.Context, secret *models.Secret) error {
	cp, err := s.sealSecret(secret)
	if err != nil {
		return err
	}
	if err := s.Store.UpdateSecret(ctx, cp); err != nil {
		return err
	}
	secret.BaseModel = cp.BaseModel
	return nil
}

// GetSecret returns the secret with its password opened
func (s *SealedStore) GetSecret(ctx context.Context, id uuid.UUID) (*models.Secret, error) {
	return s.openSecret(s.Store.GetSecret(ctx, id))
}

// GetSecretByUsername returns the secret with its password opened
func (s *SealedStore) GetSecretByUsername(ctx context.Context, username string, service models.ServiceType) (*models.Secret, error) {
	return s.openSecret(s.Store.GetSecretByUsername(ctx, username, service))
}

// ListSecrets returns secrets with their passwords opened
func (s *SealedStore) ListSecrets(ctx context.Context, filter models.SecretFilter, limit, offset int) ([]*models.Secret, int64, error) {
	secrets, total, err := s.Store.ListSecrets(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, secret := range secrets {
		if _, err := s.openSecret(secret, nil); err != nil {
			return nil, 0, err
		}
	}
	return secrets, total, nil
}

// GetRouterSettings returns the settings with the password opened
func (s *SealedStore) GetRouterSettings(ctx context.Context) (*models.RouterSettings, error) {
	settings, err := s.Store.GetRouterSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.Password, err = s.sealer.Open(settings.Password); err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveRouterSettings seals the password and saves the settings
func (s *SealedStore) SaveRouterSettings(ctx context.Context, settings *models.RouterSettings) error {
	cp := *settings
	sealed, err := s.sealer.Seal(settings.Password)
	if err != nil {
		return err
	}
	cp.Password = sealed
	if err := s.Store.SaveRouterSettings(ctx, &cp); err != nil {
		return err
	}
	settings.ID, settings.Port, settings.UpdatedAt = cp.ID, cp.Port, cp.UpdatedAt
	return nil
}
