package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/netbill/netbill-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// Secret methods
	CreateSecret(ctx context.Context, secret *models.Secret) error
	GetSecret(ctx context.Context, id uuid.UUID) (*models.Secret, error)
	GetSecretByUsername(ctx context.Context, username string, service models.ServiceType) (*models.Secret, error)
	UpdateSecret(ctx context.Context, secret *models.Secret) error
	DeleteSecret(ctx context.Context, id uuid.UUID) error
	ListSecrets(ctx context.Context, filter models.SecretFilter, limit, offset int) ([]*models.Secret, int64, error)

	// Package methods
	CreatePackage(ctx context.Context, pkg *models.Package) error
	GetPackage(ctx context.Context, id uuid.UUID) (*models.Package, error)
	UpdatePackage(ctx context.Context, pkg *models.Package) error
	DeletePackage(ctx context.Context, id uuid.UUID) error
	ListPackages(ctx context.Context, limit, offset int) ([]*models.Package, int64, error)

	// Router settings, a single row
	GetRouterSettings(ctx context.Context) (*models.RouterSettings, error)
	SaveRouterSettings(ctx context.Context, settings *models.RouterSettings) error

	// Close the store
	Close() error
}
