package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/netbill-server/internal/models"
)

// MemoryStore is an in-process Store used by tests and by the service when
// no database is configured. Transactions are not isolated.
type MemoryStore struct {
	mu       sync.RWMutex
	secrets  map[uuid.UUID]*models.Secret
	packages map[uuid.UUID]*models.Package
	settings *models.RouterSettings
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		secrets:  make(map[uuid.UUID]*models.Secret),
		packages: make(map[uuid.UUID]*models.Package),
	}
}

// BeginTx returns the store itself
func (m *MemoryStore) BeginTx(ctx context.Context) (Store, error) { return m, nil }

// Commit is a no-op
func (m *MemoryStore) Commit() error { return nil }

// Rollback is a no-op
func (m *MemoryStore) Rollback() error { return nil }

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }

// CreateSecret creates a new secret
func (m *MemoryStore) CreateSecret(ctx context.Context, secret *models.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findSecretLocked(secret.Username, secret.Service) != nil {
		return ErrDuplicateKey
	}
	if secret.ID == uuid.Nil {
		secret.ID = uuid.New()
	}
	if _, ok := m.secrets[secret.ID]; ok {
		return ErrDuplicateKey
	}

	now := time.Now()
	secret.CreatedAt = now
	secret.UpdatedAt = now

	cp := *secret
	m.secrets[cp.ID] = &cp
	return nil
}

// GetSecret gets a secret by ID
func (m *MemoryStore) GetSecret(ctx context.Context, id uuid.UUID) (*models.Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	secret, ok := m.secrets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *secret
	return &cp, nil
}

// GetSecretByUsername gets a secret by its (username, service) key
func (m *MemoryStore) GetSecretByUsername(ctx context.Context, username string, service models.ServiceType) (*models.Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	secret := m.findSecretLocked(username, service)
	if secret == nil {
		return nil, ErrNotFound
	}
	cp := *secret
	return &cp, nil
}

func (m *MemoryStore) findSecretLocked(username string, service models.ServiceType) *models.Secret {
	for _, secret := range m.secrets {
		if secret.Username == username && secret.Service == service {
			return secret
		}
	}
	return nil
}

// UpdateSecret updates a secret
func (m *MemoryStore) UpdateSecret(ctx context.Context, secret *models.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.secrets[secret.ID]
	if !ok {
		return ErrNotFound
	}
	if other := m.findSecretLocked(secret.Username, secret.Service); other != nil && other.ID != secret.ID {
		return ErrDuplicateKey
	}

	secret.CreatedAt = existing.CreatedAt
	secret.UpdatedAt = time.Now()
	cp := *secret
	m.secrets[cp.ID] = &cp
	return nil
}

// DeleteSecret deletes a secret
func (m *MemoryStore) DeleteSecret(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.secrets[id]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, id)
	return nil
}

// ListSecrets lists secrets
func (m *MemoryStore) ListSecrets(ctx context.Context, filter models.SecretFilter, limit, offset int) ([]*models.Secret, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var out []*models.Secret
	for _, secret := range m.secrets {
		if filter.Service != nil && secret.Service != *filter.Service {
			continue
		}
		if filter.Disabled != nil && secret.Disabled != *filter.Disabled {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(secret.Username), search) &&
			!strings.Contains(strings.ToLower(secret.Comment), search) {
			continue
		}
		cp := *secret
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Username < out[j].Username
	})

	return paginate(out, limit, offset), int64(len(out)), nil
}

// CreatePackage creates a new package
func (m *MemoryStore) CreatePackage(ctx context.Context, pkg *models.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	if _, ok := m.packages[pkg.ID]; ok {
		return ErrDuplicateKey
	}

	now := time.Now()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	cp := *pkg
	m.packages[cp.ID] = &cp
	return nil
}

// GetPackage gets a package by ID
func (m *MemoryStore) GetPackage(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pkg, ok := m.packages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *pkg
	return &cp, nil
}

// UpdatePackage updates a package
func (m *MemoryStore) UpdatePackage(ctx context.Context, pkg *models.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.packages[pkg.ID]
	if !ok {
		return ErrNotFound
	}

	pkg.CreatedAt = existing.CreatedAt
	pkg.UpdatedAt = time.Now()
	cp := *pkg
	m.packages[cp.ID] = &cp
	return nil
}

// DeletePackage deletes a package and clears references to it
func (m *MemoryStore) DeletePackage(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.packages[id]; !ok {
		return ErrNotFound
	}
	delete(m.packages, id)

	for _, secret := range m.secrets {
		if secret.PackageID != nil && *secret.PackageID == id {
			secret.PackageID = nil
		}
	}
	return nil
}

// ListPackages lists packages ordered by name
func (m *MemoryStore) ListPackages(ctx context.Context, limit, offset int) ([]*models.Package, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Package, 0, len(m.packages))
	for _, pkg := range m.packages {
		cp := *pkg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return paginate(out, limit, offset), int64(len(out)), nil
}

// GetRouterSettings returns the router settings or ErrNotFound
func (m *MemoryStore) GetRouterSettings(ctx context.Context) (*models.RouterSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings == nil {
		return nil, ErrNotFound
	}
	cp := *m.settings
	return &cp, nil
}

// SaveRouterSettings replaces the router settings
func (m *MemoryStore) SaveRouterSettings(ctx context.Context, settings *models.RouterSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings.ID = 1
	settings.UpdatedAt = time.Now()
	if settings.Port == 0 {
		settings.Port = models.DefaultAPIPort
	}
	cp := *settings
	m.settings = &cp
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
