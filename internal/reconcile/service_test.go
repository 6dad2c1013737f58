package reconcile

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/router"
	"github.com/netbill/netbill-server/internal/storage"
	"github.com/netbill/netbill-server/pkg/routeros/routerostest"
)

type recorder struct {
	mu       sync.Mutex
	synced   []*models.SecretSyncedEvent
	imported []*models.SecretsImportedEvent
}

func (r *recorder) PublishSecretSynced(_ context.Context, e *models.SecretSyncedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced = append(r.synced, e)
	return nil
}

func (r *recorder) PublishSecretsImported(_ context.Context, e *models.SecretsImportedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imported = append(r.imported, e)
	return nil
}

type harness struct {
	dev    *routerostest.Device
	store  *storage.MemoryStore
	events *recorder
	svc    *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dev := routerostest.NewDevice("admin", "secret")
	rest := httptest.NewServer(dev)
	t.Cleanup(rest.Close)

	store := storage.NewMemoryStore()
	require.NoError(t, store.SaveRouterSettings(context.Background(), &models.RouterSettings{
		Host:     "127.0.0.1",
		Username: "admin",
		Password: "secret",
	}))

	port := rest.Listener.Addr().(*net.TCPAddr).Port
	gw := router.NewGateway(store, router.NewRESTTransport(0, router.WithRESTPort(port)))
	events := &recorder{}

	return &harness{
		dev:    dev,
		store:  store,
		events: events,
		svc:    NewService(store, router.NewClient(gw, ""), events),
	}
}

func TestImportFromRouter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.dev.Seed("/ppp/secret",
		map[string]string{"name": "alice", "password": "a1", "profile": "10M", "service": "pppoe", "disabled": "false"},
		map[string]string{"name": "bob", "password": "b1", "profile": "20M", "service": "pppoe", "disabled": "true"},
	)
	h.dev.Seed("/ip/hotspot/user",
		map[string]string{"name": "carol", "password": "c1", "profile": "default"},
	)
	require.NoError(t, h.store.CreateSecret(ctx, &models.Secret{
		Username: "alice",
		Password: "local",
		Service:  models.ServicePPPoE,
		Profile:  "10M",
	}))

	result, err := h.svc.ImportFromRouter(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Imported: 2, Skipped: 1, Errors: 0, Total: 3}, result)
	assert.Equal(t, "Import completed: 2 imported, 1 skipped, 0 errors", result.Message())

	_, total, err := h.store.ListSecrets(ctx, models.SecretFilter{}, 100, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	alice, err := h.store.GetSecretByUsername(ctx, "alice", models.ServicePPPoE)
	require.NoError(t, err)
	assert.Equal(t, "local", alice.Password, "existing rows are left untouched")

	bob, err := h.store.GetSecretByUsername(ctx, "bob", models.ServicePPPoE)
	require.NoError(t, err)
	assert.Equal(t, "b1", bob.Password)
	assert.True(t, bob.Disabled)

	carol, err := h.store.GetSecretByUsername(ctx, "carol", models.ServiceHotspot)
	require.NoError(t, err)
	assert.Equal(t, "default", carol.Profile)

	require.Len(t, h.events.imported, 1)
	assert.Equal(t, 2, h.events.imported[0].Imported)
	assert.Equal(t, 3, h.events.imported[0].Total)
}

func TestImportFromRouterTwiceSkipsEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.dev.Seed("/ppp/secret", map[string]string{"name": "alice", "password": "a1"})

	_, err := h.svc.ImportFromRouter(ctx)
	require.NoError(t, err)

	result, err := h.svc.ImportFromRouter(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Imported: 0, Skipped: 1, Total: 1}, result)
}

func TestImportCountsBadRows(t *testing.T) {
	h := newHarness(t)
	h.dev.Seed("/ppp/secret",
		map[string]string{"name": "", "password": "x"},
		map[string]string{"name": "dave", "password": "d1"},
	)

	result, err := h.svc.ImportFromRouter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Imported: 1, Errors: 1, Total: 2}, result)
}

func TestImportRouterNotConfigured(t *testing.T) {
	store := storage.NewMemoryStore()
	gw := router.NewGateway(store, router.NewRESTTransport(0))
	svc := NewService(store, router.NewClient(gw, ""), nil)

	_, err := svc.ImportFromRouter(context.Background())
	assert.ErrorIs(t, err, router.ErrNotConfigured)
}

func TestSyncCreateWithPackage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pkg := &models.Package{Name: "Home 10", Type: models.ServicePPPoE, Bandwidth: "10M/10M", Price: 20}
	require.NoError(t, h.store.CreatePackage(ctx, pkg))

	secret := &models.Secret{
		Username:  "erin",
		Password:  "pw",
		Service:   models.ServicePPPoE,
		Profile:   "default",
		PackageID: &pkg.ID,
	}
	require.NoError(t, h.store.CreateSecret(ctx, secret))

	result, err := h.svc.SyncSecret(ctx, SyncRequest{SecretID: &secret.ID, Action: models.SyncCreate})
	require.NoError(t, err)
	assert.Equal(t, "erin", result.Username)
	require.NotNil(t, result.Queue)
	assert.Equal(t, "erin-queue", result.Queue.Name)
	assert.Equal(t, "10M/10M", result.Queue.MaxLimit)

	rows := h.dev.Rows("/ppp/secret")
	require.Len(t, rows, 1)
	assert.Equal(t, "erin", rows[0]["name"])
	assert.Len(t, h.dev.Rows("/queue/simple"), 1)

	require.Len(t, h.events.synced, 1)
	assert.Equal(t, models.SyncCreate, h.events.synced[0].Action)
	assert.Equal(t, &secret.ID, h.events.synced[0].SecretID)
}

func TestSyncUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.dev.Seed("/ppp/secret", map[string]string{"name": "frank", "password": "old", "profile": "default"})
	secret := &models.Secret{Username: "frank", Password: "new", Service: models.ServicePPPoE, Profile: "20M"}
	require.NoError(t, h.store.CreateSecret(ctx, secret))

	_, err := h.svc.SyncSecret(ctx, SyncRequest{SecretID: &secret.ID, Action: models.SyncUpdate})
	require.NoError(t, err)

	rows := h.dev.Rows("/ppp/secret")
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0]["password"])
	assert.Equal(t, "20M", rows[0]["profile"])
}

func TestSyncUpdateMissingOnRouter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	secret := &models.Secret{Username: "ghost", Password: "x", Service: models.ServicePPPoE}
	require.NoError(t, h.store.CreateSecret(ctx, secret))

	_, err := h.svc.SyncSecret(ctx, SyncRequest{SecretID: &secret.ID, Action: models.SyncUpdate})
	assert.ErrorIs(t, err, router.ErrNotFound)
	assert.Empty(t, h.events.synced)
}

func TestSyncDeleteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.dev.Seed("/ppp/secret", map[string]string{"name": "gina", "password": "x"})
	h.dev.Seed("/queue/simple", map[string]string{"name": "gina-queue", "target": "gina"})

	req := SyncRequest{Action: models.SyncDelete, Username: "gina", Service: models.ServicePPPoE}

	result, err := h.svc.SyncSecret(ctx, req)
	require.NoError(t, err)
	assert.False(t, result.AlreadyAbsent)
	assert.Empty(t, h.dev.Rows("/ppp/secret"))
	assert.Empty(t, h.dev.Rows("/queue/simple"))

	result, err = h.svc.SyncSecret(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.AlreadyAbsent)
}

func TestSyncDeleteOfRemovedLocalRecord(t *testing.T) {
	h := newHarness(t)
	h.dev.Seed("/ip/hotspot/user", map[string]string{"name": "hank", "password": "x"})

	id := uuid.New()
	result, err := h.svc.SyncSecret(context.Background(), SyncRequest{
		SecretID: &id,
		Action:   models.SyncDelete,
		Username: "hank",
		Service:  models.ServiceHotspot,
	})
	require.NoError(t, err)
	assert.False(t, result.AlreadyAbsent)
	assert.Empty(t, h.dev.Rows("/ip/hotspot/user"))
}

func TestSyncRejectsBadRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SyncSecret(ctx, SyncRequest{Action: "rename"})
	assert.ErrorIs(t, err, router.ErrInvalid)

	_, err = h.svc.SyncSecret(ctx, SyncRequest{Action: models.SyncCreate})
	assert.ErrorIs(t, err, router.ErrInvalid)

	_, err = h.svc.SyncSecret(ctx, SyncRequest{Action: models.SyncDelete})
	assert.ErrorIs(t, err, router.ErrInvalid)

	missing := uuid.New()
	_, err = h.svc.SyncSecret(ctx, SyncRequest{SecretID: &missing, Action: models.SyncUpdate})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	assert.Empty(t, h.dev.Calls())
}
