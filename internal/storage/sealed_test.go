package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/pkg/crypto"
)

func TestSealedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	sealer, err := crypto.NewSealer("test-key")
	require.NoError(t, err)
	store := NewSealedStore(inner, sealer)

	secret := &models.Secret{Username: "alice", Password: "pw-1", Service: models.ServicePPPoE}
	require.NoError(t, store.CreateSecret(ctx, secret))
	assert.Equal(t, "pw-1", secret.Password, "caller copy keeps plaintext")

	raw, err := inner.GetSecret(ctx, secret.ID)
	require.NoError(t, err)
	assert.True(t, crypto.IsSealed(raw.Password))

	got, err := store.GetSecretByUsername(ctx, "alice", models.ServicePPPoE)
	require.NoError(t, err)
	assert.Equal(t, "pw-1", got.Password)

	list, _, err := store.ListSecrets(ctx, models.SecretFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "pw-1", list[0].Password)

	require.NoError(t, store.SaveRouterSettings(ctx, &models.RouterSettings{Host: "r1", Username: "admin", Password: "router"}))
	rawSettings, err := inner.GetRouterSettings(ctx)
	require.NoError(t, err)
	assert.True(t, crypto.IsSealed(rawSettings.Password))

	settings, err := store.GetRouterSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "router", settings.Password)
}

func TestNewSealedStoreNilSealer(t *testing.T) {
	inner := NewMemoryStore()
	assert.Same(t, inner, NewSealedStore(inner, nil).(*MemoryStore))
}
