package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/netbill-server/internal/models"
)

func TestRESTRequestMapping(t *testing.T) {
	f := newFixture(t)
	f.dev.Seed("/ppp/secret", map[string]string{"name": "alice"})
	client := f.client(f.restTransport())
	ctx := context.Background()

	require.NoError(t, client.ToggleSecret(ctx, "alice", models.ServicePPPoE, false))
	require.NoError(t, client.DeleteSecret(ctx, "alice", models.ServicePPPoE))
	_, err := client.CreateSecret(ctx, SecretSpec{Username: "bob", Service: models.ServicePPPoE}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"rest GET /ppp/secret",
		"rest PATCH /ppp/secret/*1",
		"rest GET /ppp/secret",
		"rest POST /ppp/secret/remove",
		"rest GET /queue/simple",
		"rest POST /ppp/secret/add",
	}, f.dev.Calls())
}

func TestRESTBaseURL(t *testing.T) {
	plain := NewRESTTransport(0)
	assert.Equal(t, "http://10.0.0.1:80/rest", plain.baseURL(&models.RouterSettings{Host: "10.0.0.1"}))
	assert.Equal(t, "https://10.0.0.1:443/rest", plain.baseURL(&models.RouterSettings{Host: "10.0.0.1", SSL: true}))
	assert.Equal(t, "http://[fe80::1]:8080/rest", NewRESTTransport(0, WithRESTPort(8080)).baseURL(&models.RouterSettings{Host: "fe80::1"}))
}

func TestRESTTimeoutDefault(t *testing.T) {
	assert.Equal(t, DefaultRESTTimeout, NewRESTTransport(0).client.Timeout)
	assert.Equal(t, DefaultRESTTimeout*2, NewRESTTransport(DefaultRESTTimeout*2).client.Timeout)
}
