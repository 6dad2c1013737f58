package router

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/storage"
)

func failingREST(t *testing.T, status int) *RESTTransport {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"error":500,"message":"Internal Server Error","detail":"boom"}`))
	}))
	t.Cleanup(srv.Close)
	return NewRESTTransport(0, WithRESTPort(portOf(srv)))
}

func TestGatewayPrefersREST(t *testing.T) {
	f := newFixture(t)
	f.seedSystem()

	report, err := f.client().TestConnection(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Connected)
	assert.Equal(t, "rest", report.Transport)
	assert.False(t, hasPrefix(f.dev.Calls(), "binary"))
}

func TestGatewayFallsBackOnServerError(t *testing.T) {
	f := newFixture(t)
	f.seedSystem()

	client := f.client(failingREST(t, http.StatusInternalServerError), f.binaryTransport())

	report, err := client.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "binary", report.Transport)
	require.NotNil(t, report.System)
	assert.Equal(t, "core-router", report.System.Identity)

	assert.Contains(t, f.dev.Calls(), "binary /system/resource/print")
}

func TestGatewayBothTransportsFail(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	settings, err := f.store.GetRouterSettings(context.Background())
	require.NoError(t, err)
	settings.Port = closedPort
	require.NoError(t, f.store.SaveRouterSettings(context.Background(), settings))

	client := f.client(failingREST(t, http.StatusInternalServerError), f.binaryTransport())
	_, err = client.GetSystemResource(context.Background())
	require.Error(t, err)

	var fallback *FallbackError
	require.True(t, errors.As(err, &fallback))
	require.Len(t, fallback.Attempts.Errors, 2)

	last := fallback.Attempts.Errors[1]
	assert.Equal(t, last.Error(), err.Error())
	assert.Contains(t, err.Error(), "binary")
	assert.Contains(t, fallback.Detail(), "status 500")
	assert.Equal(t, KindConnection, Kind(err))
}

func TestGatewayNotFoundDoesNotFallBack(t *testing.T) {
	f := newFixture(t)

	err := f.client().ToggleSecret(context.Background(), "ghost-user", models.ServicePPPoE, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, Kind(err))

	assert.Equal(t, []string{"rest GET /ppp/secret"}, f.dev.Calls())
	assert.Zero(t, f.bin.Connections())
}

func TestGatewayNotConfigured(t *testing.T) {
	gw := NewGateway(storage.NewMemoryStore(), NewRESTTransport(0))
	client := NewClient(gw, "")

	_, err := client.GetInterfaces(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, KindNotConfigured, Kind(err))
}

func TestGatewayBadCredentials(t *testing.T) {
	f := newFixture(t)

	settings, err := f.store.GetRouterSettings(context.Background())
	require.NoError(t, err)
	settings.Password = "wrong"
	require.NoError(t, f.store.SaveRouterSettings(context.Background(), settings))

	_, err = f.client().GetInterfaces(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid user name or password")
	assert.Equal(t, KindConnection, Kind(err))
	assert.Equal(t, []string{"/login"}, f.bin.Commands())
}

func TestGatewayDuplicateAfterFallback(t *testing.T) {
	f := newFixture(t)
	f.dev.Seed("/ppp/secret", map[string]string{"name": "alice", "service": "pppoe"})

	_, err := f.client().CreateSecret(context.Background(), SecretSpec{
		Username: "alice",
		Password: "pw",
		Service:  models.ServicePPPoE,
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, KindProtocol, Kind(err))
}

func TestGatewayCancelledContextDoesNotFallBack(t *testing.T) {
	f := newFixture(t)
	f.seedSystem()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.client().GetSystemResource(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.bin.Connections())
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	gw := NewGateway(f.store, f.binaryTransport())

	n, err := Run(context.Background(), gw, func(ctx context.Context, exec Executor) (int, error) {
		rows, err := exec.Execute(ctx, Print("/interface"))
		return len(rows), err
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, f.bin.Connections())
}
