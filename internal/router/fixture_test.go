package router

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/internal/storage"
	"github.com/netbill/netbill-server/pkg/routeros/routerostest"
)

type fixture struct {
	dev   *routerostest.Device
	bin   *routerostest.Server
	rest  *httptest.Server
	store *storage.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dev := routerostest.NewDevice("admin", "secret")
	f := &fixture{
		dev:   dev,
		bin:   routerostest.NewServer(dev.Handler()),
		rest:  httptest.NewServer(dev),
		store: storage.NewMemoryStore(),
	}
	t.Cleanup(func() {
		f.rest.Close()
		f.bin.Close()
	})

	require.NoError(t, f.store.SaveRouterSettings(context.Background(), &models.RouterSettings{
		Host:     "127.0.0.1",
		Port:     f.bin.Port(),
		Username: "admin",
		Password: "secret",
	}))

	return f
}

func portOf(s *httptest.Server) int {
	return s.Listener.Addr().(*net.TCPAddr).Port
}

func (f *fixture) restTransport() *RESTTransport {
	return NewRESTTransport(0, WithRESTPort(portOf(f.rest)))
}

func (f *fixture) binaryTransport() *BinaryTransport {
	return NewBinaryTransport(0, 0)
}

func (f *fixture) client(transports ...Transport) *Client {
	if len(transports) == 0 {
		transports = []Transport{f.restTransport(), f.binaryTransport()}
	}
	return NewClient(NewGateway(f.store, transports...), "")
}

// clients returns one client per transport so operations can be checked
// against both wire formats
func (f *fixture) clients() map[string]*Client {
	return map[string]*Client{
		"rest":   f.client(f.restTransport()),
		"binary": f.client(f.binaryTransport()),
	}
}

func (f *fixture) seedSystem() {
	f.dev.SeedSingleton("/system/resource", map[string]string{
		"cpu-load":          "12",
		"total-memory":      "1073741824",
		"free-memory":       "268435456",
		"uptime":            "1w2d3h4m5s",
		"version":           "7.11 (stable)",
		"board-name":        "RB4011iGS+",
		"architecture-name": "arm",
	})
	f.dev.SeedSingleton("/system/identity", map[string]string{"name": "core-router"})
	f.dev.Seed("/system/health",
		map[string]string{"name": "voltage", "value": "24.1"},
		map[string]string{"name": "temperature", "value": "41"},
	)
}

func hasPrefix(calls []string, prefix string) bool {
	for _, c := range calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
