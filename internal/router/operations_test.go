package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/netbill-server/internal/models"
)

func intPtr(v int) *int { return &v }

func TestGetSystemResource(t *testing.T) {
	f := newFixture(t)
	f.seedSystem()

	for name, client := range f.clients() {
		t.Run(name, func(t *testing.T) {
			res, err := client.GetSystemResource(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 12, res.CPULoad)
			assert.Equal(t, 75, res.MemoryUsagePercent)
			assert.EqualValues(t, 788645, res.UptimeSeconds)
			assert.Equal(t, "9d 3h 4m", res.Uptime)
			assert.Equal(t, "7.11 (stable)", res.Version)
			assert.Equal(t, "RB4011iGS+", res.BoardName)
			assert.Equal(t, "core-router", res.Identity)
			require.NotNil(t, res.Temperature)
			assert.Equal(t, 41.0, *res.Temperature)
		})
	}
}

func TestGetSystemResourceWithoutHealth(t *testing.T) {
	f := newFixture(t)
	f.dev.SeedSingleton("/system/resource", map[string]string{"total-memory": "100", "free-memory": "100"})

	res, err := f.client().GetSystemResource(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Temperature)
	assert.Equal(t, "Unknown", res.Identity)
	assert.Equal(t, 0, res.MemoryUsagePercent)
}

func TestListActiveSessions(t *testing.T) {
	f := newFixture(t)
	f.dev.Seed("/ppp/active", map[string]string{
		"name": "alice", "service": "pppoe", "caller-id": "AA:BB:CC:00:00:01",
		"address": "10.10.0.2", "uptime": "1h2m",
	})
	f.dev.Seed("/ip/hotspot/active", map[string]string{
		"user": "carol", "mac-address": "AA:BB:CC:00:00:02", "address": "10.20.0.9",
		"uptime": "5m", "bytes-in": "100", "bytes-out": "200",
	})

	for name, client := range f.clients() {
		t.Run(name, func(t *testing.T) {
			sessions, err := client.ListActiveSessions(context.Background())
			require.NoError(t, err)
			require.Len(t, sessions, 2)

			alice := sessions[0]
			assert.Equal(t, "alice", alice.Username)
			assert.Equal(t, models.ServicePPPoE, alice.Type)
			assert.Equal(t, "AA:BB:CC:00:00:01", alice.MACAddress)
			assert.EqualValues(t, 3720, alice.UptimeSeconds)
			assert.Nil(t, alice.RxRate)
			assert.Nil(t, alice.TxRate)

			carol := sessions[1]
			assert.Equal(t, "carol", carol.Username)
			assert.Equal(t, models.ServiceHotspot, carol.Type)
			assert.EqualValues(t, 100, carol.RxBytes)
			assert.EqualValues(t, 200, carol.TxBytes)
		})
	}
}

func TestListActiveSessionsWithoutHotspot(t *testing.T) {
	f := newFixture(t)
	f.dev.Seed("/ppp/active", map[string]string{"name": "alice", "service": "pppoe", "address": "10.10.0.2"})
	f.dev.Reject("/ip/hotspot/active", "no such command prefix")

	for name, client := range map[string]*Client{
		"fallback": f.client(),
		"binary":   f.client(f.binaryTransport()),
	} {
		t.Run(name, func(t *testing.T) {
			sessions, err := client.ListActiveSessions(context.Background())
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			assert.Equal(t, "alice", sessions[0].Username)
			assert.Equal(t, models.ServicePPPoE, sessions[0].Type)
		})
	}

	// REST alone reports the rejected menu as a failed exchange
	_, err := f.client(f.restTransport()).ListActiveSessions(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindConnection, Kind(err))
}

func TestGetInterfaces(t *testing.T) {
	f := newFixture(t)
	f.dev.Seed("/interface",
		map[string]string{"name": "bridge1", "type": "bridge", "running": "true", "rx-byte": "10", "tx-byte": "20"},
		map[string]string{"name": "ether1-wan", "type": "ether", "running": "true", "disabled": "false", "rx-byte": "625000", "tx-byte": "1000"},
	)

	for name, client := range f.clients() {
		t.Run(name, func(t *testing.T) {
			ifaces, err := client.GetInterfaces(context.Background())
			require.NoError(t, err)
			require.Len(t, ifaces, 2)
			assert.True(t, ifaces[0].Running)
			assert.EqualValues(t, 625000, ifaces[1].RxBytes)

			wan := client.SelectWAN(ifaces)
			require.NotNil(t, wan)
			assert.Equal(t, "ether1-wan", wan.Name)
		})
	}
}

func TestCreateSecretWithQueue(t *testing.T) {
	for _, transport := range []string{"rest", "binary"} {
		t.Run(transport, func(t *testing.T) {
			f := newFixture(t)
			client := f.clients()[transport]

			pkg := &models.Package{Name: "Home", Type: models.ServicePPPoE, Bandwidth: "10M/2M"}
			result, err := client.CreateSecret(context.Background(), SecretSpec{
				Username: "alice",
				Password: "pw",
				Service:  models.ServicePPPoE,
				Comment:  "sub:42",
			}, pkg)
			require.NoError(t, err)
			assert.NotEmpty(t, result.SecretID)
			assert.NotEmpty(t, result.QueueID)

			secrets := f.dev.Rows("/ppp/secret")
			require.Len(t, secrets, 1)
			assert.Equal(t, "alice", secrets[0]["name"])
			assert.Equal(t, "pppoe", secrets[0]["service"])
			assert.Equal(t, "default", secrets[0]["profile"])
			assert.Equal(t, "no", secrets[0]["disabled"])
			assert.Equal(t, "sub:42", secrets[0]["comment"])

			queues := f.dev.Rows("/queue/simple")
			require.Len(t, queues, 1)
			assert.Equal(t, "alice-queue", queues[0]["name"])
			assert.Equal(t, "alice", queues[0]["target"])
			assert.Equal(t, "10M/2M", queues[0]["max-limit"])
			assert.Equal(t, "10M/2M", queues[0]["burst-limit"])
			assert.Equal(t, "8", queues[0]["priority"])
		})
	}
}

func TestCreateHotspotSecretWithoutPackage(t *testing.T) {
	f := newFixture(t)

	result, err := f.client().CreateSecret(context.Background(), SecretSpec{
		Username: "carol",
		Password: "pw",
		Service:  models.ServiceHotspot,
		Profile:  "1h",
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, result.Queue)

	users := f.dev.Rows("/ip/hotspot/user")
	require.Len(t, users, 1)
	assert.Equal(t, "1h", users[0]["profile"])
	_, hasService := users[0]["service"]
	assert.False(t, hasService)
	assert.Empty(t, f.dev.Rows("/queue/simple"))
}

func TestCreateSecretCustomBurstAndPriority(t *testing.T) {
	f := newFixture(t)
	pkg := &models.Package{Name: "Pro", Type: models.ServicePPPoE, Bandwidth: "20M/5M", Burst: "40M/10M", Priority: intPtr(2)}

	_, err := f.client().CreateSecret(context.Background(), SecretSpec{Username: "dave", Service: models.ServicePPPoE}, pkg)
	require.NoError(t, err)

	queues := f.dev.Rows("/queue/simple")
	require.Len(t, queues, 1)
	assert.Equal(t, "40M/10M", queues[0]["burst-limit"])
	assert.Equal(t, "2", queues[0]["priority"])
}

func TestCreateSecretRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.client().CreateSecret(context.Background(), SecretSpec{Service: models.ServicePPPoE}, nil)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.client().CreateSecret(context.Background(), SecretSpec{Username: "x", Service: "l2tp"}, nil)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Empty(t, f.dev.Calls())
}

func TestToggleUpdateDeleteSecret(t *testing.T) {
	for _, transport := range []string{"rest", "binary"} {
		t.Run(transport, func(t *testing.T) {
			f := newFixture(t)
			client := f.clients()[transport]
			ctx := context.Background()

			f.dev.Seed("/ppp/secret",
				map[string]string{"name": "bob", "service": "pppoe", "profile": "default", "disabled": "no"},
				map[string]string{"name": "alice", "service": "pppoe", "profile": "default", "disabled": "no"},
			)
			f.dev.Seed("/queue/simple", map[string]string{"name": "alice-queue", "target": "alice"})

			require.NoError(t, client.ToggleSecret(ctx, "alice", models.ServicePPPoE, false))
			assert.Equal(t, "yes", f.dev.Rows("/ppp/secret")[1]["disabled"])
			assert.Equal(t, "no", f.dev.Rows("/ppp/secret")[0]["disabled"])

			require.NoError(t, client.ToggleSecret(ctx, "alice", models.ServicePPPoE, true))
			assert.Equal(t, "no", f.dev.Rows("/ppp/secret")[1]["disabled"])

			require.NoError(t, client.UpdateSecret(ctx, SecretSpec{
				Username: "alice", Password: "new", Service: models.ServicePPPoE, Profile: "20M",
			}))
			assert.Equal(t, "20M", f.dev.Rows("/ppp/secret")[1]["profile"])
			assert.Equal(t, "new", f.dev.Rows("/ppp/secret")[1]["password"])

			err := client.UpdateSecret(ctx, SecretSpec{Username: "nobody", Service: models.ServicePPPoE})
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Len(t, f.dev.Rows("/ppp/secret"), 2, "update never inserts")

			require.NoError(t, client.DeleteSecret(ctx, "alice", models.ServicePPPoE))
			remaining := f.dev.Rows("/ppp/secret")
			require.Len(t, remaining, 1)
			assert.Equal(t, "bob", remaining[0]["name"])
			assert.Empty(t, f.dev.Rows("/queue/simple"))

			require.NoError(t, client.DeleteSecret(ctx, "bob", models.ServicePPPoE), "missing queue is fine")
			assert.ErrorIs(t, client.DeleteSecret(ctx, "bob", models.ServicePPPoE), ErrNotFound)
		})
	}
}

func TestUpdateSecretRename(t *testing.T) {
	for _, transport := range []string{"rest", "binary"} {
		t.Run(transport, func(t *testing.T) {
			f := newFixture(t)
			client := f.clients()[transport]
			ctx := context.Background()

			f.dev.Seed("/ppp/secret", map[string]string{"name": "alice", "service": "pppoe", "profile": "default"})
			f.dev.Seed("/queue/simple", map[string]string{"name": "alice-queue", "target": "alice"})

			require.NoError(t, client.UpdateSecret(ctx, SecretSpec{
				Username: "alicia", CurrentName: "alice", Service: models.ServicePPPoE, Profile: "10M",
			}))

			secrets := f.dev.Rows("/ppp/secret")
			require.Len(t, secrets, 1)
			assert.Equal(t, "alicia", secrets[0]["name"])
			assert.Equal(t, "10M", secrets[0]["profile"])

			queues := f.dev.Rows("/queue/simple")
			require.Len(t, queues, 1)
			assert.Equal(t, "alicia-queue", queues[0]["name"])
			assert.Equal(t, "alicia", queues[0]["target"])

			f.dev.Seed("/ppp/secret", map[string]string{"name": "carol", "service": "pppoe"})
			require.NoError(t, client.UpdateSecret(ctx, SecretSpec{
				Username: "carla", CurrentName: "carol", Service: models.ServicePPPoE,
			}), "rename without a queue")
			assert.Equal(t, "carla", f.dev.Rows("/ppp/secret")[1]["name"])
			assert.Len(t, f.dev.Rows("/queue/simple"), 1)
		})
	}
}

func TestDisconnectActiveSession(t *testing.T) {
	f := newFixture(t)
	f.dev.Seed("/ip/hotspot/active", map[string]string{"user": "carol", "address": "10.20.0.9"})
	client := f.client()

	require.NoError(t, client.DisconnectActiveSession(context.Background(), "carol", models.ServiceHotspot))
	assert.Empty(t, f.dev.Rows("/ip/hotspot/active"))

	err := client.DisconnectActiveSession(context.Background(), "carol", models.ServiceHotspot)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSecrets(t *testing.T) {
	f := newFixture(t)
	f.dev.Seed("/ip/hotspot/user",
		map[string]string{"name": "h1", "password": "p1", "profile": "default", "disabled": "true"},
		map[string]string{"name": "h2", "password": "p2", "profile": "1h"},
	)

	for name, client := range f.clients() {
		t.Run(name, func(t *testing.T) {
			secrets, err := client.ListSecrets(context.Background(), models.ServiceHotspot)
			require.NoError(t, err)
			require.Len(t, secrets, 2)
			assert.Equal(t, "h1", secrets[0].Username)
			assert.Equal(t, "p1", secrets[0].Password)
			assert.True(t, secrets[0].Disabled)
			assert.Equal(t, models.ServiceHotspot, secrets[1].Service)
		})
	}
}

func TestGetUserDetail(t *testing.T) {
	f := newFixture(t)
	f.dev.Seed("/ppp/active", map[string]string{
		"name": "alice", "address": "10.10.0.2", "caller-id": "AA:BB", "uptime": "2d3h",
		"rx-byte": "1536", "tx-byte": "0", "rx-packet": "1234567",
	})
	f.dev.Seed("/ppp/secret", map[string]string{"name": "alice", "profile": "10M", "service": "pppoe"})

	detail, err := f.client().GetUserDetail(context.Background(), "alice", models.ServicePPPoE)
	require.NoError(t, err)
	assert.Equal(t, "alice", detail.Username)
	assert.Equal(t, "10.10.0.2", detail.Session.Address)
	assert.Equal(t, "AA:BB", detail.Session.MACAddress)
	assert.Equal(t, "2d 3h 0m", detail.Session.Uptime)
	assert.Equal(t, "N/A", detail.Session.Encoding)
	assert.Equal(t, "1.5 KB", detail.Bandwidth.RxBytes)
	assert.Equal(t, "0 B", detail.Bandwidth.TxBytes)
	assert.Equal(t, "1,234,567", detail.Bandwidth.RxPackets)
	require.NotNil(t, detail.Profile)
	assert.Equal(t, "10M", detail.Profile.Profile)
	assert.Equal(t, "No comment", detail.Profile.Comment)

	_, err = f.client().GetUserDetail(context.Background(), "bob", models.ServicePPPoE)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncPackage(t *testing.T) {
	f := newFixture(t)
	client := f.client()
	pkg := &models.Package{Name: "Home Plus", Type: models.ServicePPPoE, Bandwidth: "10M/2M"}

	result, err := client.SyncPackage(context.Background(), pkg)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "profile-home-plus", result.Profile)

	pkg.Bandwidth = "15M/3M"
	result, err = client.SyncPackage(context.Background(), pkg)
	require.NoError(t, err)
	assert.False(t, result.Created)

	profiles := f.dev.Rows("/ppp/profile")
	require.Len(t, profiles, 1)
	assert.Equal(t, "15M/3M", profiles[0]["rate-limit"])
}
