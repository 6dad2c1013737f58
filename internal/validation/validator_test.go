package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/netbill-server/internal/models"
)

func TestValidRate(t *testing.T) {
	for _, s := range []string{"10M", "10M/2M", "512k/1M", "1.5M/1.5M", "100000", "1G/1G"} {
		assert.True(t, ValidRate(s), s)
	}
	for _, s := range []string{"", "fast", "10M/", "/2M", "10M/2M/1M", "10 M", "-1M"} {
		assert.False(t, ValidRate(s), s)
	}
}

func TestValidatePackage(t *testing.T) {
	v := NewValidator()

	ok := &models.Package{Name: "Home", Type: models.ServicePPPoE, Bandwidth: "10M/10M", Price: 15}
	assert.NoError(t, v.Validate(ok))

	priority := 9
	bad := &models.Package{Name: "", Type: "dialup", Bandwidth: "fast", Burst: "x", Priority: &priority, Price: -1}
	err := v.Validate(bad)
	require.Error(t, err)

	var ve Errors
	require.True(t, errors.As(err, &ve))

	fields := make(map[string]string)
	for _, fe := range ve {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "field is required", fields["name"])
	assert.Equal(t, "must be one of: pppoe hotspot", fields["type"])
	assert.Equal(t, "must be a rate such as 10M or 10M/2M", fields["bandwidth"])
	assert.Contains(t, fields, "burst")
	assert.Equal(t, "must be <= 8", fields["priority"])
	assert.Equal(t, "must be >= 0", fields["price"])
}

func TestValidateSecret(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&models.Secret{Username: "alice", Service: models.ServiceHotspot}))

	err := v.Validate(&models.Secret{Username: "bob", Service: models.ServicePPPoE, RemoteAddress: "10.0.0.300"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remoteAddress: must be a valid IP address")
}

func TestValidateRouterSettings(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&models.RouterSettings{Host: "192.168.88.1", Username: "admin"}))
	assert.NoError(t, v.Validate(&models.RouterSettings{Host: "core.example.net", Port: 8729, Username: "admin"}))

	err := v.Validate(&models.RouterSettings{Host: "bad host!", Port: 70000})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "host: must be a hostname or IP address")
	assert.Contains(t, msg, "port: must be <= 65535")
	assert.Contains(t, msg, "username: field is required")
}
