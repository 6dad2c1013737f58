package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/netbill-server/internal/config"
)

func newManager() *JWTManager {
	return NewJWTManager(&config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour})
}

func TestGenerateAndValidate(t *testing.T) {
	m := newManager()

	token, err := m.GenerateToken("op-1", "alice", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.True(t, claims.IsAdmin())
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := newManager().GenerateToken("op-1", "alice", "operator")
	require.NoError(t, err)

	other := NewJWTManager(&config.JWTConfig{Secret: "other", AccessTokenTTL: time.Hour})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := newManager()
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.GenerateToken("op-1", "alice", "operator")
	require.NoError(t, err)

	_, err = newManager().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "mallory", Role: RoleAdmin})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newManager().ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &Claims{Username: "bob"})
	claims, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "bob", claims.Username)
	assert.False(t, claims.IsAdmin())
}
