package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	key, err := DeriveKey("top-secret", "test")
	require.NoError(t, err)
	require.Len(t, key, 32)

	ct, err := Encrypt(key, []byte("hello"))
	require.NoError(t, err)

	pt, err := Decrypt(key, ct)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))

	_, err = Decrypt(key, ct[:4])
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	other, err := DeriveKey("other", "test")
	require.NoError(t, err)
	_, err = Decrypt(other, ct)
	assert.Error(t, err)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a, err := DeriveKey("s", "info")
	require.NoError(t, err)
	b, err := DeriveKey("s", "info")
	require.NoError(t, err)
	c, err := DeriveKey("s", "other")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = DeriveKey("", "info")
	assert.Error(t, err)
}

func TestSealer(t *testing.T) {
	s, err := NewSealer("key")
	require.NoError(t, err)

	sealed, err := s.Seal("router-pass")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "router-pass")

	again, err := s.Seal(sealed)
	require.NoError(t, err)
	assert.Equal(t, sealed, again, "sealing twice is a no-op")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "router-pass", opened)

	plain, err := s.Open("legacy")
	require.NoError(t, err)
	assert.Equal(t, "legacy", plain)

	empty, err := s.Seal("")
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestNilSealer(t *testing.T) {
	var s *Sealer

	v, err := s.Seal("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	keyed, err := NewSealer("key")
	require.NoError(t, err)
	sealed, err := keyed.Seal("x")
	require.NoError(t, err)

	_, err = s.Open(sealed)
	assert.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(12)
	require.NoError(t, err)
	b, err := GenerateRandomString(12)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
