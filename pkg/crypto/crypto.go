package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// sealedPrefix marks values produced by Sealer.Seal
const sealedPrefix = "enc:v1:"

// ErrCiphertextTooShort is returned when input is shorter than the nonce
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// GenerateRandomBytes generates random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// GenerateRandomString generates a random URL safe string
func GenerateRandomString(n int) (string, error) {
	bytes, err := GenerateRandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// DeriveKey derives a 32 byte AES key from a configured secret using HKDF-SHA256
func DeriveKey(secret, info string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("empty secret")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Encrypt encrypts data using AES-GCM
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return ciphertext, nil
}

// Decrypt decrypts data using AES-GCM
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}

	return plaintext, nil
}

// Sealer encrypts short strings such as stored router passwords. A nil
// Sealer stores values as they are.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from secret
func NewSealer(secret string) (*Sealer, error) {
	key, err := DeriveKey(secret, "netbill credentials")
	if err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext into a prefixed base64 string
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil || plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}
	ct, err := Encrypt(s.key, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

// Open reverses Seal. Values without the prefix are returned unchanged so
// rows written before a key was configured stay readable.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if s == nil {
		return "", errors.New("open: value is sealed but no key is configured")
	}
	ct, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	pt, err := Decrypt(s.key, ct)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(pt), nil
}

// IsSealed reports whether value was produced by Seal
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
