// =============================================================================
// X9 Cash Letter Encoder - Sealed Values
// =============================================================================
//
// MICR lines and sensitive dialect attributes are stored sealed with
// XChaCha20-Poly1305. A sealed value is the prefix "enc:" followed by the
// standard base64 encoding of nonce || ciphertext.
//
// KEY:
//   32 random bytes, base64 encoded, read from the X9_SEAL_KEY environment
//   variable (typically populated from .env).
//
// =============================================================================

package secure

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Prefix marks a sealed value.
const Prefix = "enc:"

// KeyEnv names the environment variable holding the sealing key.
const KeyEnv = "X9_SEAL_KEY"

// ErrNoKey is returned when a sealed value is met but no key is configured.
var ErrNoKey = errors.New("no sealing key configured")

// Sealer seals and opens values with one key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// FromEnv builds a Sealer from X9_SEAL_KEY. It returns a nil Sealer and no
// error when the variable is unset; Decrypt on a nil Sealer passes plain
// values through and rejects sealed ones.
func FromEnv() (*Sealer, error) {
	encoded := strings.TrimSpace(os.Getenv(KeyEnv))
	if encoded == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", KeyEnv, err)
	}
	return NewSealer(key)
}

// GenerateKey returns a fresh base64 encoded key.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// IsSealed reports whether v carries the sealed prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, Prefix)
}

// Seal encrypts plain and returns the prefixed value.
func (s *Sealer) Seal(plain string) (string, error) {
	if s == nil {
		return "", ErrNoKey
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed value. Values without the prefix are returned
// unchanged.
func (s *Sealer) Decrypt(v string) (string, error) {
	if !IsSealed(v) {
		return v, nil
	}
	if s == nil {
		return "", ErrNoKey
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(v, Prefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	if len(raw) < s.aead.NonceSize() {
		return "", errors.New("sealed value is truncated")
	}

	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to open sealed value: %w", err)
	}
	return string(plain), nil
}
