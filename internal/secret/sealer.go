// Package secret seals small values (remote access keys) before they are
// written to the local cache.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	prefix    = "sealed:v1:"
)

// ErrOpen is returned when a sealed value cannot be decrypted with the key.
var ErrOpen = errors.New("secret: cannot open sealed value")

// Sealer encrypts and decrypts values with a fixed 32-byte key.
type Sealer struct {
	key [keySize]byte
}

// NewSealer builds a sealer from raw key bytes.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("secret: key must be %d bytes, got %d", keySize, len(key))
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// ParseKey decodes a base64 (std or url alphabet) encoded key.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(encoded); err == nil && len(b) == keySize {
			return b, nil
		}
	}
	return nil, fmt.Errorf("secret: key is not %d base64-encoded bytes", keySize)
}

// LoadOrCreateKeyFile reads a base64 key from path, creating the file with a
// fresh random key (mode 0600) when it does not exist.
func LoadOrCreateKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return ParseKey(string(data))
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create key dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext into a printable token.
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return prefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as-is so
// credentials written before sealing was enabled stay readable.
func (s *Sealer) Open(token string) (string, error) {
	if !IsSealed(token) {
		return token, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, prefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrOpen
	}
	return string(plain), nil
}

// IsSealed reports whether token was produced by Seal.
func IsSealed(token string) bool {
	return strings.HasPrefix(token, prefix)
}
