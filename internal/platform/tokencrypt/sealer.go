// Package tokencrypt seals refresh tokens at rest with NaCl secretbox.
package tokencrypt

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// sealedPrefix marks values produced by Seal; anything else is treated as plaintext.
const sealedPrefix = "sb1:"

const (
	keySize   = 32
	nonceSize = 24
)

var ErrInvalidCiphertext = errors.New("tokencrypt: invalid ciphertext")

// Sealer encrypts and decrypts token values. A Sealer without a key passes values through.
type Sealer struct {
	key     *[keySize]byte
	randSrc io.Reader
}

// NewSealer parses a hex encoded 32 byte key. An empty key yields a pass-through Sealer.
func NewSealer(hexKey string) (*Sealer, error) {
	if hexKey == "" {
		return &Sealer{randSrc: rand.Reader}, nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("tokencrypt: decoding key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("tokencrypt: key must be %d bytes, got %d", keySize, len(raw))
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &Sealer{key: &key, randSrc: rand.Reader}, nil
}

// Enabled reports whether values are encrypted.
func (s *Sealer) Enabled() bool {
	return s.key != nil
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	if s.key == nil {
		return plaintext, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.randSrc, nonce[:]); err != nil {
		return "", fmt.Errorf("tokencrypt: reading nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, s.key)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(box), nil
}

// Open reverses Seal. Unprefixed values are rows written before encryption was enabled
// and are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if s.key == nil {
		return "", fmt.Errorf("tokencrypt: value is sealed but no key is configured")
	}
	box, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidCiphertext
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, s.key)
	if !ok {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
