// Package sealer encrypts ledger entry metadata at rest.
//
// Sealed values are XChaCha20-Poly1305 ciphertexts prefixed with their random
// nonce. Each value is stored next to the id of the key that sealed it so keys
// can be rotated by re-sealing in batches. The key id "" denotes an unsealed
// value and is only produced when no key is configured.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer errors.
var (
	ErrUnknownKey = errors.New("unknown sealing key id")
	ErrMalformed  = errors.New("sealed value is malformed")
)

// Sealer seals with the active key and opens with any known key.
type Sealer struct {
	active string
	aeads  map[string]cipher.AEAD
}

// New creates a Sealer. keys maps key id to a 32-byte key. With no keys the
// Sealer passes values through unsealed under key id "".
func New(activeKeyID string, keys map[string][]byte) (*Sealer, error) {
	s := &Sealer{aeads: make(map[string]cipher.AEAD, len(keys))}

	for id, key := range keys {
		if id == "" {
			return nil, errors.New("sealing key id must not be empty")
		}
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("invalid sealing key %q: %w", id, err)
		}
		s.aeads[id] = aead
	}

	if len(keys) > 0 {
		if _, ok := s.aeads[activeKeyID]; !ok {
			return nil, fmt.Errorf("%w: active key %q", ErrUnknownKey, activeKeyID)
		}
		s.active = activeKeyID
	}

	return s, nil
}

// ActiveKeyID returns the id new values are sealed with.
func (s *Sealer) ActiveKeyID() string {
	return s.active
}

// Seal encrypts plaintext with the active key.
func (s *Sealer) Seal(plaintext []byte) ([]byte, string, error) {
	if s.active == "" {
		return plaintext, "", nil
	}

	aead := s.aeads[s.active]
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// The key id is bound as associated data so a value cannot be relabelled.
	return aead.Seal(nonce, nonce, plaintext, []byte(s.active)), s.active, nil
}

// Open decrypts a value sealed under keyID.
func (s *Sealer) Open(keyID string, sealed []byte) ([]byte, error) {
	if keyID == "" {
		return sealed, nil
	}

	aead, ok := s.aeads[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, keyID)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformed
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(keyID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return plaintext, nil
}

// Reseal opens a value sealed under keyID and seals it with the active key.
func (s *Sealer) Reseal(keyID string, sealed []byte) ([]byte, string, error) {
	plaintext, err := s.Open(keyID, sealed)
	if err != nil {
		return nil, "", err
	}
	return s.Seal(plaintext)
}
