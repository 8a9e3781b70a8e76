package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// PrivateKey wraps an ed25519 signing key for a wallet account.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// GeneratePrivateKey creates a new random wallet key.
func GeneratePrivateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PubKey returns the address form of the public key.
func (p *PrivateKey) PubKey() Address {
	var a Address
	copy(a[:], p.key.Public().(ed25519.PublicKey))
	return a
}

// Sign signs the message with the wallet key.
func (p *PrivateKey) Sign(msg []byte) []byte {
	return ed25519.Sign(p.key, msg)
}

// Verify checks an ed25519 signature made by the holder of addr.
func Verify(addr Address, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(addr[:]), msg, sig)
}
