package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// AddressLen is the length in bytes of every account address.
const AddressLen = 32

// Address identifies an account: a wallet public key, a mint, a holding
// account or a program-derived account.
type Address [AddressLen]byte

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the lowercase hex encoding of the address.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool { return a == Address{} }

// AddressFromBytes converts a raw byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLen {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLen, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// ParseAddress decodes a hex-encoded address.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}
	return AddressFromBytes(b)
}

// MarshalText encodes the address as hex for JSON and text encoders.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText decodes a hex-encoded address.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// NamedAddress derives a well-known address from a stable name. Used for
// program identifiers that must be the same on every node.
func NamedAddress(name string) Address {
	return Address(sha256.Sum256([]byte(name)))
}

// Equal reports whether two addresses are the same account.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}
