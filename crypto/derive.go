package crypto

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

// derivedMarker domain-separates program-derived addresses from hashes of
// other material.
var derivedMarker = []byte("SwapEscrowDerivedAddress")

var (
	// ErrOnCurve is returned when a candidate derived address is a valid
	// ed25519 public key and therefore could have a matching private key.
	ErrOnCurve = errors.New("derived address is on the ed25519 curve")
	// ErrNoDerivedAddress is returned when no bump in [0,255] produces a
	// usable derived address for the given seeds.
	ErrNoDerivedAddress = errors.New("no derived address found for seeds")
)

// CreateProgramAddress deterministically derives an address from the program
// id, the seed components and an explicit bump. The derivation fails if the
// result lies on the ed25519 curve: a derived address must never be
// spendable by a private key.
func CreateProgramAddress(program Address, bump uint8, seeds ...[]byte) (Address, error) {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write(program[:])
	h.Write(derivedMarker)

	var addr Address
	copy(addr[:], h.Sum(nil))
	if isOnCurve(addr) {
		return Address{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 downward for the first bump
// whose derived address is off the curve, returning the address and the
// bump. The bump may be cached by callers and later replayed through
// CreateProgramAddress to re-authenticate the address.
func FindProgramAddress(program Address, seeds ...[]byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateProgramAddress(program, uint8(bump), seeds...)
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return Address{}, 0, ErrNoDerivedAddress
}

// VerifyProgramAddress reports whether addr is exactly the address derived
// from (program, seeds, bump). Callers must use this rather than trusting an
// account's self-declared fields.
func VerifyProgramAddress(addr Address, program Address, bump uint8, seeds ...[]byte) bool {
	derived, err := CreateProgramAddress(program, bump, seeds...)
	if err != nil {
		return false
	}
	return derived == addr
}

func isOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
