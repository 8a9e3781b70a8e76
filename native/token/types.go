package token

import (
	"encoding/binary"

	"swapescrow/crypto"
)

// ProgramID is the well-known identity that owns every holding account.
var ProgramID = crypto.NamedAddress("swapescrow/token-program")

// Rent deposits, in native units, charged when a state account is created
// and returned to the designated recipient when it is closed.
const (
	MintRent    uint64 = 1_461_600
	HoldingRent uint64 = 2_039_280
)

// Mint describes one fungible asset type.
type Mint struct {
	Address   crypto.Address
	Authority crypto.Address
	Supply    uint64
	Decimals  uint8
}

// Holding is a balance of exactly one mint owned by exactly one identity.
// Its address is program-derived from (owner, mint), so a caller-supplied
// holding can always be re-derived instead of trusted.
type Holding struct {
	Mint   crypto.Address
	Owner  crypto.Address
	Amount uint64
	Bump   uint8
}

// Clone returns a copy the caller can mutate safely.
func (h *Holding) Clone() *Holding {
	if h == nil {
		return nil
	}
	clone := *h
	return &clone
}

// HoldingAddress derives the canonical address of owner's holding account
// for mint.
func HoldingAddress(owner, mint crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress(ProgramID, owner[:], mint[:])
}

// Uint64LE renders an amount or seed in the fixed little-endian layout used
// for derivation seeds and instruction payloads.
func Uint64LE(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
