package escrow

import (
	"swapescrow/crypto"
	"swapescrow/native/token"
)

// ProgramID is the identity under which offer records and vault authorities
// are derived.
var ProgramID = crypto.NamedAddress("swapescrow/escrow-program")

// RecordRent is the native deposit charged to the maker when an offer record
// is created and returned to the maker when the record is closed.
const RecordRent uint64 = 1_893_840

// recordSeedPrefix anchors record derivations so they cannot collide with
// derivations made by other programs sharing the primitive.
var recordSeedPrefix = []byte("escrow")

// Record is the persisted state of one outstanding offer: the maker
// deposited some amount of MintA into the vault and wants AmountWanted of
// MintB in return. The record exists exactly while the offer is open; both
// record and vault are destroyed by the first successful take or refund.
type Record struct {
	Maker        crypto.Address
	MintA        crypto.Address
	MintB        crypto.Address
	AmountWanted uint64
	Seed         uint64
	Bump         uint8
}

// Clone returns a copy the caller can mutate without affecting the stored
// instance.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

func recordSeeds(maker crypto.Address, seed uint64) [][]byte {
	return [][]byte{recordSeedPrefix, maker[:], token.Uint64LE(seed)}
}

// RecordAddress derives the canonical record address for a (maker, seed)
// pair. The pair is single-use: a maker opens another offer by choosing a
// fresh seed.
func RecordAddress(maker crypto.Address, seed uint64) (crypto.Address, uint8, error) {
	return crypto.FindProgramAddress(ProgramID, recordSeeds(maker, seed)...)
}

// VaultAddress derives the holding account that custodies the maker's
// deposit for the given record.
func VaultAddress(record, mintA crypto.Address) (crypto.Address, uint8, error) {
	return token.HoldingAddress(record, mintA)
}

// AccountInput is one caller-supplied account slot, with the role flags the
// host runtime attached to it.
type AccountInput struct {
	Address  crypto.Address
	Signer   bool
	Writable bool
}

// MakeAccounts is the ordered account set for opening an offer.
type MakeAccounts struct {
	Maker         AccountInput
	Record        AccountInput
	MintA         AccountInput
	MintB         AccountInput
	MakerHoldingA AccountInput
	Vault         AccountInput
}

// MakeParams is the decoded Make payload.
type MakeParams struct {
	Seed         uint64
	AmountWanted uint64
	AmountA      uint64
}

// TakeAccounts is the ordered account set for satisfying an offer.
type TakeAccounts struct {
	Taker         AccountInput
	Maker         AccountInput
	Record        AccountInput
	MintA         AccountInput
	MintB         AccountInput
	Vault         AccountInput
	TakerHoldingA AccountInput
	TakerHoldingB AccountInput
	MakerHoldingB AccountInput
}

// RefundAccounts is the ordered account set for cancelling an offer.
type RefundAccounts struct {
	Maker         AccountInput
	Record        AccountInput
	MintA         AccountInput
	Vault         AccountInput
	MakerHoldingA AccountInput
}
