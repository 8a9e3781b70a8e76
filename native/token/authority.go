package token

import "swapescrow/crypto"

// Authority is the proof accepted by the ledger for debiting a holding
// account. Values are only obtainable through SignerAuthority, for accounts
// whose signature the dispatcher verified, or DerivedAuthority, for
// program-derived accounts whose seeds re-derive to the claimed address.
// Transfer and CloseHolding reject any authority whose address is not the
// source account's owner.
type Authority struct {
	addr crypto.Address
}

// Address returns the identity this authority acts as.
func (a Authority) Address() crypto.Address { return a.addr }

// SignerAuthority attests that the runtime verified a signature from addr.
// The caller is responsible for having checked the signer flag first.
func SignerAuthority(addr crypto.Address) Authority {
	return Authority{addr: addr}
}

// DerivedAuthority proves control of a program-derived address by replaying
// its derivation. It fails with ErrBadDerivation when (program, seeds, bump)
// does not produce addr, so a forged bump or substituted account can never
// yield a usable authority.
func DerivedAuthority(program, addr crypto.Address, bump uint8, seeds ...[]byte) (Authority, error) {
	if !crypto.VerifyProgramAddress(addr, program, bump, seeds...) {
		return Authority{}, ErrBadDerivation
	}
	return Authority{addr: addr}, nil
}
