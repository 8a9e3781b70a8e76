package token

import (
	"fmt"

	"swapescrow/crypto"
)

// State is the narrow view of the state manager the ledger needs. All
// methods operate on the caller's (possibly buffered) state view, so a
// failed transition discards every ledger effect along with it.
type State interface {
	MintGet(addr crypto.Address) (*Mint, bool, error)
	MintPut(*Mint) error
	HoldingGet(addr crypto.Address) (*Holding, bool, error)
	HoldingPut(addr crypto.Address, h *Holding) error
	HoldingDelete(addr crypto.Address) error
	NativeBalance(addr crypto.Address) (uint64, error)
	SetNativeBalance(addr crypto.Address, amount uint64) error
}

// Ledger implements the fungible-asset primitive: mints, holding accounts,
// transfers and closes. It keeps no state of its own; every call rehydrates
// from the supplied state view.
type Ledger struct{}

// NewLedger returns a stateless ledger handle.
func NewLedger() *Ledger { return &Ledger{} }

// CreateMint registers a new asset type at the given address, charging
// MintRent to the payer.
func (l *Ledger) CreateMint(st State, payer Authority, mint crypto.Address, authority crypto.Address, decimals uint8) error {
	if st == nil {
		return ErrNilState
	}
	if _, ok, err := st.MintGet(mint); err != nil {
		return err
	} else if ok {
		return ErrMintExists
	}
	if err := l.debitNative(st, payer.Address(), MintRent); err != nil {
		return err
	}
	return st.MintPut(&Mint{Address: mint, Authority: authority, Decimals: decimals})
}

// MintTo issues new supply into dest. Only the mint's recorded authority may
// issue.
func (l *Ledger) MintTo(st State, auth Authority, mint crypto.Address, dest crypto.Address, amount uint64) error {
	if st == nil {
		return ErrNilState
	}
	m, ok, err := st.MintGet(mint)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMintNotFound
	}
	if auth.Address() != m.Authority {
		return fmt.Errorf("%w: mint authority required", ErrUnauthorized)
	}
	h, ok, err := st.HoldingGet(dest)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHoldingNotFound
	}
	if h.Mint != mint {
		return ErrMintMismatch
	}
	h = h.Clone()
	h.Amount += amount
	if err := st.HoldingPut(dest, h); err != nil {
		return err
	}
	m = &Mint{Address: m.Address, Authority: m.Authority, Supply: m.Supply + amount, Decimals: m.Decimals}
	return st.MintPut(m)
}

// CreateHolding creates owner's holding account for mint at its derived
// address, charging HoldingRent to the payer. The returned address is the
// canonical derivation; callers never choose it.
func (l *Ledger) CreateHolding(st State, payer Authority, owner, mint crypto.Address) (crypto.Address, error) {
	if st == nil {
		return crypto.Address{}, ErrNilState
	}
	if _, ok, err := st.MintGet(mint); err != nil {
		return crypto.Address{}, err
	} else if !ok {
		return crypto.Address{}, ErrMintNotFound
	}
	addr, bump, err := HoldingAddress(owner, mint)
	if err != nil {
		return crypto.Address{}, err
	}
	if _, ok, err := st.HoldingGet(addr); err != nil {
		return crypto.Address{}, err
	} else if ok {
		return crypto.Address{}, ErrHoldingExists
	}
	if err := l.debitNative(st, payer.Address(), HoldingRent); err != nil {
		return crypto.Address{}, err
	}
	h := &Holding{Mint: mint, Owner: owner, Bump: bump}
	if err := st.HoldingPut(addr, h); err != nil {
		return crypto.Address{}, err
	}
	return addr, nil
}

// EnsureHolding returns the address of owner's holding for mint, creating it
// at the payer's expense when absent.
func (l *Ledger) EnsureHolding(st State, payer Authority, owner, mint crypto.Address) (crypto.Address, error) {
	addr, _, err := HoldingAddress(owner, mint)
	if err != nil {
		return crypto.Address{}, err
	}
	if st == nil {
		return crypto.Address{}, ErrNilState
	}
	h, ok, err := st.HoldingGet(addr)
	if err != nil {
		return crypto.Address{}, err
	}
	if ok {
		if h.Mint != mint {
			return crypto.Address{}, ErrMintMismatch
		}
		return addr, nil
	}
	return l.CreateHolding(st, payer, owner, mint)
}

// Transfer moves amount between two holding accounts of the same mint. The
// authority must be the source account's owner.
func (l *Ledger) Transfer(st State, auth Authority, from, to crypto.Address, amount uint64) error {
	if st == nil {
		return ErrNilState
	}
	src, ok, err := st.HoldingGet(from)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: source %s", ErrHoldingNotFound, from)
	}
	dst, ok, err := st.HoldingGet(to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: destination %s", ErrHoldingNotFound, to)
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if auth.Address() != src.Owner {
		return ErrUnauthorized
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, src.Amount, amount)
	}
	if from == to || amount == 0 {
		return nil
	}
	src = src.Clone()
	dst = dst.Clone()
	src.Amount -= amount
	dst.Amount += amount
	if err := st.HoldingPut(from, src); err != nil {
		return err
	}
	return st.HoldingPut(to, dst)
}

// CloseHolding removes an empty holding account and returns its rent deposit
// to rentRecipient. The authority must be the account's owner.
func (l *Ledger) CloseHolding(st State, auth Authority, addr crypto.Address, rentRecipient crypto.Address) error {
	if st == nil {
		return ErrNilState
	}
	h, ok, err := st.HoldingGet(addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHoldingNotFound
	}
	if auth.Address() != h.Owner {
		return ErrUnauthorized
	}
	if h.Amount != 0 {
		return ErrHoldingNotEmpty
	}
	if err := st.HoldingDelete(addr); err != nil {
		return err
	}
	return l.creditNative(st, rentRecipient, HoldingRent)
}

// Balance returns the amount held in a holding account.
func (l *Ledger) Balance(st State, addr crypto.Address) (uint64, error) {
	if st == nil {
		return 0, ErrNilState
	}
	h, ok, err := st.HoldingGet(addr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrHoldingNotFound
	}
	return h.Amount, nil
}

// CreditNative adds native units to an address. Used by genesis and the dev
// faucet; the exchange transitions themselves only move native units as rent.
func (l *Ledger) CreditNative(st State, addr crypto.Address, amount uint64) error {
	if st == nil {
		return ErrNilState
	}
	return l.creditNative(st, addr, amount)
}

func (l *Ledger) creditNative(st State, addr crypto.Address, amount uint64) error {
	bal, err := st.NativeBalance(addr)
	if err != nil {
		return err
	}
	return st.SetNativeBalance(addr, bal+amount)
}

func (l *Ledger) debitNative(st State, addr crypto.Address, amount uint64) error {
	bal, err := st.NativeBalance(addr)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: native balance %d below rent %d", ErrInsufficientFunds, bal, amount)
	}
	return st.SetNativeBalance(addr, bal-amount)
}
