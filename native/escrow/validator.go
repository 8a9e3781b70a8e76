package escrow

import (
	"fmt"

	"swapescrow/crypto"
	"swapescrow/native/token"
)

// The validator re-derives every expected address and checks owner and mint
// bindings before a transition is allowed to touch balances. Nothing a
// caller supplies is trusted: a record's own address is confirmed against
// its stored fields on every transition, not only at creation.

func checkSigner(slot AccountInput, name string) error {
	if !slot.Signer {
		return fmt.Errorf("%w: %s signature required", ErrUnauthorized, name)
	}
	return nil
}

func checkMint(st State, slot AccountInput, name string) error {
	_, ok, err := st.MintGet(slot.Address)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not a known mint", ErrInvalidAccount, name)
	}
	return nil
}

// checkHolding confirms that the supplied slot is exactly the derived
// holding address for (owner, mint) and, when present, that the stored
// account declares the same owner and mint.
func checkHolding(st State, slot AccountInput, owner, mint crypto.Address, mustExist bool, name string) error {
	derived, _, err := token.HoldingAddress(owner, mint)
	if err != nil {
		return err
	}
	if slot.Address != derived {
		return fmt.Errorf("%w: %s does not match its derivation", ErrInvalidAccount, name)
	}
	h, ok, err := st.HoldingGet(slot.Address)
	if err != nil {
		return err
	}
	if !ok {
		if mustExist {
			return fmt.Errorf("%w: %s does not exist", ErrInvalidAccount, name)
		}
		return nil
	}
	if h.Owner != owner || h.Mint != mint {
		return fmt.Errorf("%w: %s has the wrong owner or mint", ErrInvalidAccount, name)
	}
	return nil
}

// loadBoundRecord fetches the record at the supplied slot and proves the
// binding between the slot address and the record's own (maker, seed)
// derivation. A record copied under a different address, or an address
// whose stored fields derive elsewhere, is rejected.
func loadBoundRecord(st State, slot AccountInput) (*Record, error) {
	rec, ok, err := st.RecordGet(slot.Address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: record does not exist", ErrInvalidAccount)
	}
	if !crypto.VerifyProgramAddress(slot.Address, ProgramID, rec.Bump, recordSeeds(rec.Maker, rec.Seed)...) {
		return nil, fmt.Errorf("%w: record address does not match its derivation", ErrInvalidAccount)
	}
	return rec, nil
}

func validateMake(st State, accs MakeAccounts, p MakeParams) (uint8, error) {
	if err := checkSigner(accs.Maker, "maker"); err != nil {
		return 0, err
	}
	if p.AmountA == 0 || p.AmountWanted == 0 {
		return 0, ErrInvalidAmount
	}
	if err := checkMint(st, accs.MintA, "mint A"); err != nil {
		return 0, err
	}
	if err := checkMint(st, accs.MintB, "mint B"); err != nil {
		return 0, err
	}

	recordAddr, bump, err := RecordAddress(accs.Maker.Address, p.Seed)
	if err != nil {
		return 0, err
	}
	if accs.Record.Address != recordAddr {
		return 0, fmt.Errorf("%w: record does not match its derivation", ErrInvalidAccount)
	}
	if _, ok, err := st.RecordGet(recordAddr); err != nil {
		return 0, err
	} else if ok {
		return 0, fmt.Errorf("%w: record already exists for this maker and seed", ErrInvalidAccount)
	}

	vaultAddr, _, err := VaultAddress(recordAddr, accs.MintA.Address)
	if err != nil {
		return 0, err
	}
	if accs.Vault.Address != vaultAddr {
		return 0, fmt.Errorf("%w: vault does not match its derivation", ErrInvalidAccount)
	}
	if _, ok, err := st.HoldingGet(vaultAddr); err != nil {
		return 0, err
	} else if ok {
		return 0, fmt.Errorf("%w: vault already exists", ErrInvalidAccount)
	}

	if err := checkHolding(st, accs.MakerHoldingA, accs.Maker.Address, accs.MintA.Address, true, "maker holding for mint A"); err != nil {
		return 0, err
	}
	return bump, nil
}

func validateTake(st State, accs TakeAccounts) (*Record, error) {
	if err := checkSigner(accs.Taker, "taker"); err != nil {
		return nil, err
	}
	rec, err := loadBoundRecord(st, accs.Record)
	if err != nil {
		return nil, err
	}
	if accs.Maker.Address != rec.Maker {
		return nil, fmt.Errorf("%w: maker does not match the record", ErrInvalidAccount)
	}
	if accs.MintA.Address != rec.MintA || accs.MintB.Address != rec.MintB {
		return nil, fmt.Errorf("%w: mint does not match the record", ErrInvalidAccount)
	}
	if err := checkHolding(st, accs.Vault, accs.Record.Address, rec.MintA, true, "vault"); err != nil {
		return nil, err
	}
	if err := checkHolding(st, accs.TakerHoldingB, accs.Taker.Address, rec.MintB, true, "taker holding for mint B"); err != nil {
		return nil, err
	}
	if err := checkHolding(st, accs.TakerHoldingA, accs.Taker.Address, rec.MintA, false, "taker holding for mint A"); err != nil {
		return nil, err
	}
	if err := checkHolding(st, accs.MakerHoldingB, rec.Maker, rec.MintB, false, "maker holding for mint B"); err != nil {
		return nil, err
	}
	return rec, nil
}

func validateRefund(st State, accs RefundAccounts) (*Record, error) {
	if err := checkSigner(accs.Maker, "maker"); err != nil {
		return nil, err
	}
	rec, err := loadBoundRecord(st, accs.Record)
	if err != nil {
		return nil, err
	}
	if accs.Maker.Address != rec.Maker {
		return nil, fmt.Errorf("%w: only the maker may refund", ErrUnauthorized)
	}
	if accs.MintA.Address != rec.MintA {
		return nil, fmt.Errorf("%w: mint does not match the record", ErrInvalidAccount)
	}
	if err := checkHolding(st, accs.Vault, accs.Record.Address, rec.MintA, true, "vault"); err != nil {
		return nil, err
	}
	if err := checkHolding(st, accs.MakerHoldingA, rec.Maker, rec.MintA, false, "maker holding for mint A"); err != nil {
		return nil, err
	}
	return rec, nil
}
