package escrow

import (
	"fmt"

	"swapescrow/core/events"
	"swapescrow/core/types"
	"swapescrow/crypto"
	"swapescrow/native/token"
)

// State is the view of the state manager the engine needs: the token
// ledger's state plus the record store. Callers pass a buffered view so a
// failed transition discards every effect.
type State interface {
	token.State
	RecordGet(addr crypto.Address) (*Record, bool, error)
	RecordPut(addr crypto.Address, rec *Record) error
	RecordDelete(addr crypto.Address) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine implements the three offer transitions over the token ledger and
// record store. It holds no mutable state between invocations; every call
// rehydrates from the supplied state view.
type Engine struct {
	ledger  *token.Ledger
	emitter events.Emitter
}

// NewEngine creates an engine bound to the supplied token ledger, with a
// no-op emitter. Callers can override the emitter via SetEmitter.
func NewEngine(ledger *token.Ledger) *Engine {
	return &Engine{
		ledger:  ledger,
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

// Make opens an offer: it persists the record, creates the vault at the
// maker's expense and moves the deposit into it. Validation is total before
// the first effect.
func (e *Engine) Make(st State, accs MakeAccounts, p MakeParams) (*Record, error) {
	if st == nil {
		return nil, ErrNilState
	}
	bump, err := validateMake(st, accs, p)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Maker:        accs.Maker.Address,
		MintA:        accs.MintA.Address,
		MintB:        accs.MintB.Address,
		AmountWanted: p.AmountWanted,
		Seed:         p.Seed,
		Bump:         bump,
	}
	makerAuth := token.SignerAuthority(accs.Maker.Address)

	if err := debitNative(st, rec.Maker, RecordRent); err != nil {
		return nil, err
	}
	if err := st.RecordPut(accs.Record.Address, rec); err != nil {
		return nil, err
	}
	vault, err := e.ledger.CreateHolding(st, makerAuth, accs.Record.Address, rec.MintA)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(st, makerAuth, accs.MakerHoldingA.Address, vault, p.AmountA); err != nil {
		return nil, err
	}

	e.emit(NewMadeEvent(accs.Record.Address, rec, p.AmountA))
	return rec.Clone(), nil
}

// Take settles an offer: the vault's full balance goes to the taker, the
// taker pays the maker the asked amount, and vault and record are destroyed
// with their rent returned to the maker.
func (e *Engine) Take(st State, accs TakeAccounts) error {
	if st == nil {
		return ErrNilState
	}
	rec, err := validateTake(st, accs)
	if err != nil {
		return err
	}
	vaultAuth, err := vaultAuthority(rec, accs.Record.Address)
	if err != nil {
		return err
	}
	takerAuth := token.SignerAuthority(accs.Taker.Address)

	// Destination holding accounts are created on demand at the taker's
	// expense.
	takerHoldingA, err := e.ledger.EnsureHolding(st, takerAuth, accs.Taker.Address, rec.MintA)
	if err != nil {
		return err
	}
	makerHoldingB, err := e.ledger.EnsureHolding(st, takerAuth, rec.Maker, rec.MintB)
	if err != nil {
		return err
	}

	deposited, err := e.ledger.Balance(st, accs.Vault.Address)
	if err != nil {
		return err
	}
	if err := e.ledger.Transfer(st, vaultAuth, accs.Vault.Address, takerHoldingA, deposited); err != nil {
		return err
	}
	if err := e.ledger.CloseHolding(st, vaultAuth, accs.Vault.Address, rec.Maker); err != nil {
		return err
	}
	if err := e.ledger.Transfer(st, takerAuth, accs.TakerHoldingB.Address, makerHoldingB, rec.AmountWanted); err != nil {
		return err
	}
	if err := closeRecord(st, accs.Record.Address, rec.Maker); err != nil {
		return err
	}

	e.emit(NewTakenEvent(accs.Record.Address, rec, accs.Taker.Address, deposited))
	return nil
}

// Refund cancels an offer: the deposit returns to the maker and vault and
// record are destroyed. Only the recorded maker may invoke it; no mint B
// balance changes hands.
func (e *Engine) Refund(st State, accs RefundAccounts) error {
	if st == nil {
		return ErrNilState
	}
	rec, err := validateRefund(st, accs)
	if err != nil {
		return err
	}
	vaultAuth, err := vaultAuthority(rec, accs.Record.Address)
	if err != nil {
		return err
	}
	makerAuth := token.SignerAuthority(accs.Maker.Address)

	makerHoldingA, err := e.ledger.EnsureHolding(st, makerAuth, rec.Maker, rec.MintA)
	if err != nil {
		return err
	}
	deposited, err := e.ledger.Balance(st, accs.Vault.Address)
	if err != nil {
		return err
	}
	if err := e.ledger.Transfer(st, vaultAuth, accs.Vault.Address, makerHoldingA, deposited); err != nil {
		return err
	}
	if err := e.ledger.CloseHolding(st, vaultAuth, accs.Vault.Address, rec.Maker); err != nil {
		return err
	}
	if err := closeRecord(st, accs.Record.Address, rec.Maker); err != nil {
		return err
	}

	e.emit(NewRefundedEvent(accs.Record.Address, rec, deposited))
	return nil
}

func closeRecord(st State, addr crypto.Address, rentRecipient crypto.Address) error {
	if err := st.RecordDelete(addr); err != nil {
		return err
	}
	return creditNative(st, rentRecipient, RecordRent)
}

func creditNative(st State, addr crypto.Address, amount uint64) error {
	bal, err := st.NativeBalance(addr)
	if err != nil {
		return err
	}
	return st.SetNativeBalance(addr, bal+amount)
}

func debitNative(st State, addr crypto.Address, amount uint64) error {
	bal, err := st.NativeBalance(addr)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: native balance %d below record rent %d", token.ErrInsufficientFunds, bal, amount)
	}
	return st.SetNativeBalance(addr, bal-amount)
}
