package core

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"swapescrow/core/events"
	"swapescrow/core/state"
	"swapescrow/crypto"
	"swapescrow/lockmap"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
	"swapescrow/observability"
)

// Processor is the entry dispatcher: it decodes instructions, checks the
// account list's shape, and runs the matching transition against a buffered
// state view while holding locks on every writable account. The view is
// committed only when the transition succeeds, so a failure of any step
// leaves no persisted effect.
type Processor struct {
	state  *state.Manager
	ledger *token.Ledger
	engine *escrow.Engine
	locks  *lockmap.Lockmap
	logger *slog.Logger
}

// NewProcessor wires a dispatcher over the supplied state manager.
func NewProcessor(st *state.Manager, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	ledger := token.NewLedger()
	return &Processor{
		state:  st,
		ledger: ledger,
		engine: escrow.NewEngine(ledger),
		locks:  lockmap.New(16),
		logger: logger.With("component", "processor"),
	}
}

// SetEmitter forwards the emitter to the transition engine.
func (p *Processor) SetEmitter(emitter events.Emitter) {
	p.engine.SetEmitter(emitter)
}

// State exposes the underlying state manager for queries.
func (p *Processor) State() *state.Manager { return p.state }

// Ledger exposes the token ledger for genesis funding and queries.
func (p *Processor) Ledger() *token.Ledger { return p.ledger }

// Apply executes one instruction to completion or to no effect at all.
func (p *Processor) Apply(ins Instruction) error {
	start := time.Now()
	op, err := ins.opcode()
	if err != nil {
		observability.TransitionMetrics().Observe("unknown", errKind(err), time.Since(start))
		return err
	}
	err = p.apply(op, ins)
	observability.TransitionMetrics().Observe(op.String(), errKind(err), time.Since(start))
	if err != nil {
		p.logger.Warn("transition rejected", "opcode", op.String(), "err", err)
		return err
	}
	p.logger.Info("transition committed", "opcode", op.String())
	return nil
}

func (p *Processor) apply(op Opcode, ins Instruction) error {
	if ins.Program != escrow.ProgramID {
		return fmt.Errorf("%w: instruction for foreign program %s", ErrMalformedInstruction, ins.Program)
	}
	if err := checkShape(ins.Accounts, shapeFor(op)); err != nil {
		return err
	}

	// Every writable account is held for the whole transition, so
	// conflicting writes from concurrent transitions serialize even when
	// the transitions target different records: two Makes by one maker
	// contend on the maker's holding and rent balance, and of two racing
	// settlements the second observes the deleted record and fails
	// validation. Locks are taken in address order so overlapping sets
	// cannot deadlock.
	locked := writableSet(ins.Accounts)
	for _, addr := range locked {
		p.locks.Lock(addr)
	}
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			p.locks.Unlock(locked[i])
		}
	}()

	txn := p.state.Begin()
	var err error
	switch op {
	case OpMake:
		accs := escrow.MakeAccounts{
			Maker:         input(ins.Accounts[0]),
			Record:        input(ins.Accounts[1]),
			MintA:         input(ins.Accounts[2]),
			MintB:         input(ins.Accounts[3]),
			MakerHoldingA: input(ins.Accounts[4]),
			Vault:         input(ins.Accounts[5]),
		}
		_, err = p.engine.Make(txn, accs, ins.makeParams())
	case OpTake:
		accs := escrow.TakeAccounts{
			Taker:         input(ins.Accounts[0]),
			Maker:         input(ins.Accounts[1]),
			Record:        input(ins.Accounts[2]),
			MintA:         input(ins.Accounts[3]),
			MintB:         input(ins.Accounts[4]),
			Vault:         input(ins.Accounts[5]),
			TakerHoldingA: input(ins.Accounts[6]),
			TakerHoldingB: input(ins.Accounts[7]),
			MakerHoldingB: input(ins.Accounts[8]),
		}
		err = p.engine.Take(txn, accs)
	case OpRefund:
		accs := escrow.RefundAccounts{
			Maker:         input(ins.Accounts[0]),
			Record:        input(ins.Accounts[1]),
			MintA:         input(ins.Accounts[2]),
			Vault:         input(ins.Accounts[3]),
			MakerHoldingA: input(ins.Accounts[4]),
		}
		err = p.engine.Refund(txn, accs)
	}
	if err != nil {
		// The buffered view is dropped: no partial effect persists.
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

// Mutate runs fn against a buffered view with the named accounts locked and
// commits only when fn succeeds. State changes made outside the instruction
// path, such as genesis funding or the dev faucet, go through here so they
// serialize with in-flight transitions instead of racing their commits.
func (p *Processor) Mutate(fn func(st escrow.State) error, accounts ...crypto.Address) error {
	locked := lockOrder(accounts)
	for _, addr := range locked {
		p.locks.Lock(addr)
	}
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			p.locks.Unlock(locked[i])
		}
	}()

	txn := p.state.Begin()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// writableSet returns an instruction's writable addresses in lock order.
func writableSet(accounts []AccountMeta) []crypto.Address {
	addrs := make([]crypto.Address, 0, len(accounts))
	for _, acc := range accounts {
		if acc.IsWritable {
			addrs = append(addrs, acc.Address)
		}
	}
	return lockOrder(addrs)
}

// lockOrder deduplicates addresses and sorts them ascending, the canonical
// acquisition order that keeps overlapping lock sets deadlock free.
func lockOrder(addrs []crypto.Address) []crypto.Address {
	seen := make(map[crypto.Address]struct{}, len(addrs))
	ordered := make([]crypto.Address, 0, len(addrs))
	for _, addr := range addrs {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		ordered = append(ordered, addr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})
	return ordered
}

// ErrorKind maps an error returned by Apply to its stable kind string.
// Empty means success.
func ErrorKind(err error) string { return errKind(err) }

func errKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedInstruction):
		return "malformed_instruction"
	case errors.Is(err, ErrAccountShapeMismatch):
		return "account_shape_mismatch"
	case errors.Is(err, escrow.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, escrow.ErrUnauthorizedVault):
		return "unauthorized_vault"
	case errors.Is(err, escrow.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, escrow.ErrInvalidAccount):
		return "invalid_account"
	case errors.Is(err, token.ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "internal"
	}
}
