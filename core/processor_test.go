package core

import (
	"errors"
	"sync"
	"testing"

	"swapescrow/crypto"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
	"swapescrow/storage"

	"swapescrow/core/state"
)

const walletFunding uint64 = 100_000_000

type procEnv struct {
	p             *Processor
	st            *state.Manager
	issuer        crypto.Address
	maker         crypto.Address
	taker         crypto.Address
	mintA         crypto.Address
	mintB         crypto.Address
	makerHoldingA crypto.Address
	takerHoldingB crypto.Address
}

func newProcEnv(t *testing.T) *procEnv {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	env := &procEnv{
		p:      NewProcessor(st, nil),
		st:     st,
		issuer: crypto.NamedAddress("issuer"),
		maker:  crypto.NamedAddress("maker"),
		taker:  crypto.NamedAddress("taker"),
		mintA:  crypto.NamedAddress("mint-a"),
		mintB:  crypto.NamedAddress("mint-b"),
	}
	ledger := env.p.Ledger()
	for _, addr := range []crypto.Address{env.issuer, env.maker, env.taker} {
		if err := ledger.CreditNative(st, addr, walletFunding); err != nil {
			t.Fatalf("fund %s: %v", addr, err)
		}
	}
	issuerAuth := token.SignerAuthority(env.issuer)
	if err := ledger.CreateMint(st, issuerAuth, env.mintA, env.issuer, 6); err != nil {
		t.Fatalf("create mint A: %v", err)
	}
	if err := ledger.CreateMint(st, issuerAuth, env.mintB, env.issuer, 6); err != nil {
		t.Fatalf("create mint B: %v", err)
	}
	var err error
	env.makerHoldingA, err = ledger.CreateHolding(st, token.SignerAuthority(env.maker), env.maker, env.mintA)
	if err != nil {
		t.Fatalf("create maker holding A: %v", err)
	}
	env.takerHoldingB, err = ledger.CreateHolding(st, token.SignerAuthority(env.taker), env.taker, env.mintB)
	if err != nil {
		t.Fatalf("create taker holding B: %v", err)
	}
	if err := ledger.MintTo(st, issuerAuth, env.mintA, env.makerHoldingA, 1000); err != nil {
		t.Fatalf("fund maker holding A: %v", err)
	}
	if err := ledger.MintTo(st, issuerAuth, env.mintB, env.takerHoldingB, 1000); err != nil {
		t.Fatalf("fund taker holding B: %v", err)
	}
	return env
}

func (env *procEnv) mustApply(t *testing.T, ins Instruction, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	if err := env.p.Apply(ins); err != nil {
		t.Fatalf("apply %v: %v", Opcode(ins.Data[0]), err)
	}
}

func (env *procEnv) balance(t *testing.T, holding crypto.Address) uint64 {
	t.Helper()
	bal, err := env.p.Ledger().Balance(env.st, holding)
	if err != nil {
		t.Fatalf("balance of %s: %v", holding, err)
	}
	return bal
}

func (env *procEnv) native(t *testing.T, addr crypto.Address) uint64 {
	t.Helper()
	bal, err := env.st.NativeBalance(addr)
	if err != nil {
		t.Fatalf("native balance of %s: %v", addr, err)
	}
	return bal
}

func TestMakeThenTakeScenario(t *testing.T) {
	env := newProcEnv(t)

	// Maker deposits 100 of A wanting 50 of B, seed 7.
	makeIns, err := NewMakeInstruction(env.maker, env.mintA, env.mintB, 7, 50, 100)
	env.mustApply(t, makeIns, err)

	recordAddr, _, _ := escrow.RecordAddress(env.maker, 7)
	vaultAddr, _, _ := escrow.VaultAddress(recordAddr, env.mintA)
	if got := env.balance(t, vaultAddr); got != 100 {
		t.Fatalf("vault holds %d, want 100", got)
	}
	rec, ok, _ := env.st.RecordGet(recordAddr)
	if !ok || rec.AmountWanted != 50 || rec.Seed != 7 || rec.Maker != env.maker {
		t.Fatalf("record after make: %+v (ok=%v)", rec, ok)
	}

	makerNative := env.native(t, env.maker)
	takerNative := env.native(t, env.taker)

	takeIns, err := NewTakeInstruction(env.taker, env.maker, env.mintA, env.mintB, 7)
	env.mustApply(t, takeIns, err)

	takerHoldingA, _, _ := token.HoldingAddress(env.taker, env.mintA)
	makerHoldingB, _, _ := token.HoldingAddress(env.maker, env.mintB)
	if got := env.balance(t, takerHoldingA); got != 100 {
		t.Fatalf("taker ends with %d of A, want 100", got)
	}
	if got := env.balance(t, makerHoldingB); got != 50 {
		t.Fatalf("maker ends with %d of B, want 50", got)
	}
	if got := env.balance(t, env.makerHoldingA); got != 900 {
		t.Fatalf("maker holding A %d, want 900", got)
	}
	if got := env.balance(t, env.takerHoldingB); got != 950 {
		t.Fatalf("taker holding B %d, want 950", got)
	}
	if _, ok, _ := env.st.RecordGet(recordAddr); ok {
		t.Fatal("record survives take")
	}
	if _, ok, _ := env.st.HoldingGet(vaultAddr); ok {
		t.Fatal("vault survives take")
	}
	// Rent reclamation: vault and record deposits go back to the maker, the
	// taker paid for the two holding accounts created on demand.
	if got, want := env.native(t, env.maker), makerNative+token.HoldingRent+escrow.RecordRent; got != want {
		t.Fatalf("maker native %d, want %d", got, want)
	}
	if got, want := env.native(t, env.taker), takerNative-2*token.HoldingRent; got != want {
		t.Fatalf("taker native %d, want %d", got, want)
	}

	// The pair is single-use.
	takeAgain, err := NewTakeInstruction(env.taker, env.maker, env.mintA, env.mintB, 7)
	if err != nil {
		t.Fatalf("build take: %v", err)
	}
	if err := env.p.Apply(takeAgain); !errors.Is(err, escrow.ErrInvalidAccount) {
		t.Fatalf("second take returned %v, want ErrInvalidAccount", err)
	}
}

func TestMakeThenRefundScenario(t *testing.T) {
	env := newProcEnv(t)
	makeIns, err := NewMakeInstruction(env.maker, env.mintA, env.mintB, 7, 50, 100)
	env.mustApply(t, makeIns, err)

	refundIns, err := NewRefundInstruction(env.maker, env.mintA, 7)
	env.mustApply(t, refundIns, err)

	if got := env.balance(t, env.makerHoldingA); got != 1000 {
		t.Fatalf("maker holding A %d after refund, want 1000 (net zero)", got)
	}
	if got := env.balance(t, env.takerHoldingB); got != 1000 {
		t.Fatalf("taker holding B changed on refund: %d", got)
	}
	recordAddr, _, _ := escrow.RecordAddress(env.maker, 7)
	vaultAddr, _, _ := escrow.VaultAddress(recordAddr, env.mintA)
	if _, ok, _ := env.st.RecordGet(recordAddr); ok {
		t.Fatal("record survives refund")
	}
	if _, ok, _ := env.st.HoldingGet(vaultAddr); ok {
		t.Fatal("vault survives refund")
	}

	takeIns, err := NewTakeInstruction(env.taker, env.maker, env.mintA, env.mintB, 7)
	if err != nil {
		t.Fatalf("build take: %v", err)
	}
	if err := env.p.Apply(takeIns); !errors.Is(err, escrow.ErrInvalidAccount) {
		t.Fatalf("take after refund returned %v, want ErrInvalidAccount", err)
	}
}

func TestRefundRequiresMaker(t *testing.T) {
	env := newProcEnv(t)
	makeIns, err := NewMakeInstruction(env.maker, env.mintA, env.mintB, 1, 50, 100)
	env.mustApply(t, makeIns, err)

	// The taker assembles a structurally valid refund naming itself.
	refundIns, err := NewRefundInstruction(env.taker, env.mintA, 1)
	if err != nil {
		t.Fatalf("build refund: %v", err)
	}
	// Point it at the real record; every other slot derives from the taker.
	recordAddr, _, _ := escrow.RecordAddress(env.maker, 1)
	refundIns.Accounts[1].Address = recordAddr
	vaultAddr, _, _ := escrow.VaultAddress(recordAddr, env.mintA)
	refundIns.Accounts[3].Address = vaultAddr
	if err := env.p.Apply(refundIns); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("foreign refund returned %v, want ErrUnauthorized", err)
	}
}

func TestMalformedInstructions(t *testing.T) {
	env := newProcEnv(t)

	ins, err := NewMakeInstruction(env.maker, env.mintA, env.mintB, 2, 50, 100)
	if err != nil {
		t.Fatalf("build make: %v", err)
	}

	truncated := ins
	truncated.Data = ins.Data[:9]
	if err := env.p.Apply(truncated); !errors.Is(err, ErrMalformedInstruction) {
		t.Fatalf("truncated payload returned %v, want ErrMalformedInstruction", err)
	}

	unknown := ins
	unknown.Data = []byte{0xFF}
	if err := env.p.Apply(unknown); !errors.Is(err, ErrMalformedInstruction) {
		t.Fatalf("unknown opcode returned %v, want ErrMalformedInstruction", err)
	}

	empty := ins
	empty.Data = nil
	if err := env.p.Apply(empty); !errors.Is(err, ErrMalformedInstruction) {
		t.Fatalf("empty data returned %v, want ErrMalformedInstruction", err)
	}

	foreign := ins
	foreign.Program = crypto.NamedAddress("some-other-program")
	if err := env.p.Apply(foreign); !errors.Is(err, ErrMalformedInstruction) {
		t.Fatalf("foreign program returned %v, want ErrMalformedInstruction", err)
	}
}

func TestAccountShapeMismatch(t *testing.T) {
	env := newProcEnv(t)
	ins, err := NewMakeInstruction(env.maker, env.mintA, env.mintB, 3, 50, 100)
	if err != nil {
		t.Fatalf("build make: %v", err)
	}

	short := ins
	short.Accounts = ins.Accounts[:4]
	if err := env.p.Apply(short); !errors.Is(err, ErrAccountShapeMismatch) {
		t.Fatalf("short account list returned %v, want ErrAccountShapeMismatch", err)
	}

	unsigned := ins
	unsigned.Accounts = append([]AccountMeta(nil), ins.Accounts...)
	unsigned.Accounts[0].IsSigner = false
	if err := env.p.Apply(unsigned); !errors.Is(err, ErrAccountShapeMismatch) {
		t.Fatalf("missing signer flag returned %v, want ErrAccountShapeMismatch", err)
	}

	frozen := ins
	frozen.Accounts = append([]AccountMeta(nil), ins.Accounts...)
	frozen.Accounts[5].IsWritable = false
	if err := env.p.Apply(frozen); !errors.Is(err, ErrAccountShapeMismatch) {
		t.Fatalf("read-only vault returned %v, want ErrAccountShapeMismatch", err)
	}

	// Nothing was created by the rejected attempts.
	recordAddr, _, _ := escrow.RecordAddress(env.maker, 3)
	if _, ok, _ := env.st.RecordGet(recordAddr); ok {
		t.Fatal("record created by rejected instruction")
	}
}

func TestFailedTakeLeavesNoEffect(t *testing.T) {
	env := newProcEnv(t)
	// Offer asks for more B than the taker owns, so the last transfer of
	// the take sequence fails after the vault legs already ran against the
	// buffered view.
	makeIns, err := NewMakeInstruction(env.maker, env.mintA, env.mintB, 4, 2000, 100)
	env.mustApply(t, makeIns, err)

	recordAddr, _, _ := escrow.RecordAddress(env.maker, 4)
	vaultAddr, _, _ := escrow.VaultAddress(recordAddr, env.mintA)
	takerNative := env.native(t, env.taker)

	takeIns, err := NewTakeInstruction(env.taker, env.maker, env.mintA, env.mintB, 4)
	if err != nil {
		t.Fatalf("build take: %v", err)
	}
	if err := env.p.Apply(takeIns); !errors.Is(err, token.ErrInsufficientFunds) {
		t.Fatalf("underfunded take returned %v, want ErrInsufficientFunds", err)
	}

	// All-or-nothing: the vault, record and every balance are untouched.
	if got := env.balance(t, vaultAddr); got != 100 {
		t.Fatalf("vault holds %d after failed take, want 100", got)
	}
	if _, ok, _ := env.st.RecordGet(recordAddr); !ok {
		t.Fatal("record missing after failed take")
	}
	if got := env.balance(t, env.takerHoldingB); got != 1000 {
		t.Fatalf("taker holding B %d after failed take, want 1000", got)
	}
	takerHoldingA, _, _ := token.HoldingAddress(env.taker, env.mintA)
	if _, ok, _ := env.st.HoldingGet(takerHoldingA); ok {
		t.Fatal("taker holding A created by failed take")
	}
	if got := env.native(t, env.taker); got != takerNative {
		t.Fatalf("taker native %d after failed take, want %d", got, takerNative)
	}
}

func TestRacingSettlementsExactlyOneCommits(t *testing.T) {
	env := newProcEnv(t)
	makeIns, err := NewMakeInstruction(env.maker, env.mintA, env.mintB, 5, 50, 100)
	env.mustApply(t, makeIns, err)

	takeIns, err := NewTakeInstruction(env.taker, env.maker, env.mintA, env.mintB, 5)
	if err != nil {
		t.Fatalf("build take: %v", err)
	}
	refundIns, err := NewRefundInstruction(env.maker, env.mintA, 5)
	if err != nil {
		t.Fatalf("build refund: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0] = env.p.Apply(takeIns) }()
	go func() { defer wg.Done(); results[1] = env.p.Apply(refundIns) }()
	wg.Wait()

	committed := 0
	for _, err := range results {
		if err == nil {
			committed++
		} else if !errors.Is(err, escrow.ErrInvalidAccount) {
			t.Fatalf("loser failed with %v, want ErrInvalidAccount", err)
		}
	}
	if committed != 1 {
		t.Fatalf("%d settlements committed, want exactly 1", committed)
	}

	recordAddr, _, _ := escrow.RecordAddress(env.maker, 5)
	vaultAddr, _, _ := escrow.VaultAddress(recordAddr, env.mintA)
	if _, ok, _ := env.st.RecordGet(recordAddr); ok {
		t.Fatal("record survives settlement race")
	}
	if _, ok, _ := env.st.HoldingGet(vaultAddr); ok {
		t.Fatal("vault survives settlement race")
	}
	// The deposit ended in exactly one place.
	takerHoldingA, _, _ := token.HoldingAddress(env.taker, env.mintA)
	takerGot := uint64(0)
	if h, ok, _ := env.st.HoldingGet(takerHoldingA); ok {
		takerGot = h.Amount
	}
	makerGot := env.balance(t, env.makerHoldingA)
	if results[0] == nil { // take won
		if takerGot != 100 || makerGot != 900 {
			t.Fatalf("take won but balances are taker=%d maker=%d", takerGot, makerGot)
		}
	} else { // refund won
		if takerGot != 0 || makerGot != 1000 {
			t.Fatalf("refund won but balances are taker=%d maker=%d", takerGot, makerGot)
		}
	}
}

func TestConcurrentTransitionsConserveDeposits(t *testing.T) {
	env := newProcEnv(t)
	const offers = 8
	const deposit = uint64(100)
	const wanted = uint64(50)

	makerNative := env.native(t, env.maker)

	// All offers share the maker's holding of mint A and the maker's rent
	// balance, so the debits contend even though every record is distinct.
	makes := make([]Instruction, offers)
	for i := range makes {
		ins, err := NewMakeInstruction(env.maker, env.mintA, env.mintB, uint64(i+1), wanted, deposit)
		if err != nil {
			t.Fatalf("build make %d: %v", i+1, err)
		}
		makes[i] = ins
	}
	var wg sync.WaitGroup
	errs := make([]error, offers)
	for i := range makes {
		wg.Add(1)
		go func(i int) { defer wg.Done(); errs[i] = env.p.Apply(makes[i]) }(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent make %d: %v", i+1, err)
		}
	}

	// Every unit of mint A is either still held or escrowed; none minted,
	// none destroyed.
	total := env.balance(t, env.makerHoldingA)
	if total != 1000-offers*deposit {
		t.Fatalf("maker holding A %d after %d makes, want %d", total, offers, 1000-offers*deposit)
	}
	for i := 0; i < offers; i++ {
		recordAddr, _, _ := escrow.RecordAddress(env.maker, uint64(i+1))
		vaultAddr, _, _ := escrow.VaultAddress(recordAddr, env.mintA)
		got := env.balance(t, vaultAddr)
		if got != deposit {
			t.Fatalf("vault %d holds %d, want %d", i+1, got, deposit)
		}
		total += got
	}
	if total != 1000 {
		t.Fatalf("%d units of mint A exist after concurrent makes, 1000 were issued", total)
	}
	if got, want := env.native(t, env.maker), makerNative-offers*(escrow.RecordRent+token.HoldingRent); got != want {
		t.Fatalf("maker native %d after concurrent makes, want %d", got, want)
	}

	// One taker settles every offer concurrently; the runs share the
	// taker's holdings of both mints and the taker's rent balance.
	takes := make([]Instruction, offers)
	for i := range takes {
		ins, err := NewTakeInstruction(env.taker, env.maker, env.mintA, env.mintB, uint64(i+1))
		if err != nil {
			t.Fatalf("build take %d: %v", i+1, err)
		}
		takes[i] = ins
	}
	for i := range takes {
		wg.Add(1)
		go func(i int) { defer wg.Done(); errs[i] = env.p.Apply(takes[i]) }(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent take %d: %v", i+1, err)
		}
	}

	takerHoldingA, _, _ := token.HoldingAddress(env.taker, env.mintA)
	makerHoldingB, _, _ := token.HoldingAddress(env.maker, env.mintB)
	if got := env.balance(t, takerHoldingA); got != offers*deposit {
		t.Fatalf("taker holds %d of A after settlement, want %d", got, offers*deposit)
	}
	if got := env.balance(t, makerHoldingB); got != offers*wanted {
		t.Fatalf("maker holds %d of B after settlement, want %d", got, offers*wanted)
	}
	if got := env.balance(t, env.takerHoldingB); got != 1000-offers*wanted {
		t.Fatalf("taker holding B %d after settlement, want %d", got, 1000-offers*wanted)
	}
	if got := env.balance(t, env.makerHoldingA); got != 1000-offers*deposit {
		t.Fatalf("maker holding A changed during settlement: %d", got)
	}
	for i := 0; i < offers; i++ {
		recordAddr, _, _ := escrow.RecordAddress(env.maker, uint64(i+1))
		if _, ok, _ := env.st.RecordGet(recordAddr); ok {
			t.Fatalf("record %d survives settlement", i+1)
		}
	}
}

func TestMakeZeroAmountRejected(t *testing.T) {
	env := newProcEnv(t)
	for _, amounts := range [][2]uint64{{0, 50}, {100, 0}} {
		ins, err := NewMakeInstruction(env.maker, env.mintA, env.mintB, 6, amounts[1], amounts[0])
		if err != nil {
			t.Fatalf("build make: %v", err)
		}
		if err := env.p.Apply(ins); !errors.Is(err, escrow.ErrInvalidAmount) {
			t.Fatalf("zero-amount make returned %v, want ErrInvalidAmount", err)
		}
	}
	recordAddr, _, _ := escrow.RecordAddress(env.maker, 6)
	if _, ok, _ := env.st.RecordGet(recordAddr); ok {
		t.Fatal("record created despite zero amount")
	}
}
