package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"swapescrow/crypto"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
)

var (
	ErrMalformedInstruction = errors.New("core: malformed instruction")
	ErrAccountShapeMismatch = errors.New("core: account list does not match the expected shape")
)

// Opcode selects one of the three transitions.
type Opcode uint8

const (
	OpMake Opcode = iota
	OpTake
	OpRefund
)

func (o Opcode) String() string {
	switch o {
	case OpMake:
		return "make"
	case OpTake:
		return "take"
	case OpRefund:
		return "refund"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(o))
	}
}

// AccountMeta is one account slot as supplied by the host runtime, with its
// verified role flags.
type AccountMeta struct {
	Address    crypto.Address `json:"address"`
	IsSigner   bool           `json:"signer"`
	IsWritable bool           `json:"writable"`
}

// Instruction is the raw unit of work: a program id, an ordered account
// list, and a one-byte opcode followed by a fixed little-endian payload.
type Instruction struct {
	Program  crypto.Address `json:"program"`
	Accounts []AccountMeta  `json:"accounts"`
	Data     []byte         `json:"data"`
}

// makePayloadLen is seed, amount wanted and deposit, each 8 bytes
// little-endian, in that order after the opcode byte.
const makePayloadLen = 24

func (ins Instruction) opcode() (Opcode, error) {
	if len(ins.Data) == 0 {
		return 0, fmt.Errorf("%w: empty instruction data", ErrMalformedInstruction)
	}
	op := Opcode(ins.Data[0])
	switch op {
	case OpMake:
		if len(ins.Data) != 1+makePayloadLen {
			return 0, fmt.Errorf("%w: make payload must be %d bytes, got %d", ErrMalformedInstruction, makePayloadLen, len(ins.Data)-1)
		}
	case OpTake, OpRefund:
		if len(ins.Data) != 1 {
			return 0, fmt.Errorf("%w: %s carries no payload", ErrMalformedInstruction, op)
		}
	default:
		return 0, fmt.Errorf("%w: unknown opcode %d", ErrMalformedInstruction, ins.Data[0])
	}
	return op, nil
}

func (ins Instruction) makeParams() escrow.MakeParams {
	return escrow.MakeParams{
		Seed:         binary.LittleEndian.Uint64(ins.Data[1:9]),
		AmountWanted: binary.LittleEndian.Uint64(ins.Data[9:17]),
		AmountA:      binary.LittleEndian.Uint64(ins.Data[17:25]),
	}
}

// slotSpec is the expected role of one account slot.
type slotSpec struct {
	name     string
	signer   bool
	writable bool
}

var (
	makeShape = []slotSpec{
		{"maker", true, true},
		{"record", false, true},
		{"mint_a", false, false},
		{"mint_b", false, false},
		{"maker_holding_a", false, true},
		{"vault", false, true},
	}
	takeShape = []slotSpec{
		{"taker", true, true},
		{"maker", false, true},
		{"record", false, true},
		{"mint_a", false, false},
		{"mint_b", false, false},
		{"vault", false, true},
		{"taker_holding_a", false, true},
		{"taker_holding_b", false, true},
		{"maker_holding_b", false, true},
	}
	refundShape = []slotSpec{
		{"maker", true, true},
		{"record", false, true},
		{"mint_a", false, false},
		{"vault", false, true},
		{"maker_holding_a", false, true},
	}
)

func shapeFor(op Opcode) []slotSpec {
	switch op {
	case OpMake:
		return makeShape
	case OpTake:
		return takeShape
	default:
		return refundShape
	}
}

func checkShape(accounts []AccountMeta, shape []slotSpec) error {
	if len(accounts) != len(shape) {
		return fmt.Errorf("%w: got %d accounts, want %d", ErrAccountShapeMismatch, len(accounts), len(shape))
	}
	for i, spec := range shape {
		if spec.signer && !accounts[i].IsSigner {
			return fmt.Errorf("%w: %s must sign", ErrAccountShapeMismatch, spec.name)
		}
		if spec.writable && !accounts[i].IsWritable {
			return fmt.Errorf("%w: %s must be writable", ErrAccountShapeMismatch, spec.name)
		}
	}
	return nil
}

func input(m AccountMeta) escrow.AccountInput {
	return escrow.AccountInput{Address: m.Address, Signer: m.IsSigner, Writable: m.IsWritable}
}

// --- client-side builders ---

// NewMakeInstruction assembles a Make instruction, deriving the record,
// vault and holding addresses from the maker, mints and seed.
func NewMakeInstruction(maker, mintA, mintB crypto.Address, seed, amountWanted, amountA uint64) (Instruction, error) {
	recordAddr, _, err := escrow.RecordAddress(maker, seed)
	if err != nil {
		return Instruction{}, err
	}
	vaultAddr, _, err := escrow.VaultAddress(recordAddr, mintA)
	if err != nil {
		return Instruction{}, err
	}
	makerHoldingA, _, err := token.HoldingAddress(maker, mintA)
	if err != nil {
		return Instruction{}, err
	}
	data := make([]byte, 1+makePayloadLen)
	data[0] = byte(OpMake)
	binary.LittleEndian.PutUint64(data[1:9], seed)
	binary.LittleEndian.PutUint64(data[9:17], amountWanted)
	binary.LittleEndian.PutUint64(data[17:25], amountA)
	return Instruction{
		Program: escrow.ProgramID,
		Accounts: []AccountMeta{
			{Address: maker, IsSigner: true, IsWritable: true},
			{Address: recordAddr, IsWritable: true},
			{Address: mintA},
			{Address: mintB},
			{Address: makerHoldingA, IsWritable: true},
			{Address: vaultAddr, IsWritable: true},
		},
		Data: data,
	}, nil
}

// NewTakeInstruction assembles a Take instruction against the offer opened
// by (maker, seed).
func NewTakeInstruction(taker, maker, mintA, mintB crypto.Address, seed uint64) (Instruction, error) {
	recordAddr, _, err := escrow.RecordAddress(maker, seed)
	if err != nil {
		return Instruction{}, err
	}
	vaultAddr, _, err := escrow.VaultAddress(recordAddr, mintA)
	if err != nil {
		return Instruction{}, err
	}
	takerHoldingA, _, err := token.HoldingAddress(taker, mintA)
	if err != nil {
		return Instruction{}, err
	}
	takerHoldingB, _, err := token.HoldingAddress(taker, mintB)
	if err != nil {
		return Instruction{}, err
	}
	makerHoldingB, _, err := token.HoldingAddress(maker, mintB)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Program: escrow.ProgramID,
		Accounts: []AccountMeta{
			{Address: taker, IsSigner: true, IsWritable: true},
			{Address: maker, IsWritable: true},
			{Address: recordAddr, IsWritable: true},
			{Address: mintA},
			{Address: mintB},
			{Address: vaultAddr, IsWritable: true},
			{Address: takerHoldingA, IsWritable: true},
			{Address: takerHoldingB, IsWritable: true},
			{Address: makerHoldingB, IsWritable: true},
		},
		Data: []byte{byte(OpTake)},
	}, nil
}

// NewRefundInstruction assembles a Refund instruction for the offer opened
// by (maker, seed).
func NewRefundInstruction(maker, mintA crypto.Address, seed uint64) (Instruction, error) {
	recordAddr, _, err := escrow.RecordAddress(maker, seed)
	if err != nil {
		return Instruction{}, err
	}
	vaultAddr, _, err := escrow.VaultAddress(recordAddr, mintA)
	if err != nil {
		return Instruction{}, err
	}
	makerHoldingA, _, err := token.HoldingAddress(maker, mintA)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Program: escrow.ProgramID,
		Accounts: []AccountMeta{
			{Address: maker, IsSigner: true, IsWritable: true},
			{Address: recordAddr, IsWritable: true},
			{Address: mintA},
			{Address: vaultAddr, IsWritable: true},
			{Address: makerHoldingA, IsWritable: true},
		},
		Data: []byte{byte(OpRefund)},
	}, nil
}
