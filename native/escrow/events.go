package escrow

import (
	"strconv"

	"swapescrow/core/types"
	"swapescrow/crypto"
)

const (
	EventTypeMade     = "escrow.made"
	EventTypeTaken    = "escrow.taken"
	EventTypeRefunded = "escrow.refunded"
)

func recordAttributes(addr crypto.Address, rec *Record) map[string]string {
	attrs := map[string]string{
		"record":       addr.Hex(),
		"maker":        rec.Maker.Hex(),
		"mintA":        rec.MintA.Hex(),
		"mintB":        rec.MintB.Hex(),
		"amountWanted": strconv.FormatUint(rec.AmountWanted, 10),
		"seed":         strconv.FormatUint(rec.Seed, 10),
	}
	return attrs
}

// NewMadeEvent returns the canonical event payload for a newly opened offer.
func NewMadeEvent(addr crypto.Address, rec *Record, deposited uint64) *types.Event {
	attrs := recordAttributes(addr, rec)
	attrs["deposited"] = strconv.FormatUint(deposited, 10)
	return &types.Event{Type: EventTypeMade, Attributes: attrs}
}

// NewTakenEvent returns the canonical event payload emitted when a taker
// settles an offer.
func NewTakenEvent(addr crypto.Address, rec *Record, taker crypto.Address, deposited uint64) *types.Event {
	attrs := recordAttributes(addr, rec)
	attrs["taker"] = taker.Hex()
	attrs["deposited"] = strconv.FormatUint(deposited, 10)
	return &types.Event{Type: EventTypeTaken, Attributes: attrs}
}

// NewRefundedEvent returns the canonical event payload emitted when the
// maker reclaims the deposit.
func NewRefundedEvent(addr crypto.Address, rec *Record, deposited uint64) *types.Event {
	attrs := recordAttributes(addr, rec)
	attrs["deposited"] = strconv.FormatUint(deposited, 10)
	return &types.Event{Type: EventTypeRefunded, Attributes: attrs}
}
