package escrow

import (
	"strconv"

	"cardledger/core/types"
)

const (
	EventTypeEscrowInitialized = "escrow.initialized"
	EventTypeEscrowSettled     = "escrow.settled"
	EventTypeEscrowCanceled    = "escrow.canceled"
	EventTypeEscrowClosed      = "escrow.closed"
)

// NewInitializedEvent returns the canonical payload for a funded escrow.
func NewInitializedEvent(address string, e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowInitialized, address, e)
}

// NewSettledEvent returns the canonical payload for a settled escrow.
func NewSettledEvent(address string, e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowSettled, address, e)
}

// NewCanceledEvent returns the canonical payload for a refunded escrow.
func NewCanceledEvent(address string, e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowCanceled, address, e)
}

// NewClosedEvent returns the canonical payload for a closed escrow. The
// record has already been reduced to a tombstone, so the caller passes the
// last live view.
func NewClosedEvent(address string, e *Escrow) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowClosed, address, e)
	evt.Attributes["state"] = StateClosed.String()
	return evt
}

func newEscrowEvent(eventType, address string, e *Escrow) *types.Event {
	attrs := map[string]string{"escrow": address}
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["state"] = e.State.String()
	attrs["reference"] = e.Reference.String()
	attrs["mint"] = e.Mint.String()
	attrs["authority"] = e.Authority.String()
	attrs["amount"] = strconv.FormatUint(e.Amount, 10)
	attrs["feeBps"] = strconv.FormatUint(uint64(e.Fees.Bps), 10)
	attrs["fixedFee"] = strconv.FormatUint(e.Fees.Fixed, 10)
	if fee, err := e.TotalFee(); err == nil {
		attrs["fee"] = strconv.FormatUint(fee, 10)
	}
	if e.SettledAt != nil {
		attrs["settledAt"] = strconv.FormatInt(*e.SettledAt, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
