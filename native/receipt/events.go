package receipt

import (
	"strconv"

	"cardledger/core/types"
	"cardledger/native/common"
)

const (
	EventTypeDeposit  = "receipt.deposit"
	EventTypeWithdraw = "receipt.withdraw"
	EventTypeFunding  = "receipt.funding"
)

// Movement summarises the value a receipt flow moved.
type Movement struct {
	Purpose     common.Purpose
	Reference   string
	Receipt     string
	Mint        string
	Source      string
	Destination string
	FeeAccount  string
	Amount      uint64
	Fee         uint64
}

func eventType(purpose common.Purpose) string {
	switch purpose {
	case common.PurposeDeposit:
		return EventTypeDeposit
	case common.PurposeWithdraw:
		return EventTypeWithdraw
	default:
		return EventTypeFunding
	}
}

// NewEvent returns the canonical payload for a completed receipt flow.
func NewEvent(m Movement) *types.Event {
	return &types.Event{
		Type: eventType(m.Purpose),
		Attributes: map[string]string{
			"reference":   m.Reference,
			"receipt":     m.Receipt,
			"mint":        m.Mint,
			"source":      m.Source,
			"destination": m.Destination,
			"feeAccount":  m.FeeAccount,
			"amount":      strconv.FormatUint(m.Amount, 10),
			"fee":         strconv.FormatUint(m.Fee, 10),
		},
	}
}
