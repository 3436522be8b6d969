package receipt

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cardledger/native/common"
)

// Size is the storage footprint of a receipt: a single initialised flag.
const Size = 1

// Receipt marks a one-shot flow as processed. Its address, derived from the
// caller's reference and the flow's purpose, is the idempotency key.
type Receipt struct {
	Initialized bool
}

// IsInitialized implements common.Initializable.
func (r Receipt) IsInitialized() bool { return r.Initialized }

// Unpack decodes a receipt from account data.
func Unpack(data []byte) (Receipt, error) {
	if len(data) != Size {
		return Receipt{}, fmt.Errorf("%w: receipt length %d", common.ErrInvalidAccountData, len(data))
	}
	switch data[0] {
	case 0:
		return Receipt{}, nil
	case 1:
		return Receipt{Initialized: true}, nil
	default:
		return Receipt{}, fmt.Errorf("%w: receipt flag %d", common.ErrInvalidAccountData, data[0])
	}
}

// Pack encodes the receipt into dst.
func (r Receipt) Pack(dst []byte) error {
	if len(dst) != Size {
		return fmt.Errorf("%w: receipt length %d", common.ErrInvalidAccountData, len(dst))
	}
	dst[0] = 0
	if r.Initialized {
		dst[0] = 1
	}
	return nil
}

// DepositArgs parameterises InitDeposit.
type DepositArgs struct {
	Amount uint64
	FeeBps uint16
	Key    solana.PublicKey
	Bump   uint8
}

// WithdrawArgs parameterises InitWithdrawal.
type WithdrawArgs struct {
	Amount   uint64
	FeeBps   uint16
	Key      solana.PublicKey
	Bump     uint8
	FixedFee uint64
}

// FundingArgs parameterises InitFunding. The fee is carved out of Amount
// rather than charged on top of it.
type FundingArgs struct {
	Amount uint64
	FeeBps uint16
	Key    solana.PublicKey
	Bump   uint8
}
