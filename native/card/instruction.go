package card

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"cardledger/native/common"
	"cardledger/native/escrow"
	"cardledger/native/receipt"
)

// Tag selects the instruction variant. It is the first byte of the payload.
type Tag uint8

const (
	TagInitDeposit Tag = iota
	TagInitWithdrawal
	TagInitEscrow
	TagSettle
	TagCancel
	TagClose
	TagInitFunding
)

var tagNames = map[Tag]string{
	TagInitDeposit:    "init_deposit",
	TagInitWithdrawal: "init_withdrawal",
	TagInitEscrow:     "init_escrow",
	TagSettle:         "settle",
	TagCancel:         "cancel",
	TagClose:          "close",
	TagInitFunding:    "init_funding",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// Instruction is a decoded card program payload. Exactly one argument field
// is set for the variants that carry arguments.
type Instruction struct {
	Tag      Tag
	Deposit  *receipt.DepositArgs
	Withdraw *receipt.WithdrawArgs
	Funding  *receipt.FundingArgs
	Escrow   *escrow.InitArgs
}

// Decode parses an instruction payload.
func Decode(data []byte) (*Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", common.ErrInvalidInstruction)
	}
	ix := &Instruction{Tag: Tag(data[0])}
	payload := data[1:]
	var target interface{}
	switch ix.Tag {
	case TagInitDeposit:
		ix.Deposit = new(receipt.DepositArgs)
		target = ix.Deposit
	case TagInitWithdrawal:
		ix.Withdraw = new(receipt.WithdrawArgs)
		target = ix.Withdraw
	case TagInitEscrow:
		ix.Escrow = new(escrow.InitArgs)
		target = ix.Escrow
	case TagInitFunding:
		ix.Funding = new(receipt.FundingArgs)
		target = ix.Funding
	case TagSettle, TagCancel, TagClose:
		if len(payload) != 0 {
			return nil, fmt.Errorf("%w: %s takes no arguments, got %d bytes", common.ErrInvalidInstruction, ix.Tag, len(payload))
		}
		return ix, nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", common.ErrInvalidInstruction, data[0])
	}
	dec := bin.NewBorshDecoder(payload)
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrInvalidInstruction, ix.Tag, err)
	}
	if rest := dec.Remaining(); rest != 0 {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", common.ErrInvalidInstruction, ix.Tag, rest)
	}
	return ix, nil
}

// Encode serialises the instruction.
func (ix *Instruction) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(ix.Tag))
	var args interface{}
	switch ix.Tag {
	case TagInitDeposit:
		if ix.Deposit != nil {
			args = *ix.Deposit
		}
	case TagInitWithdrawal:
		if ix.Withdraw != nil {
			args = *ix.Withdraw
		}
	case TagInitEscrow:
		if ix.Escrow != nil {
			args = *ix.Escrow
		}
	case TagInitFunding:
		if ix.Funding != nil {
			args = *ix.Funding
		}
	case TagSettle, TagCancel, TagClose:
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", common.ErrInvalidInstruction, ix.Tag)
	}
	if args == nil {
		return nil, fmt.Errorf("%w: %s without arguments", common.ErrInvalidInstruction, ix.Tag)
	}
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mustEncode(ix *Instruction) []byte {
	data, err := ix.Encode()
	if err != nil {
		panic(err)
	}
	return data
}
