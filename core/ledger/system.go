package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// MaxPermittedDataLength caps the space a single account may allocate.
const MaxPermittedDataLength = 10 * 1024 * 1024

const (
	systemCreateAccount uint32 = 0
	systemTransfer      uint32 = 2
)

var (
	ErrAccountInUse          = errors.New("system: account already in use")
	ErrInsufficientFunds     = errors.New("system: insufficient lamports")
	ErrInvalidSpace          = errors.New("system: requested space too large")
	ErrTransferFromData      = errors.New("system: source carries data or is not system owned")
	ErrInvalidSystemPayload  = errors.New("system: invalid instruction data")
	ErrSystemNotEnoughInputs = errors.New("system: not enough account keys")
)

type createAccountArgs struct {
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

type transferArgs struct {
	Lamports uint64
}

// NewCreateAccount builds a system instruction that funds account with
// lamports from payer, allocates space bytes and assigns it to owner. Both
// payer and account must sign.
func NewCreateAccount(payer, account solana.PublicKey, lamports, space uint64, owner solana.PublicKey) Instruction {
	return Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []AccountMeta{WritableSigner(payer), WritableSigner(account)},
		Data:      MustEncode(systemCreateAccount, createAccountArgs{Lamports: lamports, Space: space, Owner: owner}),
	}
}

// NewTransfer builds a system instruction moving lamports between two
// accounts. The source must be a data-less, system-owned signer.
func NewTransfer(from, to solana.PublicKey, lamports uint64) Instruction {
	return Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []AccountMeta{WritableSigner(from), Writable(to)},
		Data:      MustEncode(systemTransfer, transferArgs{Lamports: lamports}),
	}
}

// MustEncode Borsh-encodes values back to back. It panics on encoder failure,
// which only happens for unsupported types.
func MustEncode(values ...interface{}) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			panic(fmt.Sprintf("ledger: encode %T: %v", v, err))
		}
	}
	return buf.Bytes()
}

// SystemProgram owns fresh accounts and moves native lamports.
type SystemProgram struct{}

// Process implements Program. The wire format is a little-endian u32 tag
// followed by the Borsh arguments; leftover bytes are rejected.
func (SystemProgram) Process(_ context.Context, _ Env, accounts []*AccountInfo, data []byte) error {
	dec := bin.NewBorshDecoder(data)
	tag, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSystemPayload, err)
	}
	switch tag {
	case systemCreateAccount:
		var args createAccountArgs
		if err := decodeArgs(dec, &args); err != nil {
			return err
		}
		return createAccount(accounts, args)
	case systemTransfer:
		var args transferArgs
		if err := decodeArgs(dec, &args); err != nil {
			return err
		}
		return transferLamports(accounts, args.Lamports)
	default:
		return fmt.Errorf("%w: tag %d", ErrInvalidSystemPayload, tag)
	}
}

func decodeArgs(dec *bin.Decoder, args interface{}) error {
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSystemPayload, err)
	}
	if rest := dec.Remaining(); rest != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidSystemPayload, rest)
	}
	return nil
}

func createAccount(accounts []*AccountInfo, args createAccountArgs) error {
	if len(accounts) < 2 {
		return ErrSystemNotEnoughInputs
	}
	payer, target := accounts[0], accounts[1]
	if !payer.IsSigner || !target.IsSigner {
		return ErrMissingSignature
	}
	if !target.DataIsEmpty() || !target.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrAccountInUse, target.Key)
	}
	if args.Space > MaxPermittedDataLength {
		return ErrInvalidSpace
	}
	if payer.Lamports < args.Lamports {
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, payer.Key)
	}
	payer.Lamports -= args.Lamports
	target.Lamports += args.Lamports
	target.Data = make([]byte, args.Space)
	target.Owner = args.Owner
	return nil
}

func transferLamports(accounts []*AccountInfo, lamports uint64) error {
	if len(accounts) < 2 {
		return ErrSystemNotEnoughInputs
	}
	from, to := accounts[0], accounts[1]
	if !from.IsSigner {
		return ErrMissingSignature
	}
	if !from.DataIsEmpty() || !from.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrTransferFromData, from.Key)
	}
	if from.Lamports < lamports {
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, from.Key)
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
