package escrow

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"cardledger/native/common"
	"cardledger/native/fees"
)

// RecordSize is the encoded length of a live escrow record.
const RecordSize = 253

// TombstoneSize is the length an escrow record shrinks to once closed.
const TombstoneSize = 1

// State is the lifecycle position of an escrow. Transitions only move
// forward: Uninitialized to Initialized, then Settled or Canceled (or
// Initialized directly under the abandon close policy), then Closed.
type State uint8

const (
	StateUninitialized State = iota
	StateInitialized
	StateSettled
	StateCanceled
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateSettled:
		return "settled"
	case StateCanceled:
		return "canceled"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Valid reports whether the state value is within the supported range.
func (s State) Valid() bool { return s <= StateClosed }

// requireActive fails unless the escrow is Initialized, naming the state that
// blocks the transition.
func (s State) requireActive() error {
	switch s {
	case StateInitialized:
		return nil
	case StateUninitialized:
		return common.ErrAccountNotInitialized
	case StateSettled:
		return common.ErrAlreadySettled
	case StateCanceled:
		return common.ErrAlreadyCanceled
	case StateClosed:
		return common.ErrAlreadyClosed
	default:
		return fmt.Errorf("%w: %s", common.ErrInvalidAccountData, s)
	}
}

// StatusView exposes the state as independent capabilities for callers that
// still reason in flags.
type StatusView struct {
	IsInitialized bool
	IsSettled     bool
	IsCanceled    bool
	IsClosed      bool
}

// FromFlags maps the legacy three-flag representation onto a State. A
// combination that was never reachable (settled and canceled) is rejected.
func FromFlags(initialized, settled, canceled bool) (State, error) {
	switch {
	case settled && canceled:
		return 0, fmt.Errorf("%w: settled and canceled", common.ErrInvalidAccountData)
	case !initialized && (settled || canceled):
		return 0, fmt.Errorf("%w: finished but never initialized", common.ErrInvalidAccountData)
	case settled:
		return StateSettled, nil
	case canceled:
		return StateCanceled, nil
	case initialized:
		return StateInitialized, nil
	default:
		return StateUninitialized, nil
	}
}

// Flags returns the legacy three-flag representation. Closed escrows report
// no flags since their record no longer exists in that shape.
func (s State) Flags() (initialized, settled, canceled bool) {
	switch s {
	case StateInitialized:
		return true, false, false
	case StateSettled:
		return true, true, false
	case StateCanceled:
		return true, false, true
	default:
		return false, false, false
	}
}

// Escrow is the decoded escrow record.
type Escrow struct {
	State      State
	Amount     uint64
	Fees       fees.Schedule
	SrcToken   solana.PublicKey
	DstToken   solana.PublicKey
	VaultToken solana.PublicKey
	FeeToken   solana.PublicKey
	Mint       solana.PublicKey
	Authority  solana.PublicKey
	Reference  solana.PublicKey
	VaultBump  uint8
	// SettledAt is set by Settle and nil otherwise.
	SettledAt *int64
}

// IsInitialized implements common.Initializable. It is true for every state
// past Uninitialized.
func (e *Escrow) IsInitialized() bool {
	return e != nil && e.State != StateUninitialized
}

// Status returns the capability view of the record.
func (e *Escrow) Status() StatusView {
	if e == nil {
		return StatusView{}
	}
	initialized, settled, canceled := e.State.Flags()
	return StatusView{
		IsInitialized: initialized || e.State == StateClosed,
		IsSettled:     settled,
		IsCanceled:    canceled,
		IsClosed:      e.State == StateClosed,
	}
}

// TotalFee returns the proportional and fixed fee owed on settlement.
func (e *Escrow) TotalFee() (uint64, error) { return e.Fees.Total(e.Amount) }

// Funded returns what the vault holds while the escrow is Initialized.
func (e *Escrow) Funded() (uint64, error) { return e.Fees.TotalWithAmount(e.Amount) }

type record struct {
	State        uint8
	Amount       uint64
	FeeBps       uint16
	FixedFee     uint64
	SrcToken     solana.PublicKey
	DstToken     solana.PublicKey
	VaultToken   solana.PublicKey
	FeeToken     solana.PublicKey
	Mint         solana.PublicKey
	Authority    solana.PublicKey
	Reference    solana.PublicKey
	VaultBump    uint8
	HasSettledAt uint8
	SettledAt    int64
}

// Unpack decodes account data. Empty data decodes as Uninitialized and a
// one-byte tombstone as Closed.
func Unpack(data []byte) (*Escrow, error) {
	switch len(data) {
	case 0:
		return &Escrow{State: StateUninitialized}, nil
	case TombstoneSize:
		if State(data[0]) != StateClosed {
			return nil, fmt.Errorf("%w: tombstone state %d", common.ErrInvalidAccountData, data[0])
		}
		return &Escrow{State: StateClosed}, nil
	case RecordSize:
	default:
		return nil, fmt.Errorf("%w: escrow length %d", common.ErrInvalidAccountData, len(data))
	}
	var rec record
	if err := bin.NewBorshDecoder(data).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidAccountData, err)
	}
	state := State(rec.State)
	if !state.Valid() {
		return nil, fmt.Errorf("%w: state %d", common.ErrInvalidAccountData, rec.State)
	}
	e := &Escrow{
		State:      state,
		Amount:     rec.Amount,
		Fees:       fees.Schedule{Bps: rec.FeeBps, Fixed: rec.FixedFee},
		SrcToken:   rec.SrcToken,
		DstToken:   rec.DstToken,
		VaultToken: rec.VaultToken,
		FeeToken:   rec.FeeToken,
		Mint:       rec.Mint,
		Authority:  rec.Authority,
		Reference:  rec.Reference,
		VaultBump:  rec.VaultBump,
	}
	if rec.HasSettledAt != 0 {
		at := rec.SettledAt
		e.SettledAt = &at
	}
	return e, nil
}

// Pack encodes the record into dst. A Closed escrow packs into a tombstone.
func (e *Escrow) Pack(dst []byte) error {
	if e.State == StateClosed {
		if len(dst) != TombstoneSize {
			return fmt.Errorf("%w: tombstone length %d", common.ErrInvalidAccountData, len(dst))
		}
		dst[0] = byte(StateClosed)
		return nil
	}
	if len(dst) != RecordSize {
		return fmt.Errorf("%w: escrow length %d", common.ErrInvalidAccountData, len(dst))
	}
	rec := record{
		State:      uint8(e.State),
		Amount:     e.Amount,
		FeeBps:     e.Fees.Bps,
		FixedFee:   e.Fees.Fixed,
		SrcToken:   e.SrcToken,
		DstToken:   e.DstToken,
		VaultToken: e.VaultToken,
		FeeToken:   e.FeeToken,
		Mint:       e.Mint,
		Authority:  e.Authority,
		Reference:  e.Reference,
		VaultBump:  e.VaultBump,
	}
	if e.SettledAt != nil {
		rec.HasSettledAt = 1
		rec.SettledAt = *e.SettledAt
	}
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(rec); err != nil {
		return err
	}
	if buf.Len() != RecordSize {
		return fmt.Errorf("%w: encoded %d bytes", common.ErrInvalidAccountData, buf.Len())
	}
	copy(dst, buf.Bytes())
	return nil
}

// InitArgs parameterises InitEscrow.
type InitArgs struct {
	Amount   uint64
	FeeBps   uint16
	FixedFee uint64
	Bump     uint8
}
