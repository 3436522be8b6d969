package common

import (
	"errors"
	"fmt"

	"cardledger/native/fees"
)

var (
	ErrInvalidOwner          = errors.New("card: invalid owner")
	ErrInvalidMint           = errors.New("card: invalid mint")
	ErrInvalidInstruction    = errors.New("card: invalid instruction")
	ErrNotRentExempt         = errors.New("card: account not rent exempt")
	ErrAlreadySettled        = errors.New("card: escrow already settled")
	ErrAlreadyCanceled       = errors.New("card: escrow already canceled")
	ErrNotSettledOrCanceled  = errors.New("card: escrow not settled or canceled")
	ErrAccountNotInitialized = errors.New("card: account not initialized")
	ErrInvalidKeyMatch       = errors.New("card: account key mismatch")
	ErrAlreadyClosed         = errors.New("card: escrow already closed")
	ErrAlreadyInitialized    = errors.New("card: account already initialized")
	ErrInvalidSigner         = errors.New("card: missing required signature")
	ErrInvalidAccountData    = errors.New("card: invalid account data")
	ErrNotEnoughAccounts     = errors.New("card: not enough account keys")
	ErrNotWritable           = errors.New("card: account not writable")

	// ErrArithmeticOverflow is shared with the fee calculator so callers can
	// match either package's value.
	ErrArithmeticOverflow = fees.ErrArithmeticOverflow
)

// Context errors narrow ErrInvalidKeyMatch to the account that failed. They
// all match ErrInvalidKeyMatch through errors.Is.
var (
	ErrInvalidAuthority  = fmt.Errorf("%w: authority", ErrInvalidKeyMatch)
	ErrInvalidVaultOwner = fmt.Errorf("%w: vault owner", ErrInvalidKeyMatch)
	ErrInvalidSrcToken   = fmt.Errorf("%w: source token", ErrInvalidKeyMatch)
	ErrInvalidDstToken   = fmt.Errorf("%w: destination token", ErrInvalidKeyMatch)
	ErrInvalidFeeToken   = fmt.Errorf("%w: fee token", ErrInvalidKeyMatch)
	ErrInvalidVaultToken = fmt.Errorf("%w: vault token", ErrInvalidKeyMatch)
)

// Codes are stable numeric identifiers reported to clients. The first block
// keeps the numbering used by deployed clients.
const (
	CodeInvalidOwner uint32 = iota
	CodeInvalidMint
	CodeInvalidInstruction
	CodeNotRentExempt
	CodeAmountMismatch
	CodeInvalidAuthority
	CodeArithmeticOverflow
	CodeAlreadySettled
	CodeAlreadyCanceled
	CodeFeeOverflow
	CodeNotSettledOrCanceled
	CodeAccountNotInitialized
	CodeMathOverflow
	CodeInvalidKeyMatch
	CodeAlreadyClosed
	CodeAlreadyInitialized
	CodeInvalidSigner
	CodeInvalidAccountData
	CodeNotEnoughAccounts
	CodeNotWritable
)

// Order matters: context errors are checked before the generic key mismatch.
var codeTable = []struct {
	err  error
	code uint32
}{
	{ErrInvalidAuthority, CodeInvalidAuthority},
	{ErrInvalidKeyMatch, CodeInvalidKeyMatch},
	{ErrInvalidOwner, CodeInvalidOwner},
	{ErrInvalidMint, CodeInvalidMint},
	{ErrInvalidInstruction, CodeInvalidInstruction},
	{ErrNotRentExempt, CodeNotRentExempt},
	{ErrArithmeticOverflow, CodeArithmeticOverflow},
	{ErrAlreadySettled, CodeAlreadySettled},
	{ErrAlreadyCanceled, CodeAlreadyCanceled},
	{ErrNotSettledOrCanceled, CodeNotSettledOrCanceled},
	{ErrAccountNotInitialized, CodeAccountNotInitialized},
	{ErrAlreadyClosed, CodeAlreadyClosed},
	{ErrAlreadyInitialized, CodeAlreadyInitialized},
	{ErrInvalidSigner, CodeInvalidSigner},
	{ErrInvalidAccountData, CodeInvalidAccountData},
	{ErrNotEnoughAccounts, CodeNotEnoughAccounts},
	{ErrNotWritable, CodeNotWritable},
}

// Code maps a program error to its numeric code. The boolean is false for
// nil and for errors raised outside the card program, such as runtime or
// token ledger failures.
func Code(err error) (uint32, bool) {
	if err == nil {
		return 0, false
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code, true
		}
	}
	return 0, false
}
