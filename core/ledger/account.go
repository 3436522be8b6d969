package ledger

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// Account is the committed state of a single ledger address.
type Account struct {
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// NewSystemAccount returns an empty account owned by the system program.
func NewSystemAccount(lamports uint64) *Account {
	return &Account{Owner: solana.SystemProgramID, Lamports: lamports}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Data = append([]byte(nil), a.Data...)
	return &clone
}

// Equal reports whether both accounts carry the same owner, balance and data.
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Owner.Equals(other.Owner) && a.Lamports == other.Lamports && bytes.Equal(a.Data, other.Data)
}

// DataIsEmpty reports whether the account carries no data.
func (a *Account) DataIsEmpty() bool {
	return a == nil || len(a.Data) == 0
}

// AccountInfo is the view of an account handed to a program. The embedded
// account is shared between the caller and any program it invokes, so writes
// made by a callee are visible to the caller when the call returns.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	*Account
}

// AccountMeta describes how an instruction references an account.
type AccountMeta struct {
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// ReadOnly references key without signing or write access.
func ReadOnly(key solana.PublicKey) AccountMeta {
	return AccountMeta{PublicKey: key}
}

// Writable references key with write access.
func Writable(key solana.PublicKey) AccountMeta {
	return AccountMeta{PublicKey: key, IsWritable: true}
}

// Signer references key as a read-only signer.
func Signer(key solana.PublicKey) AccountMeta {
	return AccountMeta{PublicKey: key, IsSigner: true}
}

// WritableSigner references key as a writable signer.
func WritableSigner(key solana.PublicKey) AccountMeta {
	return AccountMeta{PublicKey: key, IsSigner: true, IsWritable: true}
}

// Instruction is a single program invocation with its ordered account list.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}
