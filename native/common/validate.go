package common

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cardledger/core/ledger"
	"cardledger/core/token"
)

// Initializable is implemented by decoded records carrying an initialised
// marker.
type Initializable interface {
	IsInitialized() bool
}

// RequireSigner fails unless the account signed the instruction.
func RequireSigner(info *ledger.AccountInfo) error {
	if info == nil || !info.IsSigner {
		return fmt.Errorf("%w: %s", ErrInvalidSigner, keyOf(info))
	}
	return nil
}

// RequireWritable fails unless the instruction grants write access.
func RequireWritable(info *ledger.AccountInfo) error {
	if info == nil || !info.IsWritable {
		return fmt.Errorf("%w: %s", ErrNotWritable, keyOf(info))
	}
	return nil
}

// RequireOwner fails unless owner is the program owning the account.
func RequireOwner(info *ledger.AccountInfo, owner solana.PublicKey) error {
	if info == nil || info.Account == nil || !info.Owner.Equals(owner) {
		return fmt.Errorf("%w: %s not owned by %s", ErrInvalidOwner, keyOf(info), owner)
	}
	return nil
}

// RequireKey fails unless the account is key. ctxErr names the account in
// the failure and defaults to ErrInvalidKeyMatch.
func RequireKey(info *ledger.AccountInfo, key solana.PublicKey, ctxErr error) error {
	if info != nil && info.Key.Equals(key) {
		return nil
	}
	if ctxErr == nil {
		ctxErr = ErrInvalidKeyMatch
	}
	return fmt.Errorf("%w: want %s, got %s", ctxErr, key, keyOf(info))
}

// RequireInitialized fails unless the record is initialised.
func RequireInitialized(record Initializable) error {
	if record == nil || !record.IsInitialized() {
		return ErrAccountNotInitialized
	}
	return nil
}

// RequireUninitializedStorage fails when the account already holds program
// data.
func RequireUninitializedStorage(info *ledger.AccountInfo) error {
	if info == nil || info.Account == nil {
		return ErrNotEnoughAccounts
	}
	if !info.DataIsEmpty() || !info.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, info.Key)
	}
	return nil
}

// RequireRentExempt fails unless the account balance covers the exemption
// minimum for its data.
func RequireRentExempt(rent ledger.Rent, info *ledger.AccountInfo) error {
	if !rent.IsExempt(info.Lamports, len(info.Data)) {
		return fmt.Errorf("%w: %s", ErrNotRentExempt, info.Key)
	}
	return nil
}

// RequireTokenAccount decodes a token account and checks that it is owned by
// the token ledger, initialised, controlled by owner and denominated in mint.
func RequireTokenAccount(info *ledger.AccountInfo, owner, mint solana.PublicKey) (*token.Account, error) {
	if err := RequireOwner(info, token.ProgramID); err != nil {
		return nil, err
	}
	acc, err := token.Unpack(info.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAccountData, info.Key, err)
	}
	if !acc.IsInitialized() {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotInitialized, info.Key)
	}
	if !acc.Owner.Equals(owner) {
		return nil, fmt.Errorf("%w: token %s held by %s, want %s", ErrInvalidOwner, info.Key, acc.Owner, owner)
	}
	if !acc.Mint.Equals(mint) {
		return nil, fmt.Errorf("%w: token %s is %s, want %s", ErrInvalidMint, info.Key, acc.Mint, mint)
	}
	return acc, nil
}

// Accounts walks an ordered account list.
type Accounts struct {
	list []*ledger.AccountInfo
	next int
}

// NewAccounts wraps the accounts handed to an instruction.
func NewAccounts(list []*ledger.AccountInfo) *Accounts {
	return &Accounts{list: list}
}

// Next returns the following account or ErrNotEnoughAccounts.
func (a *Accounts) Next() (*ledger.AccountInfo, error) {
	if a.next >= len(a.list) {
		return nil, fmt.Errorf("%w: need at least %d", ErrNotEnoughAccounts, a.next+1)
	}
	info := a.list[a.next]
	a.next++
	return info, nil
}

// Take returns the next n accounts.
func (a *Accounts) Take(n int) ([]*ledger.AccountInfo, error) {
	if a.next+n > len(a.list) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughAccounts, a.next+n, len(a.list))
	}
	out := a.list[a.next : a.next+n]
	a.next += n
	return out, nil
}

func keyOf(info *ledger.AccountInfo) string {
	if info == nil {
		return "<missing>"
	}
	return info.Key.String()
}
