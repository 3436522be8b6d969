package token

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"cardledger/core/ledger"
	"cardledger/storage"
)

const (
	tagInitializeAccount uint8 = 1
	tagTransfer          uint8 = 3
	tagCloseAccount      uint8 = 9
)

var (
	ErrInvalidInstruction = errors.New("token: invalid instruction")
	ErrNotEnoughAccounts  = errors.New("token: not enough account keys")
	ErrIncorrectProgram   = errors.New("token: account not owned by token program")
	ErrAlreadyInUse       = errors.New("token: account already initialized")
	ErrUninitialized      = errors.New("token: account not initialized")
	ErrOwnerMismatch      = errors.New("token: owner does not match")
	ErrMintMismatch       = errors.New("token: mint mismatch")
	ErrInsufficientFunds  = errors.New("token: insufficient funds")
	ErrNonZeroBalance     = errors.New("token: cannot close account with non-zero balance")
	ErrOverflow           = errors.New("token: balance overflow")
)

type amountArgs struct {
	Amount uint64
}

// NewInitializeAccount builds an instruction binding account to mint and
// owner. The account must already be allocated with AccountSize bytes and
// assigned to the token program.
func NewInitializeAccount(account, mint, owner solana.PublicKey) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: ProgramID,
		Accounts:  []ledger.AccountMeta{ledger.Writable(account), ledger.ReadOnly(mint), ledger.ReadOnly(owner)},
		Data:      []byte{tagInitializeAccount},
	}
}

// NewTransfer builds an instruction moving amount between two token accounts
// of the same mint.
func NewTransfer(source, destination, authority solana.PublicKey, amount uint64) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: ProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(source),
			ledger.Writable(destination),
			ledger.Signer(authority),
		},
		Data: append([]byte{tagTransfer}, ledger.MustEncode(amountArgs{Amount: amount})...),
	}
}

// NewCloseAccount builds an instruction releasing an empty token account and
// sending its lamports to destination.
func NewCloseAccount(account, destination, authority solana.PublicKey) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: ProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(account),
			ledger.Writable(destination),
			ledger.Signer(authority),
		},
		Data: []byte{tagCloseAccount},
	}
}

// Program is the token ledger. It only implements what the card program
// needs: account initialisation, transfers and closing.
type Program struct{}

// Process implements ledger.Program.
func (Program) Process(_ context.Context, env ledger.Env, accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstruction
	}
	switch data[0] {
	case tagInitializeAccount:
		return initializeAccount(env, accounts)
	case tagTransfer:
		var args amountArgs
		if err := bin.NewBorshDecoder(data[1:]).Decode(&args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		return transfer(accounts, args.Amount)
	case tagCloseAccount:
		return closeAccount(accounts)
	default:
		return fmt.Errorf("%w: tag %d", ErrInvalidInstruction, data[0])
	}
}

func initializeAccount(env ledger.Env, accounts []*ledger.AccountInfo) error {
	if len(accounts) < 3 {
		return ErrNotEnoughAccounts
	}
	target, mint, owner := accounts[0], accounts[1], accounts[2]
	if !target.Owner.Equals(env.ProgramID()) {
		return fmt.Errorf("%w: %s", ErrIncorrectProgram, target.Key)
	}
	if len(target.Data) != AccountSize {
		return fmt.Errorf("%w: %s", ErrInvalidAccountData, target.Key)
	}
	current, err := Unpack(target.Data)
	if err != nil {
		return err
	}
	if current.IsInitialized() {
		return fmt.Errorf("%w: %s", ErrAlreadyInUse, target.Key)
	}
	acc := &Account{Mint: mint.Key, Owner: owner.Key, State: StateInitialized}
	return acc.Pack(target.Data)
}

func load(info *ledger.AccountInfo) (*Account, error) {
	if !info.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("%w: %s", ErrIncorrectProgram, info.Key)
	}
	acc, err := Unpack(info.Data)
	if err != nil {
		return nil, err
	}
	if !acc.IsInitialized() {
		return nil, fmt.Errorf("%w: %s", ErrUninitialized, info.Key)
	}
	return acc, nil
}

func checkAuthority(acc *Account, authority *ledger.AccountInfo) error {
	if !authority.IsSigner {
		return fmt.Errorf("%w: %s", ledger.ErrMissingSignature, authority.Key)
	}
	if !acc.Owner.Equals(authority.Key) {
		return fmt.Errorf("%w: want %s, got %s", ErrOwnerMismatch, acc.Owner, authority.Key)
	}
	return nil
}

func transfer(accounts []*ledger.AccountInfo, amount uint64) error {
	if len(accounts) < 3 {
		return ErrNotEnoughAccounts
	}
	srcInfo, dstInfo, authority := accounts[0], accounts[1], accounts[2]
	src, err := load(srcInfo)
	if err != nil {
		return err
	}
	dst, err := load(dstInfo)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return fmt.Errorf("%w: %s vs %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	if err := checkAuthority(src, authority); err != nil {
		return err
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, need %d", ErrInsufficientFunds, srcInfo.Key, src.Amount, amount)
	}
	if srcInfo.Key.Equals(dstInfo.Key) {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := src.Pack(srcInfo.Data); err != nil {
		return err
	}
	return dst.Pack(dstInfo.Data)
}

func closeAccount(accounts []*ledger.AccountInfo) error {
	if len(accounts) < 3 {
		return ErrNotEnoughAccounts
	}
	target, destination, authority := accounts[0], accounts[1], accounts[2]
	acc, err := load(target)
	if err != nil {
		return err
	}
	if err := checkAuthority(acc, authority); err != nil {
		return err
	}
	if acc.Amount != 0 {
		return fmt.Errorf("%w: %s holds %d", ErrNonZeroBalance, target.Key, acc.Amount)
	}
	destination.Lamports += target.Lamports
	target.Lamports = 0
	target.Data = nil
	target.Owner = solana.SystemProgramID
	return nil
}

// Fund writes an initialised token account straight into the bank, funded
// for rent exemption. It is meant for genesis allocation and fixtures.
func Fund(bank *ledger.Bank, rent ledger.Rent, key, mint, owner solana.PublicKey, amount uint64) error {
	return bank.SetAccount(key, &ledger.Account{
		Owner:    ProgramID,
		Lamports: rent.MinimumBalance(AccountSize),
		Data:     NewAccountData(mint, owner, amount),
	})
}

// Balance returns the token amount held by key, or an error when key is not
// an initialised token account.
func Balance(bank *ledger.Bank, key solana.PublicKey) (uint64, error) {
	acc, ok, err := bank.Account(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	decoded, err := load(&ledger.AccountInfo{Key: key, Account: acc})
	if err != nil {
		return 0, err
	}
	return decoded.Amount, nil
}
