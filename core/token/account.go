package token

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// AccountSize is the encoded length of a token account.
const AccountSize = 73

// ProgramID identifies the token ledger.
var ProgramID = solana.TokenProgramID

// NativeMint is the sentinel mint that stands for the ledger's native
// lamports rather than a token.
var NativeMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// AccountState tracks whether a token account has been initialised.
type AccountState uint8

const (
	StateUninitialized AccountState = iota
	StateInitialized
)

var ErrInvalidAccountData = errors.New("token: invalid account data")

// Account is the decoded content of a token account.
type Account struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
	State  AccountState
}

// IsInitialized reports whether the account has been initialised.
func (a *Account) IsInitialized() bool {
	return a != nil && a.State == StateInitialized
}

// Unpack decodes a token account from raw account data.
func Unpack(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidAccountData, len(data))
	}
	var acc Account
	if err := bin.NewBorshDecoder(data).Decode(&acc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return &acc, nil
}

// Pack encodes the account into dst, which must be AccountSize bytes long.
func (a *Account) Pack(dst []byte) error {
	if len(dst) != AccountSize {
		return fmt.Errorf("%w: length %d", ErrInvalidAccountData, len(dst))
	}
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(*a); err != nil {
		return err
	}
	copy(dst, buf.Bytes())
	return nil
}

// NewAccountData returns the packed representation of an initialised account.
func NewAccountData(mint, owner solana.PublicKey, amount uint64) []byte {
	data := make([]byte, AccountSize)
	acc := &Account{Mint: mint, Owner: owner, Amount: amount, State: StateInitialized}
	if err := acc.Pack(data); err != nil {
		panic(err)
	}
	return data
}
