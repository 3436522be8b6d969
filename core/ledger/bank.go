package ledger

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"cardledger/storage"
)

var accountPrefix = []byte("account:")

func accountKey(key solana.PublicKey) []byte {
	buf := make([]byte, len(accountPrefix)+len(key))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], key[:])
	return ethcrypto.Keccak256(buf)
}

type storedAccount struct {
	Owner    [32]byte
	Lamports uint64
	Data     []byte
}

// Bank persists committed accounts in a key-value database. Keys are hashed
// with keccak256 and values are RLP encoded.
type Bank struct {
	db storage.Database
}

// NewBank creates a bank on top of db.
func NewBank(db storage.Database) *Bank {
	return &Bank{db: db}
}

// Account loads the committed state for key. The boolean is false when the
// address holds nothing.
func (b *Bank) Account(key solana.PublicKey) (*Account, bool, error) {
	data, err := b.db.Get(accountKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, fmt.Errorf("ledger: decode account %s: %w", key, err)
	}
	return &Account{
		Owner:    solana.PublicKeyFromBytes(stored.Owner[:]),
		Lamports: stored.Lamports,
		Data:     stored.Data,
	}, true, nil
}

// Lamports returns the committed balance of key, zero when absent.
func (b *Bank) Lamports(key solana.PublicKey) (uint64, error) {
	acc, ok, err := b.Account(key)
	if err != nil || !ok {
		return 0, err
	}
	return acc.Lamports, nil
}

// SetAccount writes acc directly, bypassing instruction execution. It is meant
// for genesis allocation and fixtures. An account with zero lamports is
// removed.
func (b *Bank) SetAccount(key solana.PublicKey, acc *Account) error {
	batch := new(storage.Batch)
	if err := stageAccount(batch, key, acc); err != nil {
		return err
	}
	return b.db.Write(batch)
}

func (b *Bank) commit(changes map[solana.PublicKey]*Account) error {
	if len(changes) == 0 {
		return nil
	}
	batch := new(storage.Batch)
	for key, acc := range changes {
		if err := stageAccount(batch, key, acc); err != nil {
			return err
		}
	}
	return b.db.Write(batch)
}

func stageAccount(batch *storage.Batch, key solana.PublicKey, acc *Account) error {
	if acc == nil || acc.Lamports == 0 {
		batch.Delete(accountKey(key))
		return nil
	}
	encoded, err := rlp.EncodeToBytes(storedAccount{
		Owner:    acc.Owner,
		Lamports: acc.Lamports,
		Data:     acc.Data,
	})
	if err != nil {
		return fmt.Errorf("ledger: encode account %s: %w", key, err)
	}
	batch.Put(accountKey(key), encoded)
	return nil
}
