// Package transfer moves value on behalf of the card program, either native
// lamports through the system program or tokens through the token ledger.
package transfer

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cardledger/core/ledger"
	"cardledger/core/token"
)

// Request describes a single movement of value.
type Request struct {
	Source      *ledger.AccountInfo
	Destination *ledger.AccountInfo
	// Authority controls Source. For native transfers it is Source itself.
	Authority *ledger.AccountInfo
	Amount    uint64
	// SignerSeeds are used when Authority is a derived address.
	SignerSeeds [][][]byte
}

// CloseRequest releases a vault once its escrow is finished.
type CloseRequest struct {
	Vault *ledger.AccountInfo
	// Residue receives any balance still left in the vault.
	Residue *ledger.AccountInfo
	// Recipient receives the lamports that kept the vault alive.
	Recipient   *ledger.AccountInfo
	Authority   *ledger.AccountInfo
	SignerSeeds [][][]byte
}

// Mover is implemented once per asset kind.
type Mover interface {
	Transfer(ctx context.Context, env ledger.Env, req Request) error
	CloseVault(ctx context.Context, env ledger.Env, req CloseRequest) error
	Native() bool
}

// IsNative reports whether mint is the native sentinel.
func IsNative(mint solana.PublicKey) bool {
	return mint.Equals(token.NativeMint)
}

// Select returns the mover for mint.
func Select(mint solana.PublicKey) Mover {
	if IsNative(mint) {
		return NativeMover{}
	}
	return TokenMover{}
}

// NativeMover moves lamports with the system program.
type NativeMover struct{}

func (NativeMover) Native() bool { return true }

// Transfer implements Mover.
func (NativeMover) Transfer(ctx context.Context, env ledger.Env, req Request) error {
	if req.Amount == 0 {
		return nil
	}
	ix := ledger.NewTransfer(req.Source.Key, req.Destination.Key, req.Amount)
	return env.Invoke(ctx, ix, req.SignerSeeds...)
}

// CloseVault sweeps the entire vault balance to the residue account. A
// native vault has no separate rent to return.
func (m NativeMover) CloseVault(ctx context.Context, env ledger.Env, req CloseRequest) error {
	return m.Transfer(ctx, env, Request{
		Source:      req.Vault,
		Destination: req.Residue,
		Authority:   req.Vault,
		Amount:      req.Vault.Lamports,
		SignerSeeds: req.SignerSeeds,
	})
}

// TokenMover moves tokens with the token ledger.
type TokenMover struct{}

func (TokenMover) Native() bool { return false }

// Transfer implements Mover.
func (TokenMover) Transfer(ctx context.Context, env ledger.Env, req Request) error {
	if req.Amount == 0 {
		return nil
	}
	ix := token.NewTransfer(req.Source.Key, req.Destination.Key, req.Authority.Key, req.Amount)
	return env.Invoke(ctx, ix, req.SignerSeeds...)
}

// CloseVault returns any residual tokens, then closes the vault token account
// so its lamports go to the recipient.
func (m TokenMover) CloseVault(ctx context.Context, env ledger.Env, req CloseRequest) error {
	if req.Vault.DataIsEmpty() {
		return nil
	}
	vault, err := token.Unpack(req.Vault.Data)
	if err != nil {
		return fmt.Errorf("close vault %s: %w", req.Vault.Key, err)
	}
	if err := m.Transfer(ctx, env, Request{
		Source:      req.Vault,
		Destination: req.Residue,
		Authority:   req.Authority,
		Amount:      vault.Amount,
		SignerSeeds: req.SignerSeeds,
	}); err != nil {
		return err
	}
	ix := token.NewCloseAccount(req.Vault.Key, req.Recipient.Key, req.Authority.Key)
	return env.Invoke(ctx, ix, req.SignerSeeds...)
}
