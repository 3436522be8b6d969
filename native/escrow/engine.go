// Package escrow implements the card program's escrow state machine: a payer
// funds a vault held by a derived authority, an approval authority later
// settles to the destination and fee collector or cancels back to the source,
// and Close retires the record.
package escrow

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cardledger/core/ledger"
	"cardledger/core/token"
	"cardledger/native/common"
	"cardledger/native/transfer"
)

// Engine runs escrow transitions for one deployment. It holds no state of
// its own; every record lives in ledger accounts.
type Engine struct {
	deployment common.Deployment
}

// NewEngine creates an engine bound to the deployment's authority set and
// close policy.
func NewEngine(deployment common.Deployment) *Engine {
	return &Engine{deployment: deployment}
}

// Deployment returns the authority set the engine enforces.
func (e *Engine) Deployment() common.Deployment { return e.deployment }

// vaultContext bundles what every outbound vault movement needs.
type vaultContext struct {
	mover  transfer.Mover
	seeds  [][]byte
	owner  *ledger.AccountInfo
	vault  *ledger.AccountInfo
	record *Escrow
}

// Init funds the vault from the source and writes a new escrow record.
//
// Accounts: wallet(s), authority(s), fee payer(s,w), escrow(w), vault owner,
// vault(w), source(w), destination, fee, mint, reference, rent, system, token.
func (e *Engine) Init(ctx context.Context, env ledger.Env, accounts []*ledger.AccountInfo, args InitArgs) error {
	list, err := common.NewAccounts(accounts).Take(14)
	if err != nil {
		return err
	}
	wallet, authority, feePayer, escrowInfo := list[0], list[1], list[2], list[3]
	vaultOwner, vault, source, destination := list[4], list[5], list[6], list[7]
	feeAccount, mint, reference, system, tokenProgram := list[8], list[9], list[10], list[12], list[13]

	if err := common.RequireSigner(wallet); err != nil {
		return err
	}
	if err := e.deployment.CheckAuthority(authority); err != nil {
		return err
	}
	if err := common.RequireSigner(feePayer); err != nil {
		return err
	}
	vaultAuthority, vaultBump, err := common.FindAddress(env.ProgramID(), reference.Key, common.PurposeVault)
	if err != nil {
		return err
	}
	if err := common.RequireKey(vaultOwner, vaultAuthority, common.ErrInvalidVaultOwner); err != nil {
		return err
	}
	if err := common.RequireKey(tokenProgram, token.ProgramID, nil); err != nil {
		return err
	}
	if err := common.RequireUninitializedStorage(escrowInfo); err != nil {
		return err
	}

	mover := transfer.Select(mint.Key)
	if mover.Native() {
		err = e.checkNativeEndpoints(wallet, vaultOwner, vault, source, destination, feeAccount)
	} else {
		err = e.checkTokenEndpoints(wallet, vaultOwner, vault, source, destination, feeAccount, mint)
	}
	if err != nil {
		return err
	}

	record := &Escrow{
		State:      StateInitialized,
		Amount:     args.Amount,
		SrcToken:   source.Key,
		DstToken:   destination.Key,
		VaultToken: vault.Key,
		FeeToken:   feeAccount.Key,
		Mint:       mint.Key,
		Authority:  authority.Key,
		Reference:  reference.Key,
		VaultBump:  vaultBump,
	}
	record.Fees.Bps = args.FeeBps
	record.Fees.Fixed = args.FixedFee
	total, err := record.Funded()
	if err != nil {
		return err
	}
	if err := mover.Transfer(ctx, env, transfer.Request{
		Source:      source,
		Destination: vault,
		Authority:   wallet,
		Amount:      total,
	}); err != nil {
		return err
	}

	if err := common.Allocate(ctx, env, common.AllocateParams{
		Account:       escrowInfo,
		Payer:         feePayer,
		SystemProgram: system,
		Space:         RecordSize,
		Seeds:         common.SignerSeeds(env.ProgramID(), reference.Key, common.PurposeEscrow, args.Bump),
	}); err != nil {
		return err
	}
	current, err := Unpack(escrowInfo.Data)
	if err != nil {
		return err
	}
	if current.State != StateUninitialized {
		return common.ErrAlreadyInitialized
	}
	if err := record.Pack(escrowInfo.Data); err != nil {
		return err
	}
	env.Emit(NewInitializedEvent(escrowInfo.Key.String(), record))
	env.Logger().Debug("escrow initialized",
		"escrow", escrowInfo.Key.String(),
		"amount", record.Amount,
		"funded", total)
	return nil
}

func (e *Engine) checkNativeEndpoints(wallet, vaultOwner, vault, source, destination, feeAccount *ledger.AccountInfo) error {
	if err := common.RequireKey(vault, vaultOwner.Key, common.ErrInvalidVaultOwner); err != nil {
		return err
	}
	if err := common.RequireKey(source, wallet.Key, common.ErrInvalidSrcToken); err != nil {
		return err
	}
	if err := common.RequireKey(destination, e.deployment.DepositCollector, common.ErrInvalidDstToken); err != nil {
		return err
	}
	return common.RequireKey(feeAccount, e.deployment.FeeCollector, common.ErrInvalidFeeToken)
}

func (e *Engine) checkTokenEndpoints(wallet, vaultOwner, vault, source, destination, feeAccount, mint *ledger.AccountInfo) error {
	checks := []struct {
		info  *ledger.AccountInfo
		owner solana.PublicKey
	}{
		{vault, vaultOwner.Key},
		{source, wallet.Key},
		{destination, e.deployment.DepositCollector},
		{feeAccount, e.deployment.FeeCollector},
	}
	for _, check := range checks {
		if _, err := common.RequireTokenAccount(check.info, check.owner, mint.Key); err != nil {
			return err
		}
	}
	return nil
}

// loadRecord decodes the escrow account. An account the program never wrote
// reads as Uninitialized.
func loadRecord(env ledger.Env, info *ledger.AccountInfo) (*Escrow, error) {
	if info.DataIsEmpty() {
		return &Escrow{State: StateUninitialized}, nil
	}
	if err := common.RequireOwner(info, env.ProgramID()); err != nil {
		return nil, err
	}
	return Unpack(info.Data)
}

// vaultFor validates the vault, mint, derived vault owner and token program
// against the record and prepares the signer seeds for outbound transfers.
func vaultFor(env ledger.Env, record *Escrow, vault, mint, vaultOwner, tokenProgram *ledger.AccountInfo) (*vaultContext, error) {
	if err := common.RequireKey(vault, record.VaultToken, common.ErrInvalidVaultToken); err != nil {
		return nil, err
	}
	if !mint.Key.Equals(record.Mint) {
		return nil, fmt.Errorf("%w: want %s, got %s", common.ErrInvalidMint, record.Mint, mint.Key)
	}
	seeds := common.SignerSeeds(env.ProgramID(), record.Reference, common.PurposeVault, record.VaultBump)
	owner, err := solana.CreateProgramAddress(seeds, env.ProgramID())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidVaultOwner, err)
	}
	if err := common.RequireKey(vaultOwner, owner, common.ErrInvalidVaultOwner); err != nil {
		return nil, err
	}
	if err := common.RequireKey(tokenProgram, token.ProgramID, nil); err != nil {
		return nil, err
	}
	return &vaultContext{
		mover:  transfer.Select(record.Mint),
		seeds:  seeds,
		owner:  vaultOwner,
		vault:  vault,
		record: record,
	}, nil
}

func (v *vaultContext) pay(ctx context.Context, env ledger.Env, destination *ledger.AccountInfo, amount uint64) error {
	return v.mover.Transfer(ctx, env, transfer.Request{
		Source:      v.vault,
		Destination: destination,
		Authority:   v.owner,
		Amount:      amount,
		SignerSeeds: [][][]byte{v.seeds},
	})
}

// active loads the record and requires it to be Initialized and controlled
// by the signing authority.
func active(env ledger.Env, authority, escrowInfo *ledger.AccountInfo) (*Escrow, error) {
	if err := common.RequireSigner(authority); err != nil {
		return nil, err
	}
	if err := common.RequireWritable(escrowInfo); err != nil {
		return nil, err
	}
	record, err := loadRecord(env, escrowInfo)
	if err != nil {
		return nil, err
	}
	if err := record.State.requireActive(); err != nil {
		return nil, err
	}
	if err := common.RequireKey(authority, record.Authority, common.ErrInvalidAuthority); err != nil {
		return nil, err
	}
	return record, nil
}

// Settle releases the escrowed amount to the destination and the total fee
// to the fee account.
//
// Accounts: authority(s), destination(w), fee(w), vault(w), escrow(w), mint,
// vault owner, token, system.
func (e *Engine) Settle(ctx context.Context, env ledger.Env, accounts []*ledger.AccountInfo) error {
	list, err := common.NewAccounts(accounts).Take(9)
	if err != nil {
		return err
	}
	authority, destination, feeAccount, vault, escrowInfo := list[0], list[1], list[2], list[3], list[4]
	mint, vaultOwner, tokenProgram := list[5], list[6], list[7]

	record, err := active(env, authority, escrowInfo)
	if err != nil {
		return err
	}
	if err := common.RequireKey(destination, record.DstToken, common.ErrInvalidDstToken); err != nil {
		return err
	}
	if err := common.RequireKey(feeAccount, record.FeeToken, common.ErrInvalidFeeToken); err != nil {
		return err
	}
	v, err := vaultFor(env, record, vault, mint, vaultOwner, tokenProgram)
	if err != nil {
		return err
	}
	fee, err := record.TotalFee()
	if err != nil {
		return err
	}
	if err := v.pay(ctx, env, destination, record.Amount); err != nil {
		return err
	}
	if err := v.pay(ctx, env, feeAccount, fee); err != nil {
		return err
	}

	now := env.Now()
	record.State = StateSettled
	record.SettledAt = &now
	if err := record.Pack(escrowInfo.Data); err != nil {
		return err
	}
	env.Emit(NewSettledEvent(escrowInfo.Key.String(), record))
	return nil
}

// Cancel refunds the full funded amount, fees included, to the source.
//
// Accounts: authority(s), escrow(w), source(w), vault(w), mint, vault owner,
// token, system.
func (e *Engine) Cancel(ctx context.Context, env ledger.Env, accounts []*ledger.AccountInfo) error {
	list, err := common.NewAccounts(accounts).Take(8)
	if err != nil {
		return err
	}
	authority, escrowInfo, source, vault := list[0], list[1], list[2], list[3]
	mint, vaultOwner, tokenProgram := list[4], list[5], list[6]

	record, err := active(env, authority, escrowInfo)
	if err != nil {
		return err
	}
	if err := common.RequireKey(source, record.SrcToken, common.ErrInvalidSrcToken); err != nil {
		return err
	}
	v, err := vaultFor(env, record, vault, mint, vaultOwner, tokenProgram)
	if err != nil {
		return err
	}
	total, err := record.Funded()
	if err != nil {
		return err
	}
	if err := v.pay(ctx, env, source, total); err != nil {
		return err
	}

	record.State = StateCanceled
	if err := record.Pack(escrowInfo.Data); err != nil {
		return err
	}
	env.Emit(NewCanceledEvent(escrowInfo.Key.String(), record))
	return nil
}

// Close sweeps whatever is left in the vault back to the source, releases the
// vault, shrinks the record to a tombstone and refunds the freed rent to the
// fee payer.
//
// Accounts: authority(s), escrow(w), fee payer(w), source(w), vault(w), mint,
// vault owner, token, system.
func (e *Engine) Close(ctx context.Context, env ledger.Env, accounts []*ledger.AccountInfo) error {
	list, err := common.NewAccounts(accounts).Take(9)
	if err != nil {
		return err
	}
	authority, escrowInfo, feePayer, source, vault := list[0], list[1], list[2], list[3], list[4]
	mint, vaultOwner, tokenProgram := list[5], list[6], list[7]

	if err := common.RequireSigner(authority); err != nil {
		return err
	}
	if err := common.RequireWritable(escrowInfo); err != nil {
		return err
	}
	record, err := loadRecord(env, escrowInfo)
	if err != nil {
		return err
	}
	switch record.State {
	case StateClosed:
		return common.ErrAlreadyClosed
	case StateUninitialized:
		return common.ErrAccountNotInitialized
	case StateInitialized:
		if !e.deployment.AllowsAbandon() {
			return common.ErrNotSettledOrCanceled
		}
	}
	if err := common.RequireKey(authority, record.Authority, common.ErrInvalidAuthority); err != nil {
		return err
	}
	if err := common.RequireWritable(feePayer); err != nil {
		return err
	}
	if err := common.RequireKey(source, record.SrcToken, common.ErrInvalidSrcToken); err != nil {
		return err
	}
	v, err := vaultFor(env, record, vault, mint, vaultOwner, tokenProgram)
	if err != nil {
		return err
	}
	if err := v.mover.CloseVault(ctx, env, transfer.CloseRequest{
		Vault:       vault,
		Residue:     source,
		Recipient:   feePayer,
		Authority:   vaultOwner,
		SignerSeeds: [][][]byte{v.seeds},
	}); err != nil {
		return err
	}

	last := *record
	closed := &Escrow{State: StateClosed}
	escrowInfo.Data = make([]byte, TombstoneSize)
	if err := closed.Pack(escrowInfo.Data); err != nil {
		return err
	}
	keep := env.Rent().MinimumBalance(TombstoneSize)
	if escrowInfo.Lamports > keep {
		feePayer.Lamports += escrowInfo.Lamports - keep
		escrowInfo.Lamports = keep
	}
	env.Emit(NewClosedEvent(escrowInfo.Key.String(), &last))
	env.Logger().Debug("escrow closed",
		"escrow", escrowInfo.Key.String(),
		"from", last.State.String())
	return nil
}
