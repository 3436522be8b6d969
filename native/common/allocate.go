package common

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"cardledger/core/ledger"
)

// AllocateParams describes a program-derived account to create.
type AllocateParams struct {
	Account       *ledger.AccountInfo
	Payer         *ledger.AccountInfo
	SystemProgram *ledger.AccountInfo
	Space         int
	// Seeds is the full signer seed set, bump included.
	Seeds [][]byte
}

// Allocate creates a fresh program-owned account at the address derived from
// the seeds. The payer funds the rent-exempt minimum less whatever the
// address already holds.
func Allocate(ctx context.Context, env ledger.Env, p AllocateParams) error {
	addr, err := solana.CreateProgramAddress(p.Seeds, env.ProgramID())
	if err != nil {
		return ErrInvalidKeyMatch
	}
	if err := RequireKey(p.Account, addr, nil); err != nil {
		return err
	}
	if p.SystemProgram != nil {
		if err := RequireKey(p.SystemProgram, solana.SystemProgramID, nil); err != nil {
			return err
		}
	}
	if err := RequireUninitializedStorage(p.Account); err != nil {
		return err
	}
	if err := RequireSigner(p.Payer); err != nil {
		return err
	}
	required := env.Rent().MinimumBalance(p.Space)
	if required < 1 {
		required = 1
	}
	if p.Account.Lamports >= required {
		required = 0
	} else {
		required -= p.Account.Lamports
	}
	ix := ledger.NewCreateAccount(p.Payer.Key, p.Account.Key, required, uint64(p.Space), env.ProgramID())
	if err := env.Invoke(ctx, ix, p.Seeds); err != nil {
		return err
	}
	return RequireRentExempt(env.Rent(), p.Account)
}
