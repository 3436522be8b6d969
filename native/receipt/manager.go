// Package receipt implements the one-shot deposit, withdrawal and funding
// flows. Each moves value and fee in one instruction and leaves a receipt at
// an address derived from the caller's reference so the flow cannot run twice.
package receipt

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cardledger/core/ledger"
	"cardledger/core/token"
	"cardledger/native/common"
	"cardledger/native/fees"
	"cardledger/native/transfer"
)

// Manager runs the receipt flows for one deployment.
type Manager struct {
	deployment common.Deployment
}

// NewManager creates a manager bound to the deployment's authority set.
func NewManager(deployment common.Deployment) *Manager {
	return &Manager{deployment: deployment}
}

// flowAccounts is the account list shared by all receipt flows, in
// instruction order.
type flowAccounts struct {
	user         *ledger.AccountInfo
	authority    *ledger.AccountInfo
	payer        *ledger.AccountInfo
	receipt      *ledger.AccountInfo
	source       *ledger.AccountInfo
	destination  *ledger.AccountInfo
	fee          *ledger.AccountInfo
	mint         *ledger.AccountInfo
	rent         *ledger.AccountInfo
	system       *ledger.AccountInfo
	tokenProgram *ledger.AccountInfo
}

func parseFlow(accounts []*ledger.AccountInfo) (*flowAccounts, error) {
	list, err := common.NewAccounts(accounts).Take(11)
	if err != nil {
		return nil, err
	}
	return &flowAccounts{
		user:         list[0],
		authority:    list[1],
		payer:        list[2],
		receipt:      list[3],
		source:       list[4],
		destination:  list[5],
		fee:          list[6],
		mint:         list[7],
		rent:         list[8],
		system:       list[9],
		tokenProgram: list[10],
	}, nil
}

// checkCommon runs the validation every receipt flow shares: signatures, the
// approval gate, a fresh receipt slot, the token program and the source.
func (m *Manager) checkCommon(a *flowAccounts) (transfer.Mover, error) {
	if err := common.RequireSigner(a.user); err != nil {
		return nil, err
	}
	if err := m.deployment.CheckAuthority(a.authority); err != nil {
		return nil, err
	}
	if err := common.RequireSigner(a.payer); err != nil {
		return nil, err
	}
	if err := common.RequireUninitializedStorage(a.receipt); err != nil {
		return nil, err
	}
	if err := common.RequireKey(a.tokenProgram, token.ProgramID, nil); err != nil {
		return nil, err
	}
	mover := transfer.Select(a.mint.Key)
	if mover.Native() {
		if err := common.RequireKey(a.source, a.user.Key, common.ErrInvalidSrcToken); err != nil {
			return nil, err
		}
	} else if _, err := common.RequireTokenAccount(a.source, a.user.Key, a.mint.Key); err != nil {
		return nil, err
	}
	if err := m.checkFeeAccount(mover, a); err != nil {
		return nil, err
	}
	return mover, nil
}

func (m *Manager) checkFeeAccount(mover transfer.Mover, a *flowAccounts) error {
	if mover.Native() {
		return common.RequireKey(a.fee, m.deployment.FeeCollector, common.ErrInvalidFeeToken)
	}
	_, err := common.RequireTokenAccount(a.fee, m.deployment.FeeCollector, a.mint.Key)
	return err
}

func (m *Manager) checkCollection(mover transfer.Mover, a *flowAccounts) error {
	if mover.Native() {
		return common.RequireKey(a.destination, m.deployment.DepositCollector, common.ErrInvalidDstToken)
	}
	_, err := common.RequireTokenAccount(a.destination, m.deployment.DepositCollector, a.mint.Key)
	return err
}

// checkDestination accepts any initialised token account on the mint, or any
// address for native withdrawals.
func checkDestination(mover transfer.Mover, a *flowAccounts) error {
	if mover.Native() {
		return nil
	}
	if err := common.RequireOwner(a.destination, token.ProgramID); err != nil {
		return err
	}
	acc, err := token.Unpack(a.destination.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidAccountData, err)
	}
	if err := common.RequireInitialized(acc); err != nil {
		return err
	}
	if !acc.Mint.Equals(a.mint.Key) {
		return fmt.Errorf("%w: destination %s", common.ErrInvalidMint, a.destination.Key)
	}
	return nil
}

// InitDeposit charges amount plus a proportional fee to the user's source and
// routes them to the deposit and fee collectors.
func (m *Manager) InitDeposit(ctx context.Context, env ledger.Env, accounts []*ledger.AccountInfo, args DepositArgs) error {
	a, err := parseFlow(accounts)
	if err != nil {
		return err
	}
	mover, err := m.checkCommon(a)
	if err != nil {
		return err
	}
	if err := m.checkCollection(mover, a); err != nil {
		return err
	}
	fee, err := fees.Fee(args.Amount, args.FeeBps)
	if err != nil {
		return err
	}
	if err := m.move(ctx, env, mover, a, args.Amount, fee); err != nil {
		return err
	}
	return m.finish(ctx, env, a, common.PurposeDeposit, args.Key, args.Bump, args.Amount, fee)
}

// InitWithdrawal pays amount to the destination and the proportional plus
// fixed fee to the fee collector, both out of the wallet's source.
func (m *Manager) InitWithdrawal(ctx context.Context, env ledger.Env, accounts []*ledger.AccountInfo, args WithdrawArgs) error {
	a, err := parseFlow(accounts)
	if err != nil {
		return err
	}
	mover, err := m.checkCommon(a)
	if err != nil {
		return err
	}
	if err := checkDestination(mover, a); err != nil {
		return err
	}
	fee, err := fees.TotalFee(args.Amount, args.FeeBps, args.FixedFee)
	if err != nil {
		return err
	}
	if err := m.move(ctx, env, mover, a, args.Amount, fee); err != nil {
		return err
	}
	return m.finish(ctx, env, a, common.PurposeWithdraw, args.Key, args.Bump, args.Amount, fee)
}

// InitFunding splits amount between the deposit collector and the fee
// collector, the latter receiving the proportional fee.
func (m *Manager) InitFunding(ctx context.Context, env ledger.Env, accounts []*ledger.AccountInfo, args FundingArgs) error {
	a, err := parseFlow(accounts)
	if err != nil {
		return err
	}
	mover, err := m.checkCommon(a)
	if err != nil {
		return err
	}
	if err := m.checkCollection(mover, a); err != nil {
		return err
	}
	fee, err := fees.Fee(args.Amount, args.FeeBps)
	if err != nil {
		return err
	}
	net, err := fees.AmountLessFee(args.Amount, args.FeeBps)
	if err != nil {
		return err
	}
	if err := m.move(ctx, env, mover, a, net, fee); err != nil {
		return err
	}
	return m.finish(ctx, env, a, common.PurposeFunding, args.Key, args.Bump, net, fee)
}

func (m *Manager) move(ctx context.Context, env ledger.Env, mover transfer.Mover, a *flowAccounts, amount, fee uint64) error {
	if err := mover.Transfer(ctx, env, transfer.Request{
		Source:      a.source,
		Destination: a.destination,
		Authority:   a.user,
		Amount:      amount,
	}); err != nil {
		return err
	}
	return mover.Transfer(ctx, env, transfer.Request{
		Source:      a.source,
		Destination: a.fee,
		Authority:   a.user,
		Amount:      fee,
	})
}

// finish allocates and flags the receipt once every transfer has succeeded.
func (m *Manager) finish(ctx context.Context, env ledger.Env, a *flowAccounts, purpose common.Purpose, reference solana.PublicKey, bump uint8, amount, fee uint64) error {
	if err := common.Allocate(ctx, env, common.AllocateParams{
		Account:       a.receipt,
		Payer:         a.payer,
		SystemProgram: a.system,
		Space:         Size,
		Seeds:         common.SignerSeeds(env.ProgramID(), reference, purpose, bump),
	}); err != nil {
		return err
	}
	current, err := Unpack(a.receipt.Data)
	if err != nil {
		return err
	}
	if current.IsInitialized() {
		return common.ErrAlreadyInitialized
	}
	if err := (Receipt{Initialized: true}).Pack(a.receipt.Data); err != nil {
		return err
	}
	env.Emit(NewEvent(Movement{
		Purpose:     purpose,
		Reference:   reference.String(),
		Receipt:     a.receipt.Key.String(),
		Mint:        a.mint.Key.String(),
		Source:      a.source.Key.String(),
		Destination: a.destination.Key.String(),
		FeeAccount:  a.fee.Key.String(),
		Amount:      amount,
		Fee:         fee,
	}))
	env.Logger().Debug("receipt created",
		"purpose", string(purpose),
		"reference", reference.String(),
		"amount", amount,
		"fee", fee)
	return nil
}
