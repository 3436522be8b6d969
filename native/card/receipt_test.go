package card_test

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"cardledger/core/ledger"
	"cardledger/core/token"
	"cardledger/native/card"
	"cardledger/native/common"
	"cardledger/native/receipt"
)

type receiptFixture struct {
	h         *harness
	reference solana.PublicKey
	address   solana.PublicKey
	bump      uint8
	accounts  card.ReceiptAccounts
}

func (h *harness) receiptFlow(purpose common.Purpose, source, destination, fee, mint solana.PublicKey) *receiptFixture {
	h.t.Helper()
	reference := newKey()
	address, bump, err := card.FindReceiptAddress(h.deployment.ProgramID, reference, purpose)
	require.NoError(h.t, err)
	return &receiptFixture{
		h:         h,
		reference: reference,
		address:   address,
		bump:      bump,
		accounts: card.ReceiptAccounts{
			User:        h.wallet,
			Authority:   h.authority,
			Payer:       h.payer,
			Receipt:     address,
			Source:      source,
			Destination: destination,
			Fee:         fee,
			Mint:        mint,
		},
	}
}

func (f *receiptFixture) deposit(amount uint64, bps uint16) error {
	return f.h.exec(card.NewInitDeposit(f.h.deployment.ProgramID, f.accounts, receipt.DepositArgs{
		Amount: amount, FeeBps: bps, Key: f.reference, Bump: f.bump,
	}))
}

func (f *receiptFixture) withdraw(amount uint64, bps uint16, fixed uint64) error {
	return f.h.exec(card.NewInitWithdrawal(f.h.deployment.ProgramID, f.accounts, receipt.WithdrawArgs{
		Amount: amount, FeeBps: bps, Key: f.reference, Bump: f.bump, FixedFee: fixed,
	}))
}

func (f *receiptFixture) fund(amount uint64, bps uint16) error {
	return f.h.exec(card.NewInitFunding(f.h.deployment.ProgramID, f.accounts, receipt.FundingArgs{
		Amount: amount, FeeBps: bps, Key: f.reference, Bump: f.bump,
	}))
}

func (f *receiptFixture) stored(t *testing.T) receipt.Receipt {
	t.Helper()
	acc, ok, err := f.h.bank.Account(f.address)
	require.NoError(t, err)
	require.True(t, ok, "receipt %s missing", f.address)
	require.Equal(t, f.h.deployment.ProgramID, acc.Owner)
	require.Equal(t, f.h.rt.Rent().MinimumBalance(receipt.Size), acc.Lamports)
	rec, err := receipt.Unpack(acc.Data)
	require.NoError(t, err)
	return rec
}

func TestTokenDepositChargesOnce(t *testing.T) {
	h := newHarness(t)
	source := h.tokenAccount(h.wallet, 2_000_000)
	collection := h.tokenAccount(h.deployment.DepositCollector, 0)
	feeAccount := h.tokenAccount(h.deployment.FeeCollector, 0)
	f := h.receiptFlow(common.PurposeDeposit, source, collection, feeAccount, h.mint)

	require.NoError(t, f.deposit(1_000_000, 50))
	require.True(t, f.stored(t).Initialized)
	require.Equal(t, uint64(995_000), h.tokens(source))
	require.Equal(t, uint64(1_000_000), h.tokens(collection))
	require.Equal(t, uint64(5_000), h.tokens(feeAccount))

	err := f.deposit(1_000_000, 50)
	require.True(t, errors.Is(err, common.ErrAlreadyInitialized), "got %v", err)
	require.Equal(t, uint64(995_000), h.tokens(source))
	require.Equal(t, uint64(1_000_000), h.tokens(collection))
	require.Equal(t, []string{receipt.EventTypeDeposit}, h.emitter.types())
}

func TestDepositRequiresCollectors(t *testing.T) {
	h := newHarness(t)
	source := h.tokenAccount(h.wallet, 2_000_000)
	feeAccount := h.tokenAccount(h.deployment.FeeCollector, 0)
	f := h.receiptFlow(common.PurposeDeposit, source, h.tokenAccount(newKey(), 0), feeAccount, h.mint)

	err := f.deposit(1_000, 0)
	require.True(t, errors.Is(err, common.ErrInvalidOwner), "got %v", err)

	f.accounts.Destination = h.tokenAccount(h.deployment.DepositCollector, 0)
	f.accounts.Fee = h.tokenAccount(newKey(), 0)
	err = f.deposit(1_000, 0)
	require.True(t, errors.Is(err, common.ErrInvalidOwner), "got %v", err)
	require.Equal(t, uint64(2_000_000), h.tokens(source))
}

func TestDepositRejectsForeignSource(t *testing.T) {
	h := newHarness(t)
	f := h.receiptFlow(common.PurposeDeposit,
		h.tokenAccount(newKey(), 2_000_000),
		h.tokenAccount(h.deployment.DepositCollector, 0),
		h.tokenAccount(h.deployment.FeeCollector, 0),
		h.mint)
	err := f.deposit(1_000, 0)
	require.True(t, errors.Is(err, common.ErrInvalidOwner), "got %v", err)
}

func TestDepositWrongReceiptAddress(t *testing.T) {
	h := newHarness(t)
	f := h.receiptFlow(common.PurposeWithdraw,
		h.tokenAccount(h.wallet, 2_000),
		h.tokenAccount(h.deployment.DepositCollector, 0),
		h.tokenAccount(h.deployment.FeeCollector, 0),
		h.mint)
	// The address was derived for a withdrawal, not a deposit.
	err := f.deposit(1_000, 0)
	require.True(t, errors.Is(err, common.ErrInvalidKeyMatch), "got %v", err)
	require.Equal(t, uint64(2_000), h.tokens(f.accounts.Source))
}

func TestNativeDeposit(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bank.SetAccount(h.wallet, ledger.NewSystemAccount(2_000_000)))
	f := h.receiptFlow(common.PurposeDeposit, h.wallet, h.deployment.DepositCollector, h.deployment.FeeCollector, token.NativeMint)

	require.NoError(t, f.deposit(1_000_000, 100))
	require.Equal(t, uint64(990_000), h.lamports(h.wallet))
	require.Equal(t, uint64(1_000_000), h.lamports(h.deployment.DepositCollector))
	require.Equal(t, uint64(10_000), h.lamports(h.deployment.FeeCollector))

	g := h.receiptFlow(common.PurposeDeposit, h.wallet, newKey(), h.deployment.FeeCollector, token.NativeMint)
	err := g.deposit(1_000, 0)
	require.True(t, errors.Is(err, common.ErrInvalidDstToken), "got %v", err)
}

func TestWithdrawalChargesFixedFee(t *testing.T) {
	h := newHarness(t)
	source := h.tokenAccount(h.wallet, 200_000)
	payee := h.tokenAccount(newKey(), 0)
	feeAccount := h.tokenAccount(h.deployment.FeeCollector, 0)
	f := h.receiptFlow(common.PurposeWithdraw, source, payee, feeAccount, h.mint)

	require.NoError(t, f.withdraw(100_000, 50, 1_000))
	require.Equal(t, uint64(100_000), h.tokens(payee))
	require.Equal(t, uint64(1_500), h.tokens(feeAccount))
	require.Equal(t, uint64(98_500), h.tokens(source))
}

func TestWithdrawalWithZeroLegs(t *testing.T) {
	h := newHarness(t)
	source := h.tokenAccount(h.wallet, 0)
	f := h.receiptFlow(common.PurposeWithdraw, source, h.tokenAccount(newKey(), 0), h.tokenAccount(h.deployment.FeeCollector, 0), h.mint)

	require.NoError(t, f.withdraw(0, 0, 0))
	require.True(t, f.stored(t).Initialized)
	require.Len(t, h.emitter.events, 1)
}

func TestWithdrawalDestinationMint(t *testing.T) {
	h := newHarness(t)
	mint := h.mint
	source := h.tokenAccount(h.wallet, 10_000)
	feeAccount := h.tokenAccount(h.deployment.FeeCollector, 0)
	h.mint = newKey()
	payee := h.tokenAccount(newKey(), 0)
	f := h.receiptFlow(common.PurposeWithdraw, source, payee, feeAccount, mint)

	err := f.withdraw(1_000, 0, 0)
	require.True(t, errors.Is(err, common.ErrInvalidMint), "got %v", err)
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	source := h.tokenAccount(h.wallet, 100_999)
	payee := h.tokenAccount(newKey(), 0)
	feeAccount := h.tokenAccount(h.deployment.FeeCollector, 0)
	f := h.receiptFlow(common.PurposeWithdraw, source, payee, feeAccount, h.mint)

	require.Error(t, f.withdraw(100_000, 0, 1_000))
	require.Equal(t, uint64(100_999), h.tokens(source))
	require.Zero(t, h.tokens(payee))
	_, ok, err := h.bank.Account(f.address)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFundingSplitsAmount(t *testing.T) {
	h := newHarness(t)
	source := h.tokenAccount(h.wallet, 100_000)
	collection := h.tokenAccount(h.deployment.DepositCollector, 0)
	feeAccount := h.tokenAccount(h.deployment.FeeCollector, 0)
	f := h.receiptFlow(common.PurposeFunding, source, collection, feeAccount, h.mint)

	require.NoError(t, f.fund(100_000, 50))
	require.Zero(t, h.tokens(source))
	require.Equal(t, uint64(99_500), h.tokens(collection))
	require.Equal(t, uint64(500), h.tokens(feeAccount))
	require.True(t, f.stored(t).Initialized)
}

func TestPausedReceiptFlowLeavesOthersOpen(t *testing.T) {
	h := newHarness(t, func(d *common.Deployment) { d.Paused = []string{"deposit"} })
	source := h.tokenAccount(h.wallet, 10_000)
	collection := h.tokenAccount(h.deployment.DepositCollector, 0)
	feeAccount := h.tokenAccount(h.deployment.FeeCollector, 0)

	f := h.receiptFlow(common.PurposeDeposit, source, collection, feeAccount, h.mint)
	err := f.deposit(1_000, 0)
	require.True(t, errors.Is(err, common.ErrFlowPaused), "got %v", err)

	g := h.receiptFlow(common.PurposeFunding, source, collection, feeAccount, h.mint)
	require.NoError(t, g.fund(1_000, 0))
	require.Equal(t, uint64(9_000), h.tokens(source))
}

func TestPinnedAuthorityOnReceipts(t *testing.T) {
	pinned := newKey()
	h := newHarness(t, func(d *common.Deployment) { d.Authority = pinned })
	source := h.tokenAccount(h.wallet, 10_000)
	f := h.receiptFlow(common.PurposeDeposit, source,
		h.tokenAccount(h.deployment.DepositCollector, 0),
		h.tokenAccount(h.deployment.FeeCollector, 0), h.mint)
	f.accounts.Authority = newKey()

	err := f.deposit(1_000, 0)
	require.True(t, errors.Is(err, common.ErrInvalidAuthority), "got %v", err)
	f.accounts.Authority = pinned
	require.NoError(t, f.deposit(1_000, 0))
}
