package card_test

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"cardledger/core/events"
	"cardledger/core/ledger"
	"cardledger/core/token"
	"cardledger/native/card"
	"cardledger/native/common"
	"cardledger/native/escrow"
	"cardledger/storage"
)

const payerFunds = 10_000_000_000

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *capturingEmitter) types() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

func newKey() solana.PublicKey { return solana.NewWallet().PublicKey() }

type harness struct {
	t          *testing.T
	rt         *ledger.Runtime
	bank       *ledger.Bank
	deployment common.Deployment
	emitter    *capturingEmitter
	wallet     solana.PublicKey
	payer      solana.PublicKey
	authority  solana.PublicKey
	mint       solana.PublicKey
}

func newHarness(t *testing.T, configure ...func(*common.Deployment)) *harness {
	t.Helper()
	deployment := common.Deployment{
		ProgramID:        newKey(),
		FeeCollector:     newKey(),
		DepositCollector: newKey(),
		ClosePolicy:      common.ClosePolicyStrict,
	}
	for _, fn := range configure {
		fn(&deployment)
	}
	bank := ledger.NewBank(storage.NewMemDB())
	rt := ledger.NewRuntime(bank)
	rt.SetNowFunc(func() int64 { return 1_700_000_000 })
	rt.Register(token.ProgramID, "token", token.Program{})
	card.NewProcessor(deployment).Register(rt)
	emitter := &capturingEmitter{}
	rt.SetEmitter(emitter)

	h := &harness{
		t:          t,
		rt:         rt,
		bank:       bank,
		deployment: deployment,
		emitter:    emitter,
		wallet:     newKey(),
		payer:      newKey(),
		authority:  newKey(),
		mint:       newKey(),
	}
	if !deployment.Authority.IsZero() {
		h.authority = deployment.Authority
	}
	require.NoError(t, bank.SetAccount(h.payer, ledger.NewSystemAccount(payerFunds)))
	return h
}

func (h *harness) exec(ix ledger.Instruction) error {
	return h.rt.Execute(context.Background(), ix)
}

func (h *harness) tokenAccount(owner solana.PublicKey, amount uint64) solana.PublicKey {
	h.t.Helper()
	key := newKey()
	require.NoError(h.t, token.Fund(h.bank, h.rt.Rent(), key, h.mint, owner, amount))
	return key
}

func (h *harness) tokens(key solana.PublicKey) uint64 {
	h.t.Helper()
	amount, err := token.Balance(h.bank, key)
	require.NoError(h.t, err)
	return amount
}

func (h *harness) lamports(key solana.PublicKey) uint64 {
	h.t.Helper()
	amount, err := h.bank.Lamports(key)
	require.NoError(h.t, err)
	return amount
}

func (h *harness) record(key solana.PublicKey) *escrow.Escrow {
	h.t.Helper()
	acc, ok, err := h.bank.Account(key)
	require.NoError(h.t, err)
	require.True(h.t, ok, "escrow account %s missing", key)
	rec, err := escrow.Unpack(acc.Data)
	require.NoError(h.t, err)
	return rec
}

// escrowFixture is one escrow and every account its lifecycle touches.
type escrowFixture struct {
	h         *harness
	reference solana.PublicKey
	keys      card.EscrowKeys
	mint      solana.PublicKey
	vault     solana.PublicKey
	source    solana.PublicKey
	dest      solana.PublicKey
	fee       solana.PublicKey
	args      escrow.InitArgs
}

func (h *harness) tokenEscrow(amount uint64, bps uint16, fixed uint64, sourceFunds uint64) *escrowFixture {
	h.t.Helper()
	reference := newKey()
	keys, err := card.DeriveEscrow(h.deployment.ProgramID, reference)
	require.NoError(h.t, err)
	return &escrowFixture{
		h:         h,
		reference: reference,
		keys:      keys,
		mint:      h.mint,
		vault:     h.tokenAccount(keys.VaultOwner, 0),
		source:    h.tokenAccount(h.wallet, sourceFunds),
		dest:      h.tokenAccount(h.deployment.DepositCollector, 0),
		fee:       h.tokenAccount(h.deployment.FeeCollector, 0),
		args:      escrow.InitArgs{Amount: amount, FeeBps: bps, FixedFee: fixed, Bump: keys.EscrowBump},
	}
}

func (h *harness) nativeEscrow(amount uint64, bps uint16, fixed uint64, walletFunds uint64) *escrowFixture {
	h.t.Helper()
	reference := newKey()
	keys, err := card.DeriveEscrow(h.deployment.ProgramID, reference)
	require.NoError(h.t, err)
	require.NoError(h.t, h.bank.SetAccount(h.wallet, ledger.NewSystemAccount(walletFunds)))
	return &escrowFixture{
		h:         h,
		reference: reference,
		keys:      keys,
		mint:      token.NativeMint,
		vault:     keys.VaultOwner,
		source:    h.wallet,
		dest:      h.deployment.DepositCollector,
		fee:       h.deployment.FeeCollector,
		args:      escrow.InitArgs{Amount: amount, FeeBps: bps, FixedFee: fixed, Bump: keys.EscrowBump},
	}
}

func (f *escrowFixture) initAccounts() card.InitEscrowAccounts {
	return card.InitEscrowAccounts{
		Wallet:      f.h.wallet,
		Authority:   f.h.authority,
		FeePayer:    f.h.payer,
		Escrow:      f.keys.Escrow,
		VaultOwner:  f.keys.VaultOwner,
		Vault:       f.vault,
		Source:      f.source,
		Destination: f.dest,
		Fee:         f.fee,
		Mint:        f.mint,
		Reference:   f.reference,
	}
}

func (f *escrowFixture) init() error {
	return f.h.exec(card.NewInitEscrow(f.h.deployment.ProgramID, f.initAccounts(), f.args))
}

func (f *escrowFixture) settleAccounts() card.SettleAccounts {
	return card.SettleAccounts{
		Authority:   f.h.authority,
		Destination: f.dest,
		Fee:         f.fee,
		Vault:       f.vault,
		Escrow:      f.keys.Escrow,
		Mint:        f.mint,
		VaultOwner:  f.keys.VaultOwner,
	}
}

func (f *escrowFixture) settle() error {
	return f.h.exec(card.NewSettle(f.h.deployment.ProgramID, f.settleAccounts()))
}

func (f *escrowFixture) cancelAccounts() card.CancelAccounts {
	return card.CancelAccounts{
		Authority:  f.h.authority,
		Escrow:     f.keys.Escrow,
		Source:     f.source,
		Vault:      f.vault,
		Mint:       f.mint,
		VaultOwner: f.keys.VaultOwner,
	}
}

func (f *escrowFixture) cancel() error {
	return f.h.exec(card.NewCancel(f.h.deployment.ProgramID, f.cancelAccounts()))
}

func (f *escrowFixture) closeAccounts() card.CloseAccounts {
	return card.CloseAccounts{
		Authority:  f.h.authority,
		Escrow:     f.keys.Escrow,
		FeePayer:   f.h.payer,
		Source:     f.source,
		Vault:      f.vault,
		Mint:       f.mint,
		VaultOwner: f.keys.VaultOwner,
	}
}

func (f *escrowFixture) close() error {
	return f.h.exec(card.NewClose(f.h.deployment.ProgramID, f.closeAccounts()))
}
