package card_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"cardledger/core/events"
	"cardledger/native/card"
	"cardledger/native/common"
	"cardledger/native/escrow"
	"cardledger/native/receipt"
	"cardledger/observability/metrics"
)

func TestInstructionCodec(t *testing.T) {
	key := newKey()
	cases := []*card.Instruction{
		{Tag: card.TagInitDeposit, Deposit: &receipt.DepositArgs{Amount: 10, FeeBps: 25, Key: key, Bump: 254}},
		{Tag: card.TagInitWithdrawal, Withdraw: &receipt.WithdrawArgs{Amount: 10, FeeBps: 25, Key: key, Bump: 1, FixedFee: 7}},
		{Tag: card.TagInitEscrow, Escrow: &escrow.InitArgs{Amount: 1_000_000, FeeBps: 50, FixedFee: 1_000, Bump: 253}},
		{Tag: card.TagSettle},
		{Tag: card.TagCancel},
		{Tag: card.TagClose},
		{Tag: card.TagInitFunding, Funding: &receipt.FundingArgs{Amount: 100_000, FeeBps: 50, Key: key, Bump: 9}},
	}
	for _, ix := range cases {
		t.Run(ix.Tag.String(), func(t *testing.T) {
			data, err := ix.Encode()
			require.NoError(t, err)
			require.Equal(t, byte(ix.Tag), data[0])
			decoded, err := card.Decode(data)
			require.NoError(t, err)
			require.Equal(t, ix, decoded)
		})
	}
}

func TestInstructionWireLayout(t *testing.T) {
	data, err := (&card.Instruction{Tag: card.TagInitEscrow, Escrow: &escrow.InitArgs{
		Amount: 1, FeeBps: 2, FixedFee: 3, Bump: 4,
	}}).Encode()
	require.NoError(t, err)
	require.Equal(t, []byte{
		2,
		1, 0, 0, 0, 0, 0, 0, 0,
		2, 0,
		3, 0, 0, 0, 0, 0, 0, 0,
		4,
	}, data)
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	escrowData, err := (&card.Instruction{Tag: card.TagInitEscrow, Escrow: &escrow.InitArgs{Amount: 1}}).Encode()
	require.NoError(t, err)
	for name, data := range map[string][]byte{
		"empty":            nil,
		"unknown":          {7},
		"truncated":        {byte(card.TagInitEscrow), 1, 2},
		"trailing args":    append(escrowData, 0),
		"settle with args": {byte(card.TagSettle), 0},
		"cancel with args": {byte(card.TagCancel), 1, 2, 3},
		"close with args":  {byte(card.TagClose), 9},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := card.Decode(data)
			require.True(t, errors.Is(err, common.ErrInvalidInstruction), "got %v", err)
			code, ok := common.Code(err)
			require.True(t, ok)
			require.Equal(t, common.CodeInvalidInstruction, code)
		})
	}

	_, err = (&card.Instruction{Tag: card.TagInitDeposit}).Encode()
	require.True(t, errors.Is(err, common.ErrInvalidInstruction))
}

func TestProcessorRejectsUnknownInstruction(t *testing.T) {
	h := newHarness(t)
	ix := card.NewSettle(h.deployment.ProgramID, card.SettleAccounts{Authority: h.authority})
	ix.Data = []byte{42}
	err := h.exec(ix)
	require.True(t, errors.Is(err, common.ErrInvalidInstruction), "got %v", err)
}

func TestProcessorRejectsSettleWithArguments(t *testing.T) {
	h := newHarness(t)
	f := h.tokenEscrow(1_000, 0, 0, 1_000)
	require.NoError(t, f.init())

	ix := card.NewSettle(h.deployment.ProgramID, f.settleAccounts())
	ix.Data = append(ix.Data, 0)
	err := h.exec(ix)
	require.True(t, errors.Is(err, common.ErrInvalidInstruction), "got %v", err)
	require.Equal(t, uint64(1_000), h.tokens(f.vault))
	require.Equal(t, escrow.StateInitialized, h.record(f.keys.Escrow).State)
}

func TestProcessorRejectsShortAccountList(t *testing.T) {
	h := newHarness(t)
	f := h.tokenEscrow(1_000, 0, 0, 1_000)
	ix := card.NewSettle(h.deployment.ProgramID, f.settleAccounts())
	ix.Accounts = ix.Accounts[:4]
	err := h.exec(ix)
	require.True(t, errors.Is(err, common.ErrNotEnoughAccounts), "got %v", err)
}

func TestDeriveEscrowIsDeterministic(t *testing.T) {
	program, reference := newKey(), newKey()
	a, err := card.DeriveEscrow(program, reference)
	require.NoError(t, err)
	b, err := card.DeriveEscrow(program, reference)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotEqual(t, a.Escrow, a.VaultOwner)

	deposit, _, err := card.FindReceiptAddress(program, reference, common.PurposeDeposit)
	require.NoError(t, err)
	withdraw, _, err := card.FindReceiptAddress(program, reference, common.PurposeWithdraw)
	require.NoError(t, err)
	require.NotEqual(t, deposit, withdraw)
}

func TestMetricsObserverCountsCommittedEvents(t *testing.T) {
	h := newHarness(t)
	h.rt.SetEmitter(events.Multi{h.emitter, card.NewMetricsObserver()})
	m := metrics.Card()

	settled := m.TransitionCounter().WithLabelValues("settled")
	escrowFees := m.FeeCounter().WithLabelValues("escrow")
	settleOK := m.InstructionCounter().WithLabelValues("settle", "ok")
	settleErr := m.InstructionCounter().WithLabelValues("settle", "error")
	beforeSettled := testutil.ToFloat64(settled)
	beforeFees := testutil.ToFloat64(escrowFees)
	beforeOK := testutil.ToFloat64(settleOK)
	beforeErr := testutil.ToFloat64(settleErr)

	f := h.tokenEscrow(1_000_000, 50, 1_000, 2_000_000)
	require.NoError(t, f.init())
	require.NoError(t, f.settle())
	require.Error(t, f.settle())

	require.Equal(t, beforeSettled+1, testutil.ToFloat64(settled))
	require.Equal(t, beforeFees+6_000, testutil.ToFloat64(escrowFees))
	require.Equal(t, beforeOK+1, testutil.ToFloat64(settleOK))
	require.Equal(t, beforeErr+1, testutil.ToFloat64(settleErr))
}

func TestEventsCarryRecordAttributes(t *testing.T) {
	h := newHarness(t)
	f := h.tokenEscrow(1_000_000, 50, 1_000, 2_000_000)
	require.NoError(t, f.init())
	require.NoError(t, f.settle())

	require.Len(t, h.emitter.events, 2)
	record, ok := h.emitter.events[1].(events.Record)
	require.True(t, ok)
	attrs := record.Event().Attributes
	require.Equal(t, f.keys.Escrow.String(), attrs["escrow"])
	require.Equal(t, "settled", attrs["state"])
	require.Equal(t, "6000", attrs["fee"])
	require.Equal(t, "1700000000", attrs["settledAt"])
}
