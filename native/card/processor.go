// Package card wires the escrow and receipt flows into a single ledger
// program: it decodes instruction payloads, routes them and exposes client
// builders and address helpers for off-chain callers.
package card

import (
	"context"
	"fmt"

	"cardledger/core/ledger"
	"cardledger/native/common"
	"cardledger/native/escrow"
	"cardledger/native/receipt"
	"cardledger/observability/metrics"
)

// Processor is the card program entrypoint.
type Processor struct {
	deployment common.Deployment
	escrow     *escrow.Engine
	receipts   *receipt.Manager
	metrics    *metrics.CardMetrics
}

// NewProcessor builds the program for a deployment.
func NewProcessor(deployment common.Deployment) *Processor {
	return &Processor{
		deployment: deployment,
		escrow:     escrow.NewEngine(deployment),
		receipts:   receipt.NewManager(deployment),
		metrics:    metrics.Card(),
	}
}

// Register installs the processor in rt under the deployment's program id.
func (p *Processor) Register(rt *ledger.Runtime) {
	rt.Register(p.deployment.ProgramID, "card", p)
}

// Deployment returns the authority set the processor enforces.
func (p *Processor) Deployment() common.Deployment { return p.deployment }

// Process implements ledger.Program.
func (p *Processor) Process(ctx context.Context, env ledger.Env, accounts []*ledger.AccountInfo, data []byte) (err error) {
	ix, err := Decode(data)
	if err != nil {
		p.metrics.ObserveInstruction("invalid", "error")
		return err
	}
	logger := env.Logger()
	logger.Debug("card instruction", "instruction", ix.Tag.String(), "accounts", len(accounts))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if code, ok := common.Code(err); ok {
				logger.Debug("card instruction rejected", "instruction", ix.Tag.String(), "code", code, "error", err)
			}
		}
		p.metrics.ObserveInstruction(ix.Tag.String(), outcome)
	}()

	if flow := flowOf(ix.Tag); flow != "" {
		if err := common.Guard(p.deployment, flow); err != nil {
			return fmt.Errorf("%s: %w", ix.Tag, err)
		}
	}

	switch ix.Tag {
	case TagInitDeposit:
		return p.receipts.InitDeposit(ctx, env, accounts, *ix.Deposit)
	case TagInitWithdrawal:
		return p.receipts.InitWithdrawal(ctx, env, accounts, *ix.Withdraw)
	case TagInitFunding:
		return p.receipts.InitFunding(ctx, env, accounts, *ix.Funding)
	case TagInitEscrow:
		return p.escrow.Init(ctx, env, accounts, *ix.Escrow)
	case TagSettle:
		return p.escrow.Settle(ctx, env, accounts)
	case TagCancel:
		return p.escrow.Cancel(ctx, env, accounts)
	case TagClose:
		return p.escrow.Close(ctx, env, accounts)
	default:
		return common.ErrInvalidInstruction
	}
}

// flowOf names the pausable flow an instruction opens. Settle, Cancel and
// Close are never paused so funded escrows can always be resolved.
func flowOf(tag Tag) string {
	switch tag {
	case TagInitDeposit:
		return string(common.PurposeDeposit)
	case TagInitWithdrawal:
		return string(common.PurposeWithdraw)
	case TagInitFunding:
		return string(common.PurposeFunding)
	case TagInitEscrow:
		return string(common.PurposeEscrow)
	default:
		return ""
	}
}
