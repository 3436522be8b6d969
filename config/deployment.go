package config

import (
	"github.com/gagliardetto/solana-go"

	"cardledger/core/ledger"
	"cardledger/native/common"
)

// Deployment builds the authority set the card program enforces.
func (cfg *Config) Deployment() (common.Deployment, error) {
	if err := cfg.Validate(); err != nil {
		return common.Deployment{}, err
	}
	programID, _ := parseKey(cfg.Program.ID)
	feeCollector, _ := parseKey(cfg.Authorities.FeeCollector)
	depositCollector, _ := parseKey(cfg.Authorities.DepositCollector)
	var authority solana.PublicKey
	if cfg.Authorities.Authority != "" {
		authority, _ = parseKey(cfg.Authorities.Authority)
	}
	policy, _ := common.ParseClosePolicy(cfg.Escrow.ClosePolicy)
	return common.Deployment{
		ProgramID:        programID,
		Authority:        authority,
		FeeCollector:     feeCollector,
		DepositCollector: depositCollector,
		ClosePolicy:      policy,
		Paused:           cfg.Pauses.Flows(),
	}, nil
}

// Flows lists the paused flow names.
func (p Pauses) Flows() []string {
	var out []string
	if p.Deposit {
		out = append(out, string(common.PurposeDeposit))
	}
	if p.Withdraw {
		out = append(out, string(common.PurposeWithdraw))
	}
	if p.Funding {
		out = append(out, string(common.PurposeFunding))
	}
	if p.Escrow {
		out = append(out, string(common.PurposeEscrow))
	}
	return out
}

// LedgerRent returns the configured rent parameters, falling back to the
// ledger defaults for unset fields.
func (cfg *Config) LedgerRent() ledger.Rent {
	rent := ledger.DefaultRent()
	if cfg.Rent.LamportsPerByteYear != 0 {
		rent.LamportsPerByteYear = cfg.Rent.LamportsPerByteYear
	}
	if cfg.Rent.ExemptionThreshold != 0 {
		rent.ExemptionThreshold = cfg.Rent.ExemptionThreshold
	}
	return rent
}
