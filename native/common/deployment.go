package common

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"cardledger/core/ledger"
)

// ClosePolicy decides whether an escrow that was never settled or canceled
// may be closed.
type ClosePolicy string

const (
	// ClosePolicyStrict only closes Settled or Canceled escrows.
	ClosePolicyStrict ClosePolicy = "strict"
	// ClosePolicyAbandon also closes Initialized escrows, sweeping the vault
	// back to the source.
	ClosePolicyAbandon ClosePolicy = "abandon"
)

// ParseClosePolicy normalises raw, defaulting to strict when empty.
func ParseClosePolicy(raw string) (ClosePolicy, error) {
	switch ClosePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ClosePolicyStrict:
		return ClosePolicyStrict, nil
	case ClosePolicyAbandon:
		return ClosePolicyAbandon, nil
	default:
		return "", fmt.Errorf("unknown close policy %q", raw)
	}
}

// Deployment is the immutable authority set a program instance runs with.
type Deployment struct {
	ProgramID        solana.PublicKey
	Authority        solana.PublicKey
	FeeCollector     solana.PublicKey
	DepositCollector solana.PublicKey
	ClosePolicy      ClosePolicy
	Paused           []string
}

// PinsAuthority reports whether a single approval authority is configured.
// A zero authority lets any signer act as the approval authority of the
// escrows it initialises.
func (d Deployment) PinsAuthority() bool {
	return !d.Authority.IsZero()
}

// CheckAuthority validates the signer presented for the approval gate of a
// new escrow or receipt.
func (d Deployment) CheckAuthority(info *ledger.AccountInfo) error {
	if err := RequireSigner(info); err != nil {
		return err
	}
	if d.PinsAuthority() {
		return RequireKey(info, d.Authority, ErrInvalidAuthority)
	}
	return nil
}

// AllowsAbandon reports whether Initialized escrows may be closed.
func (d Deployment) AllowsAbandon() bool {
	return d.ClosePolicy == ClosePolicyAbandon
}

// IsPaused implements PauseView.
func (d Deployment) IsPaused(flow string) bool {
	for _, paused := range d.Paused {
		if strings.EqualFold(paused, flow) {
			return true
		}
	}
	return false
}
