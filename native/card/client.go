package card

import (
	"github.com/gagliardetto/solana-go"

	"cardledger/core/ledger"
	"cardledger/core/token"
	"cardledger/native/common"
	"cardledger/native/escrow"
	"cardledger/native/receipt"
)

// FindVaultAuthority derives the authority that controls the vault of the
// escrow identified by reference.
func FindVaultAuthority(programID, reference solana.PublicKey) (solana.PublicKey, uint8, error) {
	return common.FindAddress(programID, reference, common.PurposeVault)
}

// FindEscrowAddress derives the escrow record address for reference.
func FindEscrowAddress(programID, reference solana.PublicKey) (solana.PublicKey, uint8, error) {
	return common.FindAddress(programID, reference, common.PurposeEscrow)
}

// FindReceiptAddress derives the receipt address of a deposit, withdrawal or
// funding flow.
func FindReceiptAddress(programID, reference solana.PublicKey, purpose common.Purpose) (solana.PublicKey, uint8, error) {
	return common.FindAddress(programID, reference, purpose)
}

// EscrowKeys are the derived addresses of one escrow.
type EscrowKeys struct {
	Escrow     solana.PublicKey
	EscrowBump uint8
	VaultOwner solana.PublicKey
	VaultBump  uint8
}

// DeriveEscrow computes every derived address an escrow needs.
func DeriveEscrow(programID, reference solana.PublicKey) (EscrowKeys, error) {
	var keys EscrowKeys
	var err error
	if keys.Escrow, keys.EscrowBump, err = FindEscrowAddress(programID, reference); err != nil {
		return EscrowKeys{}, err
	}
	if keys.VaultOwner, keys.VaultBump, err = FindVaultAuthority(programID, reference); err != nil {
		return EscrowKeys{}, err
	}
	return keys, nil
}

// InitEscrowAccounts lists the accounts of InitEscrow. For the native mint
// Vault equals VaultOwner and Source equals Wallet.
type InitEscrowAccounts struct {
	Wallet      solana.PublicKey
	Authority   solana.PublicKey
	FeePayer    solana.PublicKey
	Escrow      solana.PublicKey
	VaultOwner  solana.PublicKey
	Vault       solana.PublicKey
	Source      solana.PublicKey
	Destination solana.PublicKey
	Fee         solana.PublicKey
	Mint        solana.PublicKey
	Reference   solana.PublicKey
}

// NewInitEscrow builds an InitEscrow instruction.
func NewInitEscrow(programID solana.PublicKey, a InitEscrowAccounts, args escrow.InitArgs) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Signer(a.Wallet),
			ledger.Signer(a.Authority),
			ledger.WritableSigner(a.FeePayer),
			ledger.Writable(a.Escrow),
			ledger.ReadOnly(a.VaultOwner),
			ledger.Writable(a.Vault),
			ledger.Writable(a.Source),
			ledger.ReadOnly(a.Destination),
			ledger.ReadOnly(a.Fee),
			ledger.ReadOnly(a.Mint),
			ledger.ReadOnly(a.Reference),
			ledger.ReadOnly(solana.SysVarRentPubkey),
			ledger.ReadOnly(solana.SystemProgramID),
			ledger.ReadOnly(token.ProgramID),
		},
		Data: mustEncode(&Instruction{Tag: TagInitEscrow, Escrow: &args}),
	}
}

// SettleAccounts lists the accounts of Settle.
type SettleAccounts struct {
	Authority   solana.PublicKey
	Destination solana.PublicKey
	Fee         solana.PublicKey
	Vault       solana.PublicKey
	Escrow      solana.PublicKey
	Mint        solana.PublicKey
	VaultOwner  solana.PublicKey
}

// NewSettle builds a Settle instruction.
func NewSettle(programID solana.PublicKey, a SettleAccounts) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Signer(a.Authority),
			ledger.Writable(a.Destination),
			ledger.Writable(a.Fee),
			ledger.Writable(a.Vault),
			ledger.Writable(a.Escrow),
			ledger.ReadOnly(a.Mint),
			ledger.ReadOnly(a.VaultOwner),
			ledger.ReadOnly(token.ProgramID),
			ledger.ReadOnly(solana.SystemProgramID),
		},
		Data: []byte{byte(TagSettle)},
	}
}

// CancelAccounts lists the accounts of Cancel.
type CancelAccounts struct {
	Authority  solana.PublicKey
	Escrow     solana.PublicKey
	Source     solana.PublicKey
	Vault      solana.PublicKey
	Mint       solana.PublicKey
	VaultOwner solana.PublicKey
}

// NewCancel builds a Cancel instruction.
func NewCancel(programID solana.PublicKey, a CancelAccounts) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Signer(a.Authority),
			ledger.Writable(a.Escrow),
			ledger.Writable(a.Source),
			ledger.Writable(a.Vault),
			ledger.ReadOnly(a.Mint),
			ledger.ReadOnly(a.VaultOwner),
			ledger.ReadOnly(token.ProgramID),
			ledger.ReadOnly(solana.SystemProgramID),
		},
		Data: []byte{byte(TagCancel)},
	}
}

// CloseAccounts lists the accounts of Close.
type CloseAccounts struct {
	Authority  solana.PublicKey
	Escrow     solana.PublicKey
	FeePayer   solana.PublicKey
	Source     solana.PublicKey
	Vault      solana.PublicKey
	Mint       solana.PublicKey
	VaultOwner solana.PublicKey
}

// NewClose builds a Close instruction.
func NewClose(programID solana.PublicKey, a CloseAccounts) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Signer(a.Authority),
			ledger.Writable(a.Escrow),
			ledger.Writable(a.FeePayer),
			ledger.Writable(a.Source),
			ledger.Writable(a.Vault),
			ledger.ReadOnly(a.Mint),
			ledger.ReadOnly(a.VaultOwner),
			ledger.ReadOnly(token.ProgramID),
			ledger.ReadOnly(solana.SystemProgramID),
		},
		Data: []byte{byte(TagClose)},
	}
}

// ReceiptAccounts lists the accounts shared by the receipt flows.
// Destination is the collection account for deposits and funding and the
// payee for withdrawals.
type ReceiptAccounts struct {
	User        solana.PublicKey
	Authority   solana.PublicKey
	Payer       solana.PublicKey
	Receipt     solana.PublicKey
	Source      solana.PublicKey
	Destination solana.PublicKey
	Fee         solana.PublicKey
	Mint        solana.PublicKey
}

func receiptMetas(a ReceiptAccounts) []ledger.AccountMeta {
	return []ledger.AccountMeta{
		ledger.Signer(a.User),
		ledger.Signer(a.Authority),
		ledger.WritableSigner(a.Payer),
		ledger.Writable(a.Receipt),
		ledger.Writable(a.Source),
		ledger.Writable(a.Destination),
		ledger.Writable(a.Fee),
		ledger.ReadOnly(a.Mint),
		ledger.ReadOnly(solana.SysVarRentPubkey),
		ledger.ReadOnly(solana.SystemProgramID),
		ledger.ReadOnly(token.ProgramID),
	}
}

// NewInitDeposit builds an InitDeposit instruction.
func NewInitDeposit(programID solana.PublicKey, a ReceiptAccounts, args receipt.DepositArgs) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: programID,
		Accounts:  receiptMetas(a),
		Data:      mustEncode(&Instruction{Tag: TagInitDeposit, Deposit: &args}),
	}
}

// NewInitWithdrawal builds an InitWithdrawal instruction.
func NewInitWithdrawal(programID solana.PublicKey, a ReceiptAccounts, args receipt.WithdrawArgs) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: programID,
		Accounts:  receiptMetas(a),
		Data:      mustEncode(&Instruction{Tag: TagInitWithdrawal, Withdraw: &args}),
	}
}

// NewInitFunding builds an InitFunding instruction.
func NewInitFunding(programID solana.PublicKey, a ReceiptAccounts, args receipt.FundingArgs) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: programID,
		Accounts:  receiptMetas(a),
		Data:      mustEncode(&Instruction{Tag: TagInitFunding, Funding: &args}),
	}
}
