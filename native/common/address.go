package common

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Prefix is the first seed of every address the card program derives.
const Prefix = "card"

// Purpose distinguishes the derived accounts that share a reference.
type Purpose string

const (
	PurposeEscrow   Purpose = "escrow"
	PurposeVault    Purpose = "vault"
	PurposeDeposit  Purpose = "deposit"
	PurposeWithdraw Purpose = "withdraw"
	PurposeFunding  Purpose = "funding"
)

// Seeds returns the derivation seeds for purpose without the bump.
func Seeds(programID, reference solana.PublicKey, purpose Purpose) [][]byte {
	return [][]byte{
		[]byte(Prefix),
		programID.Bytes(),
		reference.Bytes(),
		[]byte(purpose),
	}
}

// SignerSeeds returns the full seed set, bump included, used to sign for a
// derived address.
func SignerSeeds(programID, reference solana.PublicKey, purpose Purpose, bump uint8) [][]byte {
	return append(Seeds(programID, reference, purpose), []byte{bump})
}

// FindAddress searches for the canonical bump of purpose under reference.
func FindAddress(programID, reference solana.PublicKey, purpose Purpose) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(Seeds(programID, reference, purpose), programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive %s address: %w", purpose, err)
	}
	return addr, bump, nil
}

// CreateAddress derives the address for an explicit bump.
func CreateAddress(programID, reference solana.PublicKey, purpose Purpose, bump uint8) (solana.PublicKey, error) {
	addr, err := solana.CreateProgramAddress(SignerSeeds(programID, reference, purpose, bump), programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s bump %d: %v", ErrInvalidKeyMatch, purpose, bump, err)
	}
	return addr, nil
}
