package main

import (
	"fmt"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"cardledger/core/ledger"
	"cardledger/core/token"
	"cardledger/native/escrow"
	"cardledger/native/receipt"
	"cardledger/storage"
)

type inspection struct {
	Key      string      `json:"key"`
	Owner    string      `json:"owner"`
	Lamports uint64      `json:"lamports"`
	Size     int         `json:"size"`
	Kind     string      `json:"kind"`
	Decoded  interface{} `json:"decoded,omitempty"`
}

type escrowView struct {
	State      string `json:"state"`
	Amount     uint64 `json:"amount"`
	FeeBps     uint16 `json:"feeBps"`
	FixedFee   uint64 `json:"fixedFee"`
	Source     string `json:"source,omitempty"`
	Dest       string `json:"destination,omitempty"`
	Vault      string `json:"vault,omitempty"`
	FeeAccount string `json:"feeAccount,omitempty"`
	Mint       string `json:"mint,omitempty"`
	Authority  string `json:"authority,omitempty"`
	Reference  string `json:"reference,omitempty"`
	SettledAt  *int64 `json:"settledAt,omitempty"`
}

type tokenView struct {
	Mint   string `json:"mint"`
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

// describe classifies an account by owner and size and decodes it.
func describe(programID, key solana.PublicKey, acc *ledger.Account) (*inspection, error) {
	out := &inspection{
		Key:      key.String(),
		Owner:    acc.Owner.String(),
		Lamports: acc.Lamports,
		Size:     len(acc.Data),
		Kind:     "system",
	}
	switch {
	case acc.Owner.Equals(token.ProgramID):
		decoded, err := token.Unpack(acc.Data)
		if err != nil {
			return nil, err
		}
		out.Kind = "token"
		out.Decoded = tokenView{Mint: decoded.Mint.String(), Owner: decoded.Owner.String(), Amount: decoded.Amount}
	case acc.Owner.Equals(programID) && len(acc.Data) == receipt.Size && acc.Data[0] != byte(escrow.StateClosed):
		decoded, err := receipt.Unpack(acc.Data)
		if err != nil {
			return nil, err
		}
		out.Kind = "receipt"
		out.Decoded = decoded
	case acc.Owner.Equals(programID):
		decoded, err := escrow.Unpack(acc.Data)
		if err != nil {
			return nil, err
		}
		out.Kind = "escrow"
		view := escrowView{
			State:     decoded.State.String(),
			Amount:    decoded.Amount,
			FeeBps:    decoded.Fees.Bps,
			FixedFee:  decoded.Fees.Fixed,
			SettledAt: decoded.SettledAt,
		}
		if decoded.State != escrow.StateClosed {
			view.Source = decoded.SrcToken.String()
			view.Dest = decoded.DstToken.String()
			view.Vault = decoded.VaultToken.String()
			view.FeeAccount = decoded.FeeToken.String()
			view.Mint = decoded.Mint.String()
			view.Authority = decoded.Authority.String()
			view.Reference = decoded.Reference.String()
		}
		out.Decoded = view
	}
	return out, nil
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "inspect <key>",
		Short: "Decode an account from the LevelDB data dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			programID, err := opts.programID()
			if err != nil {
				return err
			}
			if dataDir == "" {
				dataDir = cfg.Storage.DataDir
			}
			db, err := storage.NewLevelDB(filepath.Join(dataDir, "accounts"))
			if err != nil {
				return fmt.Errorf("open account store: %w", err)
			}
			defer db.Close()

			acc, ok, err := ledger.NewBank(db).Account(key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("account %s not found", key)
			}
			view, err := describe(programID, key, acc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory, defaults to the configured one")
	return cmd
}
