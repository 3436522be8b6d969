package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"cardledger/native/card"
	"cardledger/native/common"
)

type derived struct {
	Purpose string `json:"purpose"`
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

func newDeriveCmd(opts *rootOptions) *cobra.Command {
	var purpose string
	cmd := &cobra.Command{
		Use:       "derive <vault|escrow|receipt> <reference>",
		Short:     "Derive a program address for a reference",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"vault", "escrow", "receipt"},
		RunE: func(cmd *cobra.Command, args []string) error {
			programID, err := opts.programID()
			if err != nil {
				return err
			}
			reference, err := solana.PublicKeyFromBase58(args[1])
			if err != nil {
				return fmt.Errorf("invalid reference %q: %w", args[1], err)
			}
			var p common.Purpose
			switch args[0] {
			case "vault":
				p = common.PurposeVault
			case "escrow":
				p = common.PurposeEscrow
			case "receipt":
				switch common.Purpose(purpose) {
				case common.PurposeDeposit, common.PurposeWithdraw, common.PurposeFunding:
					p = common.Purpose(purpose)
				default:
					return fmt.Errorf("unknown receipt purpose %q", purpose)
				}
			default:
				return fmt.Errorf("unknown address kind %q", args[0])
			}
			addr, bump, err := card.FindReceiptAddress(programID, reference, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), derived{Purpose: string(p), Address: addr.String(), Bump: bump})
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", string(common.PurposeDeposit), "receipt purpose: deposit, withdraw or funding")
	return cmd
}
