package main

import (
	"github.com/spf13/cobra"

	"cardledger/native/fees"
)

type feeQuote struct {
	Amount        uint64 `json:"amount"`
	FeeBps        uint16 `json:"feeBps"`
	FixedFee      uint64 `json:"fixedFee"`
	Fee           uint64 `json:"fee"`
	TotalFee      uint64 `json:"totalFee"`
	TotalWithFee  uint64 `json:"totalWithFee"`
	AmountLessFee uint64 `json:"amountLessFee"`
}

func quote(amount uint64, bps uint16, fixed uint64) (feeQuote, error) {
	q := feeQuote{Amount: amount, FeeBps: bps, FixedFee: fixed}
	var err error
	if q.Fee, err = fees.Fee(amount, bps); err != nil {
		return q, err
	}
	if q.TotalFee, err = fees.TotalFee(amount, bps, fixed); err != nil {
		return q, err
	}
	if q.TotalWithFee, err = fees.TotalWithFee(amount, bps, fixed); err != nil {
		return q, err
	}
	if q.AmountLessFee, err = fees.AmountLessFee(amount, bps); err != nil {
		return q, err
	}
	return q, nil
}

func newFeeCmd() *cobra.Command {
	var (
		amount uint64
		bps    uint16
		fixed  uint64
	)
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Quote the fees charged for an amount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := quote(amount, bps, fixed)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		},
	}
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount in base units")
	cmd.Flags().Uint16Var(&bps, "bps", 0, "proportional fee in basis points")
	cmd.Flags().Uint64Var(&fixed, "fixed", 0, "fixed fee in base units")
	return cmd
}
