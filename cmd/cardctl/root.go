package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"cardledger/config"
)

const defaultConfig = "./cardctl.toml"

type rootOptions struct {
	configFile string
	program    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "cardctl",
		Short:         "Operate and inspect the card escrow program",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", defaultConfig, "configuration file (TOML or YAML)")
	root.PersistentFlags().StringVar(&opts.program, "program", "", "program id, overrides the configured one")

	root.AddCommand(
		newDeriveCmd(opts),
		newFeeCmd(),
		newSimulateCmd(opts),
		newInspectCmd(opts),
	)
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// programID resolves the program id from the flag or the config file.
func (o *rootOptions) programID() (solana.PublicKey, error) {
	raw := o.program
	if raw == "" {
		cfg, err := o.load()
		if err != nil {
			return solana.PublicKey{}, err
		}
		raw = cfg.Program.ID
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program id %q: %w", raw, err)
	}
	return key, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
