package config

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cardledger/native/common"
	"cardledger/storage/journal"
)

// Validate rejects malformed keys, unknown policies and drivers.
func (cfg *Config) Validate() error {
	if cfg.Program.ID == "" {
		return fmt.Errorf("program: ID required")
	}
	if _, err := parseKey(cfg.Program.ID); err != nil {
		return fmt.Errorf("program: ID: %w", err)
	}
	if cfg.Authorities.Authority != "" {
		if _, err := parseKey(cfg.Authorities.Authority); err != nil {
			return fmt.Errorf("authorities: Authority: %w", err)
		}
	}
	if cfg.Authorities.FeeCollector == "" || cfg.Authorities.DepositCollector == "" {
		return fmt.Errorf("authorities: FeeCollector and DepositCollector required")
	}
	if _, err := parseKey(cfg.Authorities.FeeCollector); err != nil {
		return fmt.Errorf("authorities: FeeCollector: %w", err)
	}
	if _, err := parseKey(cfg.Authorities.DepositCollector); err != nil {
		return fmt.Errorf("authorities: DepositCollector: %w", err)
	}
	if _, err := common.ParseClosePolicy(cfg.Escrow.ClosePolicy); err != nil {
		return fmt.Errorf("escrow: %w", err)
	}
	if cfg.Rent.ExemptionThreshold < 0 {
		return fmt.Errorf("rent: ExemptionThreshold < 0")
	}
	switch cfg.Storage.JournalDriver {
	case "", journal.DriverSQLite, journal.DriverPostgres:
	default:
		return fmt.Errorf("storage: unknown JournalDriver %q", cfg.Storage.JournalDriver)
	}
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown Level %q", cfg.Logging.Level)
	}
	return nil
}

func parseKey(raw string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid key %q: %w", raw, err)
	}
	return key, nil
}
