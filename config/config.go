package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Program     Program     `toml:"Program" yaml:"program"`
	Authorities Authorities `toml:"Authorities" yaml:"authorities"`
	Rent        Rent        `toml:"Rent" yaml:"rent"`
	Escrow      Escrow      `toml:"Escrow" yaml:"escrow"`
	Pauses      Pauses      `toml:"Pauses" yaml:"pauses"`
	Storage     Storage     `toml:"Storage" yaml:"storage"`
	Logging     Logging     `toml:"Logging" yaml:"logging"`
	Telemetry   Telemetry   `toml:"Telemetry" yaml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a freshly generated default. Files ending in .yaml or .yml are
// decoded as YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.Program.ID = strings.TrimSpace(cfg.Program.ID)
	cfg.Authorities.Authority = strings.TrimSpace(cfg.Authorities.Authority)
	cfg.Authorities.FeeCollector = strings.TrimSpace(cfg.Authorities.FeeCollector)
	cfg.Authorities.DepositCollector = strings.TrimSpace(cfg.Authorities.DepositCollector)
	cfg.Escrow.ClosePolicy = strings.ToLower(strings.TrimSpace(cfg.Escrow.ClosePolicy))
	if cfg.Escrow.ClosePolicy == "" {
		cfg.Escrow.ClosePolicy = "strict"
	}
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		cfg.Storage.DataDir = "./card-data"
	}
	cfg.Storage.JournalDriver = strings.ToLower(strings.TrimSpace(cfg.Storage.JournalDriver))
	if cfg.Storage.JournalDriver == "" {
		cfg.Storage.JournalDriver = "sqlite"
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}

// createDefault creates and saves a default configuration file with freshly
// generated program and collector keys.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Program: Program{ID: solana.NewWallet().PublicKey().String()},
		Authorities: Authorities{
			FeeCollector:     solana.NewWallet().PublicKey().String(),
			DepositCollector: solana.NewWallet().PublicKey().String(),
		},
		Escrow: Escrow{ClosePolicy: "strict"},
		Storage: Storage{
			DataDir:       "./card-data",
			JournalDriver: "sqlite",
			JournalDSN:    "card-journal.db",
		},
		Logging: Logging{Level: "info"},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
