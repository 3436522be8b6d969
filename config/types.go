package config

// Program identifies the deployed card program.
type Program struct {
	ID string `toml:"ID" yaml:"id"`
}

// Authorities names the keys the program trusts. An empty Authority lets any
// signer approve the escrows it initialises.
type Authorities struct {
	Authority        string `toml:"Authority" yaml:"authority"`
	FeeCollector     string `toml:"FeeCollector" yaml:"fee_collector"`
	DepositCollector string `toml:"DepositCollector" yaml:"deposit_collector"`
}

// Rent overrides the ledger rent parameters. Zero values keep the defaults.
type Rent struct {
	LamportsPerByteYear uint64  `toml:"LamportsPerByteYear" yaml:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `toml:"ExemptionThreshold" yaml:"exemption_threshold"`
}

// Escrow carries escrow lifecycle policy.
type Escrow struct {
	ClosePolicy string `toml:"ClosePolicy" yaml:"close_policy"`
}

// Pauses halts the flows that open new escrows or receipts. Settle, Cancel
// and Close stay available.
type Pauses struct {
	Deposit  bool `toml:"Deposit" yaml:"deposit"`
	Withdraw bool `toml:"Withdraw" yaml:"withdraw"`
	Funding  bool `toml:"Funding" yaml:"funding"`
	Escrow   bool `toml:"Escrow" yaml:"escrow"`
}

// Storage locates the account store and the event journal.
type Storage struct {
	DataDir       string `toml:"DataDir" yaml:"data_dir"`
	JournalDriver string `toml:"JournalDriver" yaml:"journal_driver"`
	JournalDSN    string `toml:"JournalDSN" yaml:"journal_dsn"`
}

// Logging configures the structured logger.
type Logging struct {
	Level string `toml:"Level" yaml:"level"`
	File  string `toml:"File" yaml:"file"`
	Env   string `toml:"Env" yaml:"env"`
}

// Telemetry configures OTLP export. An empty endpoint disables it.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Headers  string `toml:"Headers" yaml:"headers"`
}
