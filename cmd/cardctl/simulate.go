package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cardledger/config"
	"cardledger/core/events"
	"cardledger/core/ledger"
	"cardledger/core/token"
	"cardledger/native/card"
	"cardledger/native/common"
	"cardledger/native/escrow"
	"cardledger/native/receipt"
	"cardledger/observability/logging"
	cardotel "cardledger/observability/otel"
	"cardledger/storage"
	"cardledger/storage/journal"
)

const (
	simPayerFunds  = 10_000_000_000
	simSourceFunds = 5_000_000
)

type stepResult struct {
	Step  string  `json:"step"`
	OK    bool    `json:"ok"`
	Error string  `json:"error,omitempty"`
	Code  *uint32 `json:"code,omitempty"`
}

type journalLine struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
}

type simulationReport struct {
	Program  string            `json:"program"`
	Steps    []stepResult      `json:"steps"`
	Balances map[string]uint64 `json:"balances"`
	Journal  []journalLine     `json:"journal"`
}

// simulation drives the documented escrow and receipt scenarios against a
// live runtime.
type simulation struct {
	rt         *ledger.Runtime
	bank       *ledger.Bank
	journal    *journal.Journal
	deployment common.Deployment
	mint       solana.PublicKey
	wallet     solana.PublicKey
	payer      solana.PublicKey
	authority  solana.PublicKey
	source     solana.PublicKey
	collection solana.PublicKey
	feeAccount solana.PublicKey
	report     *simulationReport
}

func newSimulation(db storage.Database, j *journal.Journal, deployment common.Deployment, rent ledger.Rent, logger *slog.Logger) (*simulation, error) {
	bank := ledger.NewBank(db)
	rt := ledger.NewRuntime(bank)
	rt.SetRent(rent)
	rt.SetLogger(logger)
	rt.Register(token.ProgramID, "token", token.Program{})
	card.NewProcessor(deployment).Register(rt)
	rt.SetEmitter(events.Multi{j, card.NewMetricsObserver()})

	s := &simulation{
		rt:         rt,
		bank:       bank,
		journal:    j,
		deployment: deployment,
		mint:       solana.NewWallet().PublicKey(),
		wallet:     solana.NewWallet().PublicKey(),
		payer:      solana.NewWallet().PublicKey(),
		authority:  solana.NewWallet().PublicKey(),
		report: &simulationReport{
			Program:  deployment.ProgramID.String(),
			Balances: map[string]uint64{},
		},
	}
	if deployment.PinsAuthority() {
		s.authority = deployment.Authority
	}
	if err := bank.SetAccount(s.payer, ledger.NewSystemAccount(simPayerFunds)); err != nil {
		return nil, err
	}
	var err error
	if s.source, err = s.fundToken(s.wallet, simSourceFunds); err != nil {
		return nil, err
	}
	if s.collection, err = s.fundToken(deployment.DepositCollector, 0); err != nil {
		return nil, err
	}
	if s.feeAccount, err = s.fundToken(deployment.FeeCollector, 0); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *simulation) fundToken(owner solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	key := solana.NewWallet().PublicKey()
	return key, token.Fund(s.bank, s.rt.Rent(), key, s.mint, owner, amount)
}

func (s *simulation) exec(ctx context.Context, step string, ix ledger.Instruction) bool {
	res := stepResult{Step: step, OK: true}
	if err := s.rt.Execute(ctx, ix); err != nil {
		res.OK = false
		res.Error = err.Error()
		if code, ok := common.Code(err); ok {
			res.Code = &code
		}
	}
	s.report.Steps = append(s.report.Steps, res)
	return res.OK
}

type simEscrow struct {
	keys  card.EscrowKeys
	ref   solana.PublicKey
	vault solana.PublicKey
}

func (s *simulation) openEscrow(ctx context.Context, name string, args escrow.InitArgs) (*simEscrow, error) {
	ref := solana.NewWallet().PublicKey()
	keys, err := card.DeriveEscrow(s.deployment.ProgramID, ref)
	if err != nil {
		return nil, err
	}
	vault, err := s.fundToken(keys.VaultOwner, 0)
	if err != nil {
		return nil, err
	}
	args.Bump = keys.EscrowBump
	e := &simEscrow{keys: keys, ref: ref, vault: vault}
	s.exec(ctx, name+".init", card.NewInitEscrow(s.deployment.ProgramID, card.InitEscrowAccounts{
		Wallet:      s.wallet,
		Authority:   s.authority,
		FeePayer:    s.payer,
		Escrow:      keys.Escrow,
		VaultOwner:  keys.VaultOwner,
		Vault:       vault,
		Source:      s.source,
		Destination: s.collection,
		Fee:         s.feeAccount,
		Mint:        s.mint,
		Reference:   ref,
	}, args))
	return e, nil
}

func (s *simulation) settle(ctx context.Context, name string, e *simEscrow) {
	s.exec(ctx, name+".settle", card.NewSettle(s.deployment.ProgramID, card.SettleAccounts{
		Authority:   s.authority,
		Destination: s.collection,
		Fee:         s.feeAccount,
		Vault:       e.vault,
		Escrow:      e.keys.Escrow,
		Mint:        s.mint,
		VaultOwner:  e.keys.VaultOwner,
	}))
}

func (s *simulation) cancel(ctx context.Context, name string, e *simEscrow) {
	s.exec(ctx, name+".cancel", card.NewCancel(s.deployment.ProgramID, card.CancelAccounts{
		Authority:  s.authority,
		Escrow:     e.keys.Escrow,
		Source:     s.source,
		Vault:      e.vault,
		Mint:       s.mint,
		VaultOwner: e.keys.VaultOwner,
	}))
}

func (s *simulation) close(ctx context.Context, name string, e *simEscrow) {
	s.exec(ctx, name+".close", card.NewClose(s.deployment.ProgramID, card.CloseAccounts{
		Authority:  s.authority,
		Escrow:     e.keys.Escrow,
		FeePayer:   s.payer,
		Source:     s.source,
		Vault:      e.vault,
		Mint:       s.mint,
		VaultOwner: e.keys.VaultOwner,
	}))
}

func (s *simulation) receiptAccounts(purpose common.Purpose) (card.ReceiptAccounts, solana.PublicKey, uint8, error) {
	ref := solana.NewWallet().PublicKey()
	addr, bump, err := card.FindReceiptAddress(s.deployment.ProgramID, ref, purpose)
	if err != nil {
		return card.ReceiptAccounts{}, ref, 0, err
	}
	return card.ReceiptAccounts{
		User:        s.wallet,
		Authority:   s.authority,
		Payer:       s.payer,
		Receipt:     addr,
		Source:      s.source,
		Destination: s.collection,
		Fee:         s.feeAccount,
		Mint:        s.mint,
	}, ref, bump, nil
}

// run plays: settle an escrow, cancel another, close both, take a deposit
// twice under one reference, and run a funding flow.
func (s *simulation) run(ctx context.Context) error {
	settled, err := s.openEscrow(ctx, "escrow-settle", escrow.InitArgs{Amount: 1_000_000, FeeBps: 50, FixedFee: 1_000})
	if err != nil {
		return err
	}
	s.settle(ctx, "escrow-settle", settled)
	s.cancel(ctx, "escrow-settle", settled)
	s.close(ctx, "escrow-settle", settled)

	canceled, err := s.openEscrow(ctx, "escrow-cancel", escrow.InitArgs{Amount: 500_000, FeeBps: 25})
	if err != nil {
		return err
	}
	s.cancel(ctx, "escrow-cancel", canceled)
	s.settle(ctx, "escrow-cancel", canceled)
	s.close(ctx, "escrow-cancel", canceled)

	deposit, ref, bump, err := s.receiptAccounts(common.PurposeDeposit)
	if err != nil {
		return err
	}
	args := receipt.DepositArgs{Amount: 1_000_000, FeeBps: 50, Key: ref, Bump: bump}
	s.exec(ctx, "deposit", card.NewInitDeposit(s.deployment.ProgramID, deposit, args))
	s.exec(ctx, "deposit.replay", card.NewInitDeposit(s.deployment.ProgramID, deposit, args))

	funding, ref, bump, err := s.receiptAccounts(common.PurposeFunding)
	if err != nil {
		return err
	}
	s.exec(ctx, "funding", card.NewInitFunding(s.deployment.ProgramID, funding, receipt.FundingArgs{
		Amount: 100_000, FeeBps: 50, Key: ref, Bump: bump,
	}))

	for name, key := range map[string]solana.PublicKey{
		"source":     s.source,
		"collection": s.collection,
		"fee":        s.feeAccount,
	} {
		amount, err := token.Balance(s.bank, key)
		if err != nil {
			return fmt.Errorf("balance %s: %w", name, err)
		}
		s.report.Balances[name] = amount
	}
	lamports, err := s.bank.Lamports(s.payer)
	if err != nil {
		return err
	}
	s.report.Balances["payer.lamports"] = lamports

	entries, err := s.journal.List(ctx, journal.Filter{})
	if err != nil {
		return err
	}
	for _, entry := range entries {
		s.report.Journal = append(s.report.Journal, journalLine{Type: entry.Type, Subject: entry.Subject})
	}
	return nil
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var persist bool
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the escrow and receipt scenarios against a fresh ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			report, err := simulate(cmd.Context(), cfg, persist, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&persist, "persist", false, "write accounts to the LevelDB data dir and events to the configured journal")
	return cmd
}

func simulate(ctx context.Context, cfg *config.Config, persist bool, logOut io.Writer) (*simulationReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.Setup("cardctl", cfg.Logging.Env, logging.Options{
		Level:  cfg.Logging.Level,
		File:   cfg.Logging.File,
		Output: logOut,
	})
	deployment, err := cfg.Deployment()
	if err != nil {
		return nil, err
	}
	shutdown, err := cardotel.Init(ctx, cardotel.FromTelemetry("cardctl", cfg.Logging.Env, cfg.Telemetry, deployment))
	if err != nil {
		return nil, err
	}
	defer func() { _ = shutdown(context.Background()) }()

	var db storage.Database = storage.NewMemDB()
	driver, dsn := journal.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	if persist {
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.Storage.DataDir, "accounts"))
		if err != nil {
			return nil, fmt.Errorf("open account store: %w", err)
		}
		db = ldb
		driver, dsn = cfg.Storage.JournalDriver, cfg.Storage.JournalDSN
	}
	defer db.Close()

	logger.Info("opening journal", slog.String("driver", driver), logging.MaskField("dsn", dsn))
	gdb, err := journal.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j, err := journal.New(gdb, logger)
	if err != nil {
		return nil, err
	}

	sim, err := newSimulation(db, j, deployment, cfg.LedgerRent(), logger)
	if err != nil {
		return nil, err
	}
	if err := sim.run(ctx); err != nil {
		return nil, err
	}
	logger.Info("simulation finished", slog.Int("steps", len(sim.report.Steps)))
	return sim.report, nil
}
