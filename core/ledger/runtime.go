package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cardledger/core/events"
	"cardledger/core/types"
	"cardledger/observability/metrics"
)

// MaxInvokeDepth bounds nested cross-program invocations.
const MaxInvokeDepth = 4

var (
	ErrUnknownProgram       = errors.New("ledger: unknown program")
	ErrMissingSignature     = errors.New("ledger: missing required signature")
	ErrPrivilegeEscalation  = errors.New("ledger: writable privilege escalated")
	ErrAccountNotLoaded     = errors.New("ledger: account not referenced by instruction")
	ErrReadonlyModified     = errors.New("ledger: read-only account modified")
	ErrLamportsNotConserved = errors.New("ledger: lamports not conserved")
	ErrInsufficientRent     = errors.New("ledger: account would not be rent exempt")
	ErrCallDepth            = errors.New("ledger: cross-program invocation too deep")
	ErrInvalidSeeds         = errors.New("ledger: invalid signer seeds")
)

// Program executes instructions addressed to its program id.
type Program interface {
	Process(ctx context.Context, env Env, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ctx context.Context, env Env, accounts []*AccountInfo, data []byte) error

// Process implements Program.
func (f ProgramFunc) Process(ctx context.Context, env Env, accounts []*AccountInfo, data []byte) error {
	return f(ctx, env, accounts, data)
}

// Env is the view of the runtime available to a program for the duration of
// one invocation.
type Env interface {
	// ProgramID is the id of the program currently executing.
	ProgramID() solana.PublicKey
	Rent() Rent
	// Now returns the ledger clock in unix seconds.
	Now() int64
	// Invoke runs ix as a nested call. Every seed set is turned into a program
	// derived address of the calling program which then counts as a signer.
	Invoke(ctx context.Context, ix Instruction, signerSeeds ...[][]byte) error
	// Emit queues an event that is published only if the instruction commits.
	Emit(evt *types.Event)
	Logger() *slog.Logger
}

type registeredProgram struct {
	name    string
	program Program
}

// Runtime executes instructions against the bank. Each call to Execute runs to
// completion before the next starts; every write lands in a sandbox that is
// committed in one storage batch only when the whole instruction succeeds.
type Runtime struct {
	mu       sync.Mutex
	bank     *Bank
	programs map[solana.PublicKey]registeredProgram
	rent     Rent
	nowFn    func() int64
	emitter  events.Emitter
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewRuntime creates a runtime over bank with the system program registered.
func NewRuntime(bank *Bank) *Runtime {
	rt := &Runtime{
		bank:     bank,
		programs: make(map[solana.PublicKey]registeredProgram),
		rent:     DefaultRent(),
		nowFn:    func() int64 { return time.Now().Unix() },
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("cardledger/core/ledger"),
	}
	rt.Register(solana.SystemProgramID, "system", SystemProgram{})
	return rt
}

// Register installs program under id. The name labels logs and metrics.
func (r *Runtime) Register(id solana.PublicKey, name string, program Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = registeredProgram{name: name, program: program}
}

// Bank exposes the committed account store.
func (r *Runtime) Bank() *Bank { return r.bank }

// Rent returns the active rent parameters.
func (r *Runtime) Rent() Rent { return r.rent }

// SetRent overrides the rent parameters.
func (r *Runtime) SetRent(rent Rent) { r.rent = rent }

// SetNowFunc overrides the ledger clock. Primarily intended for tests to
// provide deterministic timestamps.
func (r *Runtime) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// SetEmitter configures where committed events are published. Passing nil
// resets the emitter to a no-op implementation.
func (r *Runtime) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetLogger overrides the runtime logger.
func (r *Runtime) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger
}

// Execute runs ix as a top-level instruction. Signer flags on the account
// metas are trusted: signature verification belongs to the transaction layer.
func (r *Runtime) Execute(ctx context.Context, ix Instruction) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	traceID := uuid.NewString()
	name := r.programName(ix.ProgramID)
	ctx, span := r.tracer.Start(ctx, "ledger.execute", trace.WithAttributes(
		attribute.String("program", name),
		attribute.String("trace_id", traceID),
	))
	started := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Warn("instruction failed",
				slog.String("program", name),
				slog.String("trace_id", traceID),
				slog.String("error", err.Error()))
		} else {
			r.logger.Debug("instruction committed",
				slog.String("program", name),
				slog.String("trace_id", traceID))
		}
		metrics.Ledger().RecordExecution(name, result, time.Since(started))
		span.End()
	}()

	sb, err := r.load(ix)
	if err != nil {
		return err
	}
	if err := sb.invoke(ctx, ix, nil, 0); err != nil {
		return err
	}
	changes, err := sb.verify()
	if err != nil {
		return err
	}
	if err := r.bank.commit(changes); err != nil {
		return err
	}
	sb.events.Flush(r.emitter)
	return nil
}

func (r *Runtime) programName(id solana.PublicKey) string {
	if reg, ok := r.programs[id]; ok && reg.name != "" {
		return reg.name
	}
	return id.String()
}

func (r *Runtime) load(ix Instruction) (*sandbox, error) {
	sb := &sandbox{
		rt:       r,
		accounts: make(map[solana.PublicKey]*Account, len(ix.Accounts)),
		before:   make(map[solana.PublicKey]*Account, len(ix.Accounts)),
		signers:  make(map[solana.PublicKey]bool),
		writable: make(map[solana.PublicKey]bool),
	}
	for _, meta := range ix.Accounts {
		if meta.IsSigner {
			sb.signers[meta.PublicKey] = true
		}
		if meta.IsWritable {
			sb.writable[meta.PublicKey] = true
		}
		if _, ok := sb.accounts[meta.PublicKey]; ok {
			continue
		}
		acc, ok, err := r.bank.Account(meta.PublicKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			acc = NewSystemAccount(0)
		}
		sb.before[meta.PublicKey] = acc.Clone()
		sb.accounts[meta.PublicKey] = acc
	}
	return sb, nil
}

type sandbox struct {
	rt       *Runtime
	accounts map[solana.PublicKey]*Account
	before   map[solana.PublicKey]*Account
	signers  map[solana.PublicKey]bool
	writable map[solana.PublicKey]bool
	events   events.Buffer
}

func (sb *sandbox) invoke(ctx context.Context, ix Instruction, derived map[solana.PublicKey]bool, depth int) error {
	if depth > MaxInvokeDepth {
		return ErrCallDepth
	}
	reg, ok := sb.rt.programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}
	infos := make([]*AccountInfo, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		acc, ok := sb.accounts[meta.PublicKey]
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotLoaded, meta.PublicKey)
		}
		if meta.IsSigner && !sb.signers[meta.PublicKey] && !derived[meta.PublicKey] {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.PublicKey)
		}
		if meta.IsWritable && !sb.writable[meta.PublicKey] {
			return fmt.Errorf("%w: %s", ErrPrivilegeEscalation, meta.PublicKey)
		}
		infos = append(infos, &AccountInfo{
			Key:        meta.PublicKey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    acc,
		})
	}
	inv := &invocation{sb: sb, programID: ix.ProgramID, name: reg.name, depth: depth}
	return reg.program.Process(ctx, inv, infos, ix.Data)
}

// verify enforces the runtime invariants over the sandbox and returns the set
// of accounts that changed.
func (sb *sandbox) verify() (map[solana.PublicKey]*Account, error) {
	before, after := new(uint256.Int), new(uint256.Int)
	changes := make(map[solana.PublicKey]*Account)
	for key, acc := range sb.accounts {
		prev := sb.before[key]
		before.Add(before, uint256.NewInt(prev.Lamports))
		after.Add(after, uint256.NewInt(acc.Lamports))
		if acc.Equal(prev) {
			continue
		}
		if !sb.writable[key] {
			return nil, fmt.Errorf("%w: %s", ErrReadonlyModified, key)
		}
		if acc.Lamports > 0 && len(acc.Data) > 0 && !sb.rt.rent.IsExempt(acc.Lamports, len(acc.Data)) {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientRent, key)
		}
		changes[key] = acc
	}
	if !before.Eq(after) {
		return nil, ErrLamportsNotConserved
	}
	return changes, nil
}

type invocation struct {
	sb        *sandbox
	programID solana.PublicKey
	name      string
	depth     int
}

func (inv *invocation) ProgramID() solana.PublicKey { return inv.programID }

func (inv *invocation) Rent() Rent { return inv.sb.rt.rent }

func (inv *invocation) Now() int64 { return inv.sb.rt.nowFn() }

func (inv *invocation) Emit(evt *types.Event) { inv.sb.events.Add(evt) }

func (inv *invocation) Logger() *slog.Logger {
	return inv.sb.rt.logger.With(slog.String("program", inv.name))
}

func (inv *invocation) Invoke(ctx context.Context, ix Instruction, signerSeeds ...[][]byte) error {
	derived := make(map[solana.PublicKey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := solana.CreateProgramAddress(seeds, inv.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		derived[addr] = true
	}
	return inv.sb.invoke(ctx, ix, derived, inv.depth+1)
}
