package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ryft/core/events"
	"ryft/core/types"
	"ryft/crypto"
	"ryft/native/bank"
	"ryft/native/ryft"
	"ryft/observability"
	"ryft/state"
	"ryft/storage"
)

// EventSink archives the events of committed units.
type EventSink interface {
	Append(ctx context.Context, unitID uuid.UUID, caller string, events []*types.Event) error
}

// Allocation is a genesis token balance.
type Allocation struct {
	Address crypto.Address
	Balance uint64
}

// Genesis describes the ledger created on first boot.
type Genesis struct {
	Admin      crypto.Address
	Treasury   crypto.Address
	FeeRateBps uint64
	AllowList  []crypto.Address
	Accounts   []Allocation
}

// Receipt summarises a committed unit.
type Receipt struct {
	UnitID  uuid.UUID           `json:"unitId"`
	Results []InstructionResult `json:"results"`
	Events  []*types.Event      `json:"events"`
	State   *ryft.GlobalState   `json:"state"`
}

// Runtime executes instruction bundles against the ledger. Every bundle is
// one all-or-nothing unit: events are published only after the unit commits.
type Runtime struct {
	store  *state.Store
	engine *ryft.Engine
	sink   EventSink
	logger *slog.Logger
}

// New builds a runtime over db. The engine supplies the clock, pause switch
// and module accounts; its state handles are rebound for every unit.
func New(db storage.Database, engine *ryft.Engine, sink EventSink, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = ryft.NewEngine(ryft.DefaultAccounts())
	}
	return &Runtime{
		store:  state.NewStore(db),
		engine: engine,
		sink:   sink,
		logger: logger.With(slog.String("component", "runtime")),
	}
}

// Bootstrap creates the ledger, seeds the allow-list and credits genesis
// balances. It does nothing when the ledger already exists.
func (r *Runtime) Bootstrap(ctx context.Context, genesis Genesis) error {
	unitID := uuid.New()
	buf := &events.Buffer{}
	created := false
	var snapshot *ryft.GlobalState
	err := r.store.Update(ctx, func(m *state.Manager) error {
		tokens := bank.NewLedger(m)
		engine := r.engine.Bind(m, tokens, buf)
		_, err := engine.GlobalState()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ryft.ErrNotInitialized) {
			return err
		}
		if _, err := engine.Initialize(genesis.Admin, genesis.Treasury, genesis.FeeRateBps); err != nil {
			return err
		}
		for _, member := range genesis.AllowList {
			if err := engine.AddToAllowList(genesis.Admin, member); err != nil {
				return fmt.Errorf("allow-list %s: %w", member, err)
			}
		}
		for _, alloc := range genesis.Accounts {
			if err := tokens.Credit(alloc.Address, alloc.Balance); err != nil {
				return fmt.Errorf("genesis %s: %w", alloc.Address, err)
			}
		}
		created = true
		snapshot, err = engine.GlobalState()
		return err
	})
	if err != nil {
		return fmt.Errorf("runtime: bootstrap: %w", err)
	}
	if !created {
		r.logger.Info("ledger already initialized")
		return r.refreshGauges(ctx)
	}
	r.logger.Info("ledger initialized",
		slog.String("admin", genesis.Admin.String()),
		slog.Uint64("feeRateBps", genesis.FeeRateBps),
		slog.Int("genesisAccounts", len(genesis.Accounts)),
	)
	r.publish(ctx, unitID, genesis.Admin, buf.Drain(), snapshot)
	return nil
}

// Execute runs instructions in order as a single unit on behalf of caller.
// The first failing instruction discards every write of the unit. A unit that
// issues a flash loan must also repay it and return principal plus fee to the
// pool before it ends.
func (r *Runtime) Execute(ctx context.Context, caller crypto.Address, instructions []Instruction) (*Receipt, error) {
	if len(instructions) == 0 {
		return nil, ErrEmptyBundle
	}
	if len(instructions) > MaxBundleSize {
		return nil, ErrBundleTooLarge
	}
	receipt := &Receipt{UnitID: uuid.New()}
	buf := &events.Buffer{}
	err := r.store.Update(ctx, func(m *state.Manager) error {
		tokens := bank.NewLedger(m)
		engine := r.engine.Bind(m, tokens, buf)
		results := make([]InstructionResult, 0, len(instructions))
		var settle *settlement
		for i, ins := range instructions {
			if ins.Op == OpFlashLoan && settle == nil {
				opened, err := openSettlement(engine, tokens)
				if err != nil {
					return &InstructionError{Index: i, Op: ins.Op, Err: err}
				}
				settle = opened
			}
			result, err := apply(engine, tokens, caller, ins)
			if err != nil {
				return &InstructionError{Index: i, Op: ins.Op, Err: err}
			}
			results = append(results, result)
		}
		snapshot, err := engine.GlobalState()
		if err != nil {
			return err
		}
		if settle != nil {
			if err := settle.verify(snapshot, tokens); err != nil {
				return err
			}
		}
		receipt.Results = results
		receipt.State = snapshot
		return nil
	})
	metrics := observability.Ledger()
	if err != nil {
		op := "unit"
		var insErr *InstructionError
		if errors.As(err, &insErr) {
			op = insErr.Op
		}
		metrics.RecordOperation(op, Reason(err))
		r.logger.Warn("unit aborted",
			slog.String("caller", caller.String()),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	for _, ins := range instructions {
		metrics.RecordOperation(ins.Op, "")
	}
	receipt.Events = make([]*types.Event, 0, buf.Len())
	drained := buf.Drain()
	for _, evt := range drained {
		receipt.Events = append(receipt.Events, evt.Event().Clone())
	}
	r.publish(ctx, receipt.UnitID, caller, drained, receipt.State)
	return receipt, nil
}

func (r *Runtime) publish(ctx context.Context, unitID uuid.UUID, caller crypto.Address, drained []events.Event, snapshot *ryft.GlobalState) {
	metrics := observability.Ledger()
	payload := make([]*types.Event, 0, len(drained))
	for _, evt := range drained {
		if evt == nil || evt.Event() == nil {
			continue
		}
		payload = append(payload, evt.Event().Clone())
		metrics.RecordEvent(evt.EventType())
		r.logger.Info("ledger event",
			slog.String("event", evt.EventType()),
			slog.String("unit", unitID.String()),
			slog.Any("attributes", evt.Event().Attributes),
		)
	}
	if snapshot != nil {
		metrics.SetSnapshot(snapshotOf(snapshot))
	}
	if r.sink == nil || len(payload) == 0 {
		return
	}
	// The ledger has already committed; a journal failure only loses history.
	if err := r.sink.Append(context.WithoutCancel(ctx), unitID, caller.String(), payload); err != nil {
		r.logger.Error("journal append failed", slog.String("unit", unitID.String()), slog.String("error", err.Error()))
	}
}

func (r *Runtime) refreshGauges(ctx context.Context) error {
	global, err := r.GlobalState(ctx)
	if err != nil {
		return err
	}
	observability.Ledger().SetSnapshot(snapshotOf(global))
	return nil
}

func snapshotOf(g *ryft.GlobalState) observability.LedgerSnapshot {
	return observability.LedgerSnapshot{
		TotalLiquidity:  g.TotalLiquidity,
		TotalStaked:     g.TotalStaked,
		AccumulatedFees: g.AccumulatedFees,
		FeeRateBps:      g.FeeRateBps,
		FlashLoanActive: g.FlashLoanActive(),
		AllowListSize:   len(g.AllowList),
	}
}

func (r *Runtime) view(ctx context.Context, fn func(*ryft.Engine, *bank.Ledger) error) error {
	return r.store.View(ctx, func(m *state.Manager) error {
		tokens := bank.NewLedger(m)
		return fn(r.engine.Bind(m, tokens, nil), tokens)
	})
}

// GlobalState returns the committed pool ledger.
func (r *Runtime) GlobalState(ctx context.Context) (*ryft.GlobalState, error) {
	var global *ryft.GlobalState
	err := r.view(ctx, func(e *ryft.Engine, _ *bank.Ledger) error {
		var err error
		global, err = e.GlobalState()
		return err
	})
	return global, err
}

// StakeOf returns the committed stake account of owner.
func (r *Runtime) StakeOf(ctx context.Context, owner crypto.Address) (*ryft.StakeAccount, error) {
	var acc *ryft.StakeAccount
	err := r.view(ctx, func(e *ryft.Engine, _ *bank.Ledger) error {
		var err error
		acc, err = e.StakeOf(owner)
		return err
	})
	return acc, err
}

// ReputationOf returns the repayment counter of borrower.
func (r *Runtime) ReputationOf(ctx context.Context, borrower crypto.Address) (*ryft.Reputation, error) {
	var rep *ryft.Reputation
	err := r.view(ctx, func(e *ryft.Engine, _ *bank.Ledger) error {
		var err error
		rep, err = e.ReputationOf(borrower)
		return err
	})
	return rep, err
}

// ActiveFlashLoan returns the live loan of borrower, if any.
func (r *Runtime) ActiveFlashLoan(ctx context.Context, borrower crypto.Address) (*ryft.FlashLoan, bool, error) {
	var (
		loan *ryft.FlashLoan
		ok   bool
	)
	err := r.view(ctx, func(e *ryft.Engine, _ *bank.Ledger) error {
		var err error
		loan, ok, err = e.ActiveFlashLoan(borrower)
		return err
	})
	return loan, ok, err
}

// BalanceOf returns the token balance of addr.
func (r *Runtime) BalanceOf(ctx context.Context, addr crypto.Address) (uint64, error) {
	var balance uint64
	err := r.view(ctx, func(_ *ryft.Engine, tokens *bank.Ledger) error {
		var err error
		balance, err = tokens.BalanceOf(addr)
		return err
	})
	return balance, err
}

// Accounts returns the module accounts of the ledger.
func (r *Runtime) Accounts() ryft.Accounts {
	return r.engine.Accounts()
}
