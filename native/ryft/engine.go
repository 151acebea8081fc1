package ryft

import (
	"time"

	"ryft/core/events"
	"ryft/core/types"
	"ryft/crypto"
	nativecommon "ryft/native/common"
)

// ModuleName is the pause switch key of the ledger.
const ModuleName = "ryft"

// TokenGateway performs atomic balance transfers between token accounts. A
// failed transfer moves nothing.
type TokenGateway interface {
	Transfer(from, to, authority crypto.Address, amount uint64) error
	BalanceOf(account crypto.Address) (uint64, error)
}

// Engine orchestrates the state transitions of the shared-liquidity ledger:
// pool deposits and withdrawals, staking, and the flash credit state machine.
type Engine struct {
	state    storage
	tokens   TokenGateway
	accounts Accounts
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	nowFn    func() int64
}

// NewEngine constructs an engine settling against the supplied module
// accounts.
func NewEngine(accounts Accounts) *Engine {
	return &Engine{
		accounts: accounts,
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state storage) { e.state = state }

// SetTokens wires the token transfer gateway.
func (e *Engine) SetTokens(tokens TokenGateway) { e.tokens = tokens }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the ledger clock. Timestamps are unix seconds.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Bind returns a copy of the engine operating on one unit of work. The host
// creates a bound engine per execution unit so concurrent units never share
// state handles.
func (e *Engine) Bind(state storage, tokens TokenGateway, emitter events.Emitter) *Engine {
	bound := *e
	bound.state = state
	bound.tokens = tokens
	if emitter != nil {
		bound.emitter = emitter
	}
	return &bound
}

// Accounts returns the module accounts the engine settles against.
func (e *Engine) Accounts() Accounts {
	return e.accounts
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(ledgerEvent{evt: event})
}

// ready validates wiring and the pause switch before a mutating operation.
func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nativecommon.Guard(e.pauses, ModuleName)
}

// GlobalState returns a copy of the pool ledger.
func (e *Engine) GlobalState() (*GlobalState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadGlobal()
}

// StakeOf returns the stake account of owner. Parties that never staked get a
// zero account.
func (e *Engine) StakeOf(owner crypto.Address) (*StakeAccount, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acc, ok, err := e.loadStake(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &StakeAccount{Owner: owner}, nil
	}
	return acc, nil
}

// ReputationOf returns the repayment counter of borrower.
func (e *Engine) ReputationOf(borrower crypto.Address) (*Reputation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rep, ok, err := e.loadReputation(borrower)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Reputation{Borrower: borrower}, nil
	}
	return rep, nil
}

// ActiveFlashLoan returns the live flash loan record of borrower, if any.
func (e *Engine) ActiveFlashLoan(borrower crypto.Address) (*FlashLoan, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.loadFlashLoan(borrower)
}
