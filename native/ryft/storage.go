package ryft

import (
	"fmt"

	"ryft/crypto"
)

// storage abstracts the subset of state manager functionality required by the
// engine. Implementations are expected to be a single all-or-nothing unit of
// work: when an operation returns an error the host discards every write the
// operation staged.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	globalStateKey   = []byte("ryft/global")
	stakePrefix      = []byte("ryft/stake/")
	flashLoanPrefix  = []byte("ryft/flashloan/")
	reputationPrefix = []byte("ryft/reputation/")
)

func addressKey(prefix []byte, addr crypto.Address) []byte {
	key := make([]byte, 0, len(prefix)+crypto.AddressLength)
	key = append(key, prefix...)
	return append(key, addr[:]...)
}

func stakeKey(owner crypto.Address) []byte { return addressKey(stakePrefix, owner) }

func flashLoanKey(borrower crypto.Address) []byte { return addressKey(flashLoanPrefix, borrower) }

func reputationKey(borrower crypto.Address) []byte { return addressKey(reputationPrefix, borrower) }

// RLP has no signed integers, so timestamps are persisted as unsigned values.
type storedStakeAccount struct {
	Owner              crypto.Address
	Amount             uint64
	RewardDebt         uint64
	LastStakeTimestamp uint64
}

type storedFlashLoan struct {
	Borrower   crypto.Address
	Amount     uint64
	Fee        uint64
	StartTime  uint64
	Collateral uint64
}

func toUnsigned(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) loadGlobal() (*GlobalState, error) {
	var global GlobalState
	ok, err := e.state.KVGet(globalStateKey, &global)
	if err != nil {
		return nil, fmt.Errorf("ryft: load global state: %w", err)
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return &global, nil
}

// storeGlobal writes g only if the stored version still matches the version g
// was loaded at, then advances the version.
func (e *Engine) storeGlobal(g *GlobalState) error {
	var current GlobalState
	ok, err := e.state.KVGet(globalStateKey, &current)
	if err != nil {
		return fmt.Errorf("ryft: load global state: %w", err)
	}
	if ok && current.Version != g.Version {
		return ErrStaleState
	}
	next, err := checkedAdd(g.Version, 1)
	if err != nil {
		return err
	}
	g.Version = next
	if err := e.state.KVPut(globalStateKey, g); err != nil {
		g.Version--
		return fmt.Errorf("ryft: store global state: %w", err)
	}
	return nil
}

func (e *Engine) loadStake(owner crypto.Address) (*StakeAccount, bool, error) {
	var stored storedStakeAccount
	ok, err := e.state.KVGet(stakeKey(owner), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("ryft: load stake account: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &StakeAccount{
		Owner:              stored.Owner,
		Amount:             stored.Amount,
		RewardDebt:         stored.RewardDebt,
		LastStakeTimestamp: int64(stored.LastStakeTimestamp),
	}, true, nil
}

func (e *Engine) storeStake(acc *StakeAccount) error {
	stored := &storedStakeAccount{
		Owner:              acc.Owner,
		Amount:             acc.Amount,
		RewardDebt:         acc.RewardDebt,
		LastStakeTimestamp: toUnsigned(acc.LastStakeTimestamp),
	}
	if err := e.state.KVPut(stakeKey(acc.Owner), stored); err != nil {
		return fmt.Errorf("ryft: store stake account: %w", err)
	}
	return nil
}

func (e *Engine) loadFlashLoan(borrower crypto.Address) (*FlashLoan, bool, error) {
	var stored storedFlashLoan
	ok, err := e.state.KVGet(flashLoanKey(borrower), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("ryft: load flash loan: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &FlashLoan{
		Borrower:   stored.Borrower,
		Amount:     stored.Amount,
		Fee:        stored.Fee,
		StartTime:  int64(stored.StartTime),
		Collateral: stored.Collateral,
	}, true, nil
}

func (e *Engine) storeFlashLoan(loan *FlashLoan) error {
	stored := &storedFlashLoan{
		Borrower:   loan.Borrower,
		Amount:     loan.Amount,
		Fee:        loan.Fee,
		StartTime:  toUnsigned(loan.StartTime),
		Collateral: loan.Collateral,
	}
	if err := e.state.KVPut(flashLoanKey(loan.Borrower), stored); err != nil {
		return fmt.Errorf("ryft: store flash loan: %w", err)
	}
	return nil
}

func (e *Engine) closeFlashLoan(borrower crypto.Address) error {
	if err := e.state.KVDelete(flashLoanKey(borrower)); err != nil {
		return fmt.Errorf("ryft: close flash loan: %w", err)
	}
	return nil
}

func (e *Engine) loadReputation(borrower crypto.Address) (*Reputation, bool, error) {
	var rep Reputation
	ok, err := e.state.KVGet(reputationKey(borrower), &rep)
	if err != nil {
		return nil, false, fmt.Errorf("ryft: load reputation: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &rep, true, nil
}

func (e *Engine) storeReputation(rep *Reputation) error {
	if err := e.state.KVPut(reputationKey(rep.Borrower), rep); err != nil {
		return fmt.Errorf("ryft: store reputation: %w", err)
	}
	return nil
}
