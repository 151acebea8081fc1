package runtime

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"ryft/crypto"
	"ryft/native/bank"
	"ryft/native/ryft"
)

var (
	ErrUnsettledFlashLoan = errors.New("runtime: flash loan not repaid within unit")
	ErrPoolShortfall      = errors.New("runtime: flash loan principal and fee not returned to pool")
)

// settlement captures the pool before the first flash loan of a unit. At the
// end of the unit the pool balance must have grown by at least the liquidity
// and fees the ledger recorded in between.
type settlement struct {
	pool      crypto.Address
	balance   uint64
	liquidity uint64
	fees      uint64
}

func openSettlement(engine *ryft.Engine, tokens *bank.Ledger) (*settlement, error) {
	global, err := engine.GlobalState()
	if err != nil {
		return nil, err
	}
	pool := engine.Accounts().Pool
	balance, err := tokens.BalanceOf(pool)
	if err != nil {
		return nil, fmt.Errorf("runtime: pool balance: %w", err)
	}
	return &settlement{
		pool:      pool,
		balance:   balance,
		liquidity: global.TotalLiquidity,
		fees:      global.AccumulatedFees,
	}, nil
}

// verify checks balance' - balance >= (liquidity' - liquidity) + (fees' - fees),
// rearranged so that no side goes negative.
func (s *settlement) verify(global *ryft.GlobalState, tokens *bank.Ledger) error {
	if global.FlashLoanActive() {
		return ErrUnsettledFlashLoan
	}
	balance, err := tokens.BalanceOf(s.pool)
	if err != nil {
		return fmt.Errorf("runtime: pool balance: %w", err)
	}
	have := new(uint256.Int).SetUint64(balance)
	have.Add(have, uint256.NewInt(s.liquidity))
	have.Add(have, uint256.NewInt(s.fees))

	owed := new(uint256.Int).SetUint64(s.balance)
	owed.Add(owed, uint256.NewInt(global.TotalLiquidity))
	owed.Add(owed, uint256.NewInt(global.AccumulatedFees))

	if have.Lt(owed) {
		short := new(uint256.Int).Sub(owed, have)
		return fmt.Errorf("%w: short by %s", ErrPoolShortfall, short.Dec())
	}
	return nil
}
