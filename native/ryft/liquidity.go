package ryft

import (
	"fmt"

	"ryft/crypto"
)

// DepositLiquidity moves amount from the provider into the pool and grows the
// aggregate liquidity. The ledger is only touched after the transfer succeeds.
func (e *Engine) DepositLiquidity(provider crypto.Address, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	total, err := checkedAdd(global.TotalLiquidity, amount)
	if err != nil {
		return err
	}
	if err := e.tokens.Transfer(provider, e.accounts.Pool, provider, amount); err != nil {
		return fmt.Errorf("ryft: deposit transfer: %w", err)
	}
	global.TotalLiquidity = total
	if err := e.storeGlobal(global); err != nil {
		return err
	}
	e.emit(newLiquidityEvent(EventTypeLiquidityDeposited, provider, amount, total))
	return nil
}

// WithdrawLiquidity releases amount from the pool back to the provider.
func (e *Engine) WithdrawLiquidity(provider crypto.Address, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	if amount > global.TotalLiquidity {
		return ErrInsufficientLiquidity
	}
	if err := e.tokens.Transfer(e.accounts.Pool, provider, e.accounts.Authority, amount); err != nil {
		return fmt.Errorf("ryft: withdraw transfer: %w", err)
	}
	total, err := checkedSub(global.TotalLiquidity, amount)
	if err != nil {
		return err
	}
	global.TotalLiquidity = total
	if err := e.storeGlobal(global); err != nil {
		return err
	}
	e.emit(newLiquidityEvent(EventTypeLiquidityWithdrawn, provider, amount, total))
	return nil
}
