package ryft

import (
	"fmt"

	"ryft/crypto"
)

// Stake locks amount of the owner's tokens in the stake vault.
func (e *Engine) Stake(owner crypto.Address, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	acc, found, err := e.loadStake(owner)
	if err != nil {
		return err
	}
	if !found {
		acc = &StakeAccount{Owner: owner}
	}
	staked, err := checkedAdd(acc.Amount, amount)
	if err != nil {
		return err
	}
	total, err := checkedAdd(global.TotalStaked, amount)
	if err != nil {
		return err
	}
	if err := e.tokens.Transfer(owner, e.accounts.StakeVault, owner, amount); err != nil {
		return fmt.Errorf("ryft: stake transfer: %w", err)
	}
	if !found || acc.Amount == 0 {
		acc.LastStakeTimestamp = e.now()
	}
	acc.Amount = staked
	global.TotalStaked = total
	if err := e.storeStake(acc); err != nil {
		return err
	}
	if err := e.storeGlobal(global); err != nil {
		return err
	}
	e.emit(newStakeEvent(EventTypeStaked, owner, amount, staked, total))
	return nil
}

// Unstake returns amount from the stake vault to the owner.
func (e *Engine) Unstake(owner crypto.Address, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	acc, found, err := e.loadStake(owner)
	if err != nil {
		return err
	}
	if !found {
		acc = &StakeAccount{Owner: owner}
	}
	if amount > acc.Amount {
		return ErrInsufficientStake
	}
	if err := e.tokens.Transfer(e.accounts.StakeVault, owner, e.accounts.Authority, amount); err != nil {
		return fmt.Errorf("ryft: unstake transfer: %w", err)
	}
	staked, err := checkedSub(acc.Amount, amount)
	if err != nil {
		return err
	}
	total, err := checkedSub(global.TotalStaked, amount)
	if err != nil {
		return err
	}
	acc.Amount = staked
	global.TotalStaked = total
	if err := e.storeStake(acc); err != nil {
		return err
	}
	if err := e.storeGlobal(global); err != nil {
		return err
	}
	e.emit(newStakeEvent(EventTypeUnstaked, owner, amount, staked, total))
	return nil
}
