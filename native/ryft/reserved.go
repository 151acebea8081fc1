package ryft

import "ryft/crypto"

// The operations below are stable entry points whose behaviour is not defined
// yet. They validate nothing, touch no state and always succeed so callers
// built against them keep working when the logic lands.

// DistributeRewards is reserved for distributing pool fees to stakers.
func (e *Engine) DistributeRewards() error {
	return nil
}

// CompoundRewards is reserved for reinvesting the owner's staking rewards.
func (e *Engine) CompoundRewards(owner crypto.Address) error {
	return nil
}

// MultiHopFlashLoan is reserved for flash loans routed across several pools.
func (e *Engine) MultiHopFlashLoan(borrower crypto.Address, amounts []uint64) error {
	return nil
}
