package ryft

import (
	"fmt"

	"ryft/crypto"
)

// FlashLoan issues amount of pool liquidity to borrower. The guard moves to the
// active phase before any other validation so that no second issuance can
// observe an idle ledger while this one is being evaluated. Only the
// insufficient-liquidity path resets the guard itself; every other failure
// relies on the host discarding the unit of work.
func (e *Engine) FlashLoan(borrower crypto.Address, amount, collateral uint64) (*FlashLoan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	if global.FlashLoanActive() {
		return nil, ErrFlashLoanInProgress
	}
	global.Phase = PhaseActive
	global.ActiveBorrower = borrower
	if err := e.storeGlobal(global); err != nil {
		return nil, err
	}

	if !global.Allows(borrower) {
		return nil, ErrNotWhitelisted
	}

	poolBalance, err := e.tokens.BalanceOf(e.accounts.Pool)
	if err != nil {
		return nil, fmt.Errorf("ryft: pool balance: %w", err)
	}
	if poolBalance < amount {
		global.Phase = PhaseIdle
		global.ActiveBorrower = crypto.Address{}
		if err := e.storeGlobal(global); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientLiquidity
	}

	if collateral > 0 {
		if err := e.tokens.Transfer(borrower, e.accounts.CollateralEscrow, borrower, collateral); err != nil {
			return nil, fmt.Errorf("ryft: collateral transfer: %w", err)
		}
	}

	fee, err := ComputeFee(amount, global.FeeRateBps)
	if err != nil {
		return nil, err
	}
	loan := &FlashLoan{
		Borrower:   borrower,
		Amount:     amount,
		Fee:        fee,
		StartTime:  e.now(),
		Collateral: collateral,
	}
	if err := e.storeFlashLoan(loan); err != nil {
		return nil, err
	}

	if err := e.tokens.Transfer(e.accounts.Pool, borrower, e.accounts.Authority, amount); err != nil {
		return nil, fmt.Errorf("ryft: flash loan transfer: %w", err)
	}
	e.emit(newFlashLoanIssuedEvent(loan))
	return loan.Clone(), nil
}

// RepayFlashLoan settles the live flash loan of borrower: the fee is accrued to
// the pool, the guard returns to idle, the record is closed and the borrower's
// reputation grows by one.
func (e *Engine) RepayFlashLoan(borrower crypto.Address) (*Reputation, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, ok, err := e.loadFlashLoan(borrower)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoActiveLoan
	}
	now := e.now()
	if loan.Expired(now) {
		return nil, ErrFlashLoanExpired
	}

	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	fees, err := checkedAdd(global.AccumulatedFees, loan.Fee)
	if err != nil {
		return nil, err
	}
	global.AccumulatedFees = fees
	global.Phase = PhaseIdle
	global.ActiveBorrower = crypto.Address{}
	if err := e.storeGlobal(global); err != nil {
		return nil, err
	}

	if err := e.closeFlashLoan(borrower); err != nil {
		return nil, err
	}

	rep, found, err := e.loadReputation(borrower)
	if err != nil {
		return nil, err
	}
	if !found {
		rep = &Reputation{}
	}
	rep.Borrower = borrower
	score, err := checkedAdd(rep.Score, 1)
	if err != nil {
		return nil, err
	}
	rep.Score = score
	if err := e.storeReputation(rep); err != nil {
		return nil, err
	}
	e.emit(newFlashLoanRepaidEvent(loan, now, rep.Score, fees))
	return rep.Clone(), nil
}
