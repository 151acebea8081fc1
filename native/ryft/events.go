package ryft

import (
	"strconv"

	"ryft/core/types"
	"ryft/crypto"
)

const (
	// EventTypeInitialized is emitted once when the pool ledger is created.
	EventTypeInitialized = "ryft.initialized"
	// EventTypeFeeRateUpdated is emitted when the administrator changes the fee.
	EventTypeFeeRateUpdated = "ryft.feeRateUpdated"
	// EventTypeAllowListUpdated is emitted when a borrower is added or removed.
	EventTypeAllowListUpdated = "ryft.allowListUpdated"
	// EventTypeLiquidityDeposited is emitted after a successful deposit.
	EventTypeLiquidityDeposited = "ryft.liquidityDeposited"
	// EventTypeLiquidityWithdrawn is emitted after a successful withdrawal.
	EventTypeLiquidityWithdrawn = "ryft.liquidityWithdrawn"
	// EventTypeStaked is emitted after tokens are staked.
	EventTypeStaked = "ryft.staked"
	// EventTypeUnstaked is emitted after tokens are unstaked.
	EventTypeUnstaked = "ryft.unstaked"
	// EventTypeFlashLoanIssued is emitted when a flash loan is funded.
	EventTypeFlashLoanIssued = "ryft.flashLoanIssued"
	// EventTypeFlashLoanRepaid is emitted when a flash loan is settled.
	EventTypeFlashLoanRepaid = "ryft.flashLoanRepaid"
)

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func newInitializedEvent(g *GlobalState) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"admin":      g.Admin.String(),
			"treasury":   g.Treasury.String(),
			"feeRateBps": formatUint(g.FeeRateBps),
		},
	}
}

func newFeeRateUpdatedEvent(previous, next uint64) *types.Event {
	return &types.Event{
		Type: EventTypeFeeRateUpdated,
		Attributes: map[string]string{
			"previousBps": formatUint(previous),
			"feeRateBps":  formatUint(next),
		},
	}
}

func newAllowListUpdatedEvent(borrower crypto.Address, added bool, size int) *types.Event {
	action := "removed"
	if added {
		action = "added"
	}
	return &types.Event{
		Type: EventTypeAllowListUpdated,
		Attributes: map[string]string{
			"borrower": borrower.String(),
			"action":   action,
			"size":     strconv.Itoa(size),
		},
	}
}

func newLiquidityEvent(kind string, provider crypto.Address, amount, total uint64) *types.Event {
	return &types.Event{
		Type: kind,
		Attributes: map[string]string{
			"provider":       provider.String(),
			"amount":         formatUint(amount),
			"totalLiquidity": formatUint(total),
		},
	}
}

func newStakeEvent(kind string, owner crypto.Address, amount, staked, total uint64) *types.Event {
	return &types.Event{
		Type: kind,
		Attributes: map[string]string{
			"owner":       owner.String(),
			"amount":      formatUint(amount),
			"stake":       formatUint(staked),
			"totalStaked": formatUint(total),
		},
	}
}

func newFlashLoanIssuedEvent(loan *FlashLoan) *types.Event {
	attrs := map[string]string{
		"borrower":  loan.Borrower.String(),
		"amount":    formatUint(loan.Amount),
		"fee":       formatUint(loan.Fee),
		"startTime": strconv.FormatInt(loan.StartTime, 10),
	}
	if loan.Collateral > 0 {
		attrs["collateral"] = formatUint(loan.Collateral)
	}
	return &types.Event{Type: EventTypeFlashLoanIssued, Attributes: attrs}
}

func newFlashLoanRepaidEvent(loan *FlashLoan, repaidAt int64, reputation, accumulated uint64) *types.Event {
	return &types.Event{
		Type: EventTypeFlashLoanRepaid,
		Attributes: map[string]string{
			"borrower":        loan.Borrower.String(),
			"amount":          formatUint(loan.Amount),
			"fee":             formatUint(loan.Fee),
			"repaidAt":        strconv.FormatInt(repaidAt, 10),
			"reputation":      formatUint(reputation),
			"accumulatedFees": formatUint(accumulated),
		},
	}
}
