package runtime

import (
	"context"
	"errors"

	"ryft/native/bank"
	nativecommon "ryft/native/common"
	"ryft/native/ryft"
)

var reasons = []struct {
	err    error
	reason string
}{
	{ryft.ErrUnauthorized, "unauthorized"},
	{ryft.ErrInsufficientLiquidity, "insufficient_liquidity"},
	{ryft.ErrInsufficientStake, "insufficient_stake"},
	{ryft.ErrFlashLoanInProgress, "flash_loan_in_progress"},
	{ryft.ErrNotWhitelisted, "not_whitelisted"},
	{ryft.ErrFlashLoanExpired, "flash_loan_expired"},
	{ryft.ErrArithmeticOverflow, "arithmetic_overflow"},
	{ryft.ErrArithmeticUnderflow, "arithmetic_underflow"},
	{ryft.ErrNotInitialized, "not_initialized"},
	{ryft.ErrAlreadyInitialized, "already_initialized"},
	{ryft.ErrNoActiveLoan, "no_active_loan"},
	{ryft.ErrAllowListFull, "allow_list_full"},
	{ryft.ErrStaleState, "stale_state"},
	{nativecommon.ErrModulePaused, "paused"},
	{bank.ErrAccountNotFound, "account_not_found"},
	{bank.ErrOwnerMismatch, "owner_mismatch"},
	{bank.ErrInsufficientFunds, "insufficient_funds"},
	{bank.ErrBalanceOverflow, "balance_overflow"},
	{ErrEmptyBundle, "empty_bundle"},
	{ErrBundleTooLarge, "bundle_too_large"},
	{ErrUnknownInstruction, "unknown_instruction"},
	{ErrMissingAccount, "missing_account"},
	{ErrUnsettledFlashLoan, "unsettled_flash_loan"},
	{ErrPoolShortfall, "pool_shortfall"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "deadline_exceeded"},
}

// Reason maps err to a stable label for metrics and API responses.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range reasons {
		if errors.Is(err, entry.err) {
			return entry.reason
		}
	}
	return "internal"
}
