package ryft

import "errors"

var (
	errNilState  = errors.New("ryft engine: state not configured")
	errNilTokens = errors.New("ryft engine: token gateway not configured")
)

// Operation failures. Each one is terminal for the current operation.
var (
	ErrUnauthorized          = errors.New("ryft: unauthorized")
	ErrInsufficientLiquidity = errors.New("ryft: insufficient liquidity in the pool")
	ErrInsufficientStake     = errors.New("ryft: insufficient staked balance")
	ErrFlashLoanInProgress   = errors.New("ryft: flash loan already in progress")
	ErrNotWhitelisted        = errors.New("ryft: borrower not whitelisted for flash loans")
	ErrFlashLoanExpired      = errors.New("ryft: flash loan expired")
	ErrArithmeticOverflow    = errors.New("ryft: arithmetic overflow")
	ErrArithmeticUnderflow   = errors.New("ryft: arithmetic underflow")

	ErrNotInitialized     = errors.New("ryft: ledger not initialised")
	ErrAlreadyInitialized = errors.New("ryft: ledger already initialised")
	ErrNoActiveLoan       = errors.New("ryft: no active flash loan for borrower")
	ErrAllowListFull      = errors.New("ryft: allow-list is full")
	ErrStaleState         = errors.New("ryft: global state version mismatch")
)
