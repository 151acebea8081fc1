package runtime

import (
	"errors"
	"fmt"

	"ryft/crypto"
	"ryft/native/bank"
	"ryft/native/ryft"
)

// Instruction operations accepted by Execute.
const (
	OpUpdateFeeRate     = "update_fee_rate"
	OpAllowListAdd      = "allow_list_add"
	OpAllowListRemove   = "allow_list_remove"
	OpDepositLiquidity  = "deposit_liquidity"
	OpWithdrawLiquidity = "withdraw_liquidity"
	OpStake             = "stake"
	OpUnstake           = "unstake"
	OpFlashLoan         = "flash_loan"
	OpRepayFlashLoan    = "repay_flash_loan"
	OpMultiHopFlashLoan = "multi_hop_flash_loan"
	OpDistributeRewards = "distribute_rewards"
	OpCompoundRewards   = "compound_rewards"
	OpTokenTransfer     = "token_transfer"
)

var (
	ErrEmptyBundle        = errors.New("runtime: instruction bundle is empty")
	ErrUnknownInstruction = errors.New("runtime: unknown instruction")
	ErrMissingAccount     = errors.New("runtime: instruction account required")
	ErrBundleTooLarge     = errors.New("runtime: instruction bundle too large")
)

// MaxBundleSize bounds the number of instructions in one unit.
const MaxBundleSize = 32

// Instruction is one step of an execution unit. The authenticated caller acts
// as provider, owner, borrower or administrator depending on Op.
type Instruction struct {
	Op         string         `json:"op"`
	Amount     uint64         `json:"amount,omitempty"`
	Collateral uint64         `json:"collateral,omitempty"`
	FeeRateBps uint64         `json:"feeRateBps,omitempty"`
	Account    crypto.Address `json:"account,omitempty"`
	Amounts    []uint64       `json:"amounts,omitempty"`
}

// InstructionResult carries the records produced by a single instruction.
type InstructionResult struct {
	Op         string           `json:"op"`
	FlashLoan  *ryft.FlashLoan  `json:"flashLoan,omitempty"`
	Reputation *ryft.Reputation `json:"reputation,omitempty"`
}

// InstructionError reports which instruction aborted a unit.
type InstructionError struct {
	Index int
	Op    string
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }

func apply(engine *ryft.Engine, tokens *bank.Ledger, caller crypto.Address, ins Instruction) (InstructionResult, error) {
	result := InstructionResult{Op: ins.Op}
	var err error
	switch ins.Op {
	case OpUpdateFeeRate:
		err = engine.UpdateFeeRate(caller, ins.FeeRateBps)
	case OpAllowListAdd:
		if ins.Account.IsZero() {
			return result, ErrMissingAccount
		}
		err = engine.AddToAllowList(caller, ins.Account)
	case OpAllowListRemove:
		if ins.Account.IsZero() {
			return result, ErrMissingAccount
		}
		err = engine.RemoveFromAllowList(caller, ins.Account)
	case OpDepositLiquidity:
		err = engine.DepositLiquidity(caller, ins.Amount)
	case OpWithdrawLiquidity:
		err = engine.WithdrawLiquidity(caller, ins.Amount)
	case OpStake:
		err = engine.Stake(caller, ins.Amount)
	case OpUnstake:
		err = engine.Unstake(caller, ins.Amount)
	case OpFlashLoan:
		result.FlashLoan, err = engine.FlashLoan(caller, ins.Amount, ins.Collateral)
	case OpRepayFlashLoan:
		result.Reputation, err = engine.RepayFlashLoan(caller)
	case OpMultiHopFlashLoan:
		err = engine.MultiHopFlashLoan(caller, ins.Amounts)
	case OpDistributeRewards:
		err = engine.DistributeRewards()
	case OpCompoundRewards:
		err = engine.CompoundRewards(caller)
	case OpTokenTransfer:
		if ins.Account.IsZero() {
			return result, ErrMissingAccount
		}
		err = tokens.Transfer(caller, ins.Account, caller, ins.Amount)
	default:
		return result, fmt.Errorf("%w: %q", ErrUnknownInstruction, ins.Op)
	}
	return result, err
}
