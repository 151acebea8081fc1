package ryft

import (
	"fmt"

	"ryft/crypto"
)

// Phase is the reentrancy guard of the flash credit state machine.
type Phase uint8

const (
	// PhaseIdle means no flash loan is outstanding.
	PhaseIdle Phase = iota
	// PhaseActive means exactly one flash loan record is live.
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = PhaseIdle
	case "active":
		*p = PhaseActive
	default:
		return fmt.Errorf("ryft: unknown phase %q", text)
	}
	return nil
}

// MaxAllowListSize bounds the borrower allow-list.
const MaxAllowListSize = 10

// RepayWindowSeconds is the inclusive number of seconds a borrower has to repay
// a flash loan, measured against the ledger clock.
const RepayWindowSeconds = 30

// GlobalState is the singleton pool ledger shared by every operation.
type GlobalState struct {
	Admin crypto.Address `json:"admin"`
	// FeeRateBps is the flash loan fee in basis points. It is not bounded.
	FeeRateBps      uint64 `json:"feeRateBps"`
	TotalLiquidity  uint64 `json:"totalLiquidity"`
	TotalStaked     uint64 `json:"totalStaked"`
	AccumulatedFees uint64 `json:"accumulatedFees"`
	Phase           Phase  `json:"phase"`
	// ActiveBorrower owns the live flash loan record while Phase is active.
	ActiveBorrower crypto.Address `json:"activeBorrower"`
	Treasury       crypto.Address `json:"treasury"`
	// AllowList holds the borrowers permitted to take flash loans. An empty
	// list leaves borrowing unrestricted.
	AllowList []crypto.Address `json:"allowList"`
	// Version increases by one with every committed write and guards writes
	// with a compare-and-swap.
	Version uint64 `json:"version"`
}

// Clone returns a deep copy of the global state.
func (g *GlobalState) Clone() *GlobalState {
	if g == nil {
		return nil
	}
	clone := *g
	if g.AllowList != nil {
		clone.AllowList = append([]crypto.Address(nil), g.AllowList...)
	}
	return &clone
}

// FlashLoanActive reports whether the reentrancy guard is engaged.
func (g *GlobalState) FlashLoanActive() bool {
	return g != nil && g.Phase == PhaseActive
}

// Allows reports whether borrower passes the allow-list gate.
func (g *GlobalState) Allows(borrower crypto.Address) bool {
	if g == nil || len(g.AllowList) == 0 {
		return true
	}
	return g.allowListIndex(borrower) >= 0
}

func (g *GlobalState) allowListIndex(borrower crypto.Address) int {
	for i, entry := range g.AllowList {
		if entry == borrower {
			return i
		}
	}
	return -1
}

// StakeAccount records the stake held by a single party.
type StakeAccount struct {
	Owner  crypto.Address `json:"owner"`
	Amount uint64         `json:"amount"`
	// RewardDebt is reserved for a reward accrual model and is never updated.
	RewardDebt         uint64 `json:"rewardDebt"`
	LastStakeTimestamp int64  `json:"lastStakeTimestamp"`
}

// Clone returns a copy of the stake account.
func (s *StakeAccount) Clone() *StakeAccount {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// FlashLoan is the live record of an outstanding flash loan.
type FlashLoan struct {
	Borrower   crypto.Address `json:"borrower"`
	Amount     uint64         `json:"amount"`
	Fee        uint64         `json:"fee"`
	StartTime  int64          `json:"startTime"`
	Collateral uint64         `json:"collateral"`
}

// Clone returns a copy of the flash loan record.
func (f *FlashLoan) Clone() *FlashLoan {
	if f == nil {
		return nil
	}
	clone := *f
	return &clone
}

// Expired reports whether the repayment window has elapsed at now.
func (f *FlashLoan) Expired(now int64) bool {
	return now-f.StartTime > RepayWindowSeconds
}

// Reputation counts the successful repayments of a borrower.
type Reputation struct {
	Borrower crypto.Address `json:"borrower"`
	Score    uint64         `json:"score"`
}

// Clone returns a copy of the reputation record.
func (r *Reputation) Clone() *Reputation {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Accounts names the program-owned token accounts the engine settles against.
type Accounts struct {
	// Pool holds deposited liquidity and funds flash loans.
	Pool crypto.Address
	// StakeVault holds staked tokens.
	StakeVault crypto.Address
	// CollateralEscrow receives flash loan collateral.
	CollateralEscrow crypto.Address
	// Authority owns the vaults and signs transfers out of them.
	Authority crypto.Address
}

// DefaultAccounts derives the canonical module accounts.
func DefaultAccounts() Accounts {
	return Accounts{
		Pool:             crypto.ModuleAddress("pool"),
		StakeVault:       crypto.ModuleAddress("stake-vault"),
		CollateralEscrow: crypto.ModuleAddress("collateral-escrow"),
		Authority:        crypto.ModuleAddress("authority"),
	}
}

// Vaults lists the accounts owned by Authority.
func (a Accounts) Vaults() []crypto.Address {
	return []crypto.Address{a.Pool, a.StakeVault, a.CollateralEscrow}
}
