package ryft

import (
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
)

var basisPoints = uint256.NewInt(10_000)

func checkedAdd(a, b uint64) (uint64, error) {
	sum, overflow := math.SafeAdd(a, b)
	if overflow {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, underflow := math.SafeSub(a, b)
	if underflow {
		return 0, ErrArithmeticUnderflow
	}
	return diff, nil
}

// ComputeFee returns floor(amount * rateBps / 10000). The product is formed in
// 256 bits so only a fee that itself exceeds 64 bits is rejected.
func ComputeFee(amount, rateBps uint64) (uint64, error) {
	fee, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(amount), uint256.NewInt(rateBps), basisPoints)
	if overflow || !fee.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return fee.Uint64(), nil
}
