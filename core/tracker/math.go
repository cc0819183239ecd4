package tracker

import "github.com/holiman/uint256"

// increaseByPercentCeil computes x + ceil(x*percent/100), the same
// replacement-fee arithmetic uopool.Pool.GetMinReplacementFees uses, so a
// tracker's self-escalated replacement and a pool's admission gate agree on
// what counts as a sufficient bump.
func increaseByPercentCeil(x *uint256.Int, percent uint64) *uint256.Int {
	num := new(uint256.Int).Mul(x, uint256.NewInt(percent))
	num.Add(num, uint256.NewInt(99))
	increase := new(uint256.Int).Div(num, uint256.NewInt(100))
	return new(uint256.Int).Add(x, increase)
}
