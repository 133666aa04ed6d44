package curve

import (
	"github.com/egaotan/solana-amm/fixed"
	"github.com/egaotan/solana-amm/program"
)

// ConstantProductOutput returns the output of a pairwise swap preserving
// x*y: dy = y - ceil(x*y / (x+dx)). Reserves not involved in the pair are
// ignored, so the formula generalizes unchanged to n >= 2 reserves.
func ConstantProductOutput(x, y, dx program.TokenAmount) (program.TokenAmount, error) {
	if dx == 0 || x == 0 || y == 0 {
		return 0, program.ErrInvalidArg
	}
	prod, err := fixed.D192FromUint64(uint64(x)).TryMul(fixed.D192FromUint64(uint64(y)))
	if err != nil {
		return 0, err
	}
	newX, err := fixed.D192FromUint64(uint64(x)).TryAdd(fixed.D192FromUint64(uint64(dx)))
	if err != nil {
		return 0, err
	}
	newY, err := prod.TryDiv(newX)
	if err != nil {
		return 0, err
	}
	kept, err := newY.TryCeil()
	if err != nil {
		return 0, err
	}
	if kept > y {
		return 0, program.ErrMathOverflow
	}
	return y - kept, nil
}
