// Package fixed implements the checked fixed-point arithmetic the curve
// math runs on. Values are non-negative big integers scaled by 10^18 and
// capped at a fixed bit width: 192 bits for general pool math, 320 bits
// for the stable-swap quadratic whose intermediates outgrow 192 bits.
package fixed

import (
	"math/big"

	"github.com/egaotan/solana-amm/program"
)

// FractionalDigits is the number of base-10 fractional digits.
const FractionalDigits = 18

const (
	BitsD192 = 192
	BitsD320 = 320
)

var (
	one     = new(big.Int).Exp(big.NewInt(10), big.NewInt(FractionalDigits), nil)
	halfOne = new(big.Int).Div(one, big.NewInt(2))
)

// Decimal is a checked fixed-point number. The zero value reads as zero;
// construct through the New* helpers before doing arithmetic so the width
// cap is set.
type Decimal struct {
	val  *big.Int
	bits int
}

// scaled is the nil-safe accessor for the scaled representation: the zero
// value carries a nil val and counts as zero.
func (d Decimal) scaled() *big.Int {
	if d.val == nil {
		return new(big.Int)
	}
	return d.val
}

func newDecimal(val *big.Int, bits int) (Decimal, error) {
	if val.Sign() < 0 || val.BitLen() > bits {
		return Decimal{}, program.ErrMathOverflow
	}
	return Decimal{val: val, bits: bits}, nil
}

// ZeroD192 returns 0 at 192-bit width.
func ZeroD192() Decimal {
	return Decimal{val: new(big.Int), bits: BitsD192}
}

// ZeroD320 returns 0 at 320-bit width.
func ZeroD320() Decimal {
	return Decimal{val: new(big.Int), bits: BitsD320}
}

// D192FromUint64 converts losslessly into a 192-bit decimal.
func D192FromUint64(v uint64) Decimal {
	val := new(big.Int).Mul(new(big.Int).SetUint64(v), one)
	return Decimal{val: val, bits: BitsD192}
}

// D320FromUint64 converts losslessly into a 320-bit decimal.
func D320FromUint64(v uint64) Decimal {
	val := new(big.Int).Mul(new(big.Int).SetUint64(v), one)
	return Decimal{val: val, bits: BitsD320}
}

// D192FromScaled builds a 192-bit decimal from an already scaled integer.
func D192FromScaled(scaled *big.Int) (Decimal, error) {
	return newDecimal(new(big.Int).Set(scaled), BitsD192)
}

// D192FromScaledBytes builds a 192-bit decimal from the big-endian bytes
// of an already scaled integer.
func D192FromScaledBytes(b []byte) (Decimal, error) {
	return newDecimal(new(big.Int).SetBytes(b), BitsD192)
}

// Widen returns the same value at 320-bit width.
func (d Decimal) Widen() Decimal {
	return Decimal{val: new(big.Int).Set(d.scaled()), bits: BitsD320}
}

// Narrow returns the same value at 192-bit width, failing if it no longer
// fits.
func (d Decimal) Narrow() (Decimal, error) {
	return newDecimal(new(big.Int).Set(d.scaled()), BitsD192)
}

// Scaled returns a copy of the scaled representation.
func (d Decimal) Scaled() *big.Int {
	return new(big.Int).Set(d.scaled())
}

func (d Decimal) IsZero() bool {
	return d.scaled().Sign() == 0
}

// Cmp is the total order on the scaled representation.
func (d Decimal) Cmp(other Decimal) int {
	return d.scaled().Cmp(other.scaled())
}

func (d Decimal) TryAdd(other Decimal) (Decimal, error) {
	return newDecimal(new(big.Int).Add(d.scaled(), other.scaled()), d.bits)
}

// TrySub fails with MathOverflow when the result would be negative.
func (d Decimal) TrySub(other Decimal) (Decimal, error) {
	return newDecimal(new(big.Int).Sub(d.scaled(), other.scaled()), d.bits)
}

func (d Decimal) TryMul(other Decimal) (Decimal, error) {
	prod := new(big.Int).Mul(d.scaled(), other.scaled())
	return newDecimal(prod.Div(prod, one), d.bits)
}

// TryDiv fails with MathOverflow on division by zero.
func (d Decimal) TryDiv(other Decimal) (Decimal, error) {
	if other.scaled().Sign() == 0 {
		return Decimal{}, program.ErrMathOverflow
	}
	num := new(big.Int).Mul(d.scaled(), one)
	return newDecimal(num.Div(num, other.scaled()), d.bits)
}

// TryPow raises the value to an integer power by binary exponentiation.
func (d Decimal) TryPow(exp uint64) (Decimal, error) {
	result := Decimal{val: new(big.Int).Set(one), bits: d.bits}
	base := Decimal{val: new(big.Int).Set(d.scaled()), bits: d.bits}
	var err error
	for exp > 0 {
		if exp&1 == 1 {
			if result, err = result.TryMul(base); err != nil {
				return Decimal{}, err
			}
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		if base, err = base.TryMul(base); err != nil {
			return Decimal{}, err
		}
	}
	return result, nil
}

// TrySqrt is the integer Newton square root on the scaled representation:
// sqrt(x) scaled by 10^18 equals isqrt(x * 10^36) / 10^18.
func (d Decimal) TrySqrt() (Decimal, error) {
	v := new(big.Int).Mul(d.scaled(), one)
	return newDecimal(v.Sqrt(v), d.bits)
}

func (d Decimal) tryScaleDown(q *big.Int) (program.TokenAmount, error) {
	if !q.IsUint64() {
		return 0, program.ErrMathOverflow
	}
	return program.TokenAmount(q.Uint64()), nil
}

// TryFloor converts to a token amount, rounding down.
func (d Decimal) TryFloor() (program.TokenAmount, error) {
	return d.tryScaleDown(new(big.Int).Div(d.scaled(), one))
}

// TryCeil converts to a token amount, rounding up.
func (d Decimal) TryCeil() (program.TokenAmount, error) {
	q, r := new(big.Int).DivMod(d.scaled(), one, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return d.tryScaleDown(q)
}

// TryRound converts to a token amount, rounding half up.
func (d Decimal) TryRound() (program.TokenAmount, error) {
	v := new(big.Int).Add(d.scaled(), halfOne)
	return d.tryScaleDown(v.Div(v, one))
}
