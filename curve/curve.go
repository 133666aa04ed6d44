// Package curve holds the pure pricing functions: constant-product swap
// output, the stable-curve invariant solver and the stable-curve swap
// solver. Everything here is stateless; the pool owns the state.
package curve

import (
	"github.com/egaotan/solana-amm/fixed"
)

type Kind uint8

const (
	ConstantProduct Kind = iota
	Stable
)

// Curve is the closed variant a pool dispatches on. For the stable kind,
// Invariant caches the most recent D; it is refreshed after every deposit
// and redeem and left untouched by swaps, which preserve it by
// construction.
type Curve struct {
	Kind      Kind
	Amplifier uint64
	Invariant fixed.Decimal
}

func NewConstantProduct() Curve {
	return Curve{Kind: ConstantProduct, Invariant: fixed.ZeroD192()}
}

func NewStable(amplifier uint64) Curve {
	return Curve{Kind: Stable, Amplifier: amplifier, Invariant: fixed.ZeroD192()}
}
