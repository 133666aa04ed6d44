package program

import (
	"github.com/gagliardetto/solana-go"
)

// Slot is the logical clock unit. The kernel never reads a clock on its
// own; every state-changing operation takes the current slot explicitly.
type Slot uint64

// TokenAmount counts indivisible token units.
type TokenAmount uint64

// Permillion is a ratio in parts per million, 10^6 = 100%.
type Permillion uint64

const PermillionScale = uint64(1_000_000)

// Discount is a per-user swap fee reduction valid up to a slot.
type Discount struct {
	ValidUntil Slot
	Amount     Permillion
}

// Valid reports whether the discount still applies at the given slot.
func (d *Discount) Valid(now Slot) bool {
	return d != nil && now <= d.ValidUntil
}

// DiscountLookup is the host's discount registry. A nil result means no
// discount for that user.
type DiscountLookup interface {
	Discount(user solana.PublicKey) *Discount
}

// TokenExecutor is the host-side token program. The kernel computes
// amounts; the host moves tokens. If a movement fails, the host rolls the
// kernel's state change back as well.
type TokenExecutor interface {
	Transfer(from, to solana.PublicKey, amount TokenAmount) error
	Mint(mint, to solana.PublicKey, amount TokenAmount) error
	Burn(mint, from solana.PublicKey, amount TokenAmount) error
}
