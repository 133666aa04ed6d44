// Package pool implements the reserve accounting of a multi-asset
// liquidity pool: deposit and redeem with LP share issuance, swap dispatch
// to the curve math, fee and program toll application, and the cached
// stable-curve invariant refresh.
package pool

import (
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-amm/curve"
	"github.com/egaotan/solana-amm/fixed"
	"github.com/egaotan/solana-amm/program"
)

const (
	// MaxReserves is the fixed capacity of the reserve array; unused
	// entries stay zeroed.
	MaxReserves = 4
	// MinReserves is the smallest usable pool dimension.
	MinReserves = 2
	// MaxSwapFee is 1% in parts per million.
	MaxSwapFee = program.Permillion(10_000)
	// tollShareDenominator: the protocol takes 1/3 of every swap fee.
	tollShareDenominator = 3
)

type Reserve struct {
	Mint   solana.PublicKey
	Vault  solana.PublicKey
	Tokens program.TokenAmount
}

func (r *Reserve) initialized() bool {
	return !r.Mint.IsZero()
}

type Pool struct {
	Admin             solana.PublicKey
	Signer            solana.PublicKey
	LpMint            solana.PublicKey
	ProgramTollWallet solana.PublicKey
	Dimension         uint64
	Reserves          [MaxReserves]Reserve
	Curve             curve.Curve
	SwapFee           program.Permillion
}

// New validates and assembles a pool. A failing invariant refresh is
// tolerated here: the curve invariant is recomputed on the first deposit.
func New(admin, signer, lpMint, tollWallet solana.PublicKey, reserves []Reserve, c curve.Curve, swapFee program.Permillion) (*Pool, error) {
	if len(reserves) < MinReserves || len(reserves) > MaxReserves {
		return nil, program.ErrInvalidArg
	}
	if swapFee > MaxSwapFee {
		return nil, program.ErrInvalidArg
	}
	if c.Kind == curve.Stable && c.Amplifier == 0 {
		return nil, program.ErrInvalidArg
	}
	p := &Pool{
		Admin:             admin,
		Signer:            signer,
		LpMint:            lpMint,
		ProgramTollWallet: tollWallet,
		Dimension:         uint64(len(reserves)),
		Curve:             c,
		SwapFee:           swapFee,
	}
	for i, r := range reserves {
		if r.Mint.IsZero() || r.Vault.IsZero() {
			return nil, program.ErrInvalidAccountInput
		}
		for j := 0; j < i; j++ {
			if reserves[j].Mint == r.Mint {
				return nil, program.ErrInvalidTokenMints
			}
		}
		p.Reserves[i] = r
	}
	_ = p.UpdateCurveInvariant()
	return p, nil
}

func checkedAdd(a, b program.TokenAmount) (program.TokenAmount, error) {
	if uint64(a) > math.MaxUint64-uint64(b) {
		return 0, program.ErrMathOverflow
	}
	return a + b, nil
}

func (p *Pool) reserveIndex(mint solana.PublicKey) int {
	for i := range p.Reserves[:p.Dimension] {
		if p.Reserves[i].Mint == mint {
			return i
		}
	}
	return -1
}

// Reserve returns the reserve holding the given mint, or nil.
func (p *Pool) Reserve(mint solana.PublicKey) *Reserve {
	if i := p.reserveIndex(mint); i >= 0 {
		return &p.Reserves[i]
	}
	return nil
}

// reserveTokens lists the balances of the initialized reserves in order.
func (p *Pool) reserveTokens() []program.TokenAmount {
	out := make([]program.TokenAmount, p.Dimension)
	for i := range out {
		out[i] = p.Reserves[i].Tokens
	}
	return out
}

// matchesReserveMints checks that the request names exactly the pool's
// reserve mints, nothing more and nothing less.
func (p *Pool) matchesReserveMints(amounts map[solana.PublicKey]program.TokenAmount) bool {
	if uint64(len(amounts)) != p.Dimension {
		return false
	}
	for mint := range amounts {
		if p.reserveIndex(mint) < 0 {
			return false
		}
	}
	return true
}

// UpdateCurveInvariant recomputes the stable-curve D from the current
// reserves. It is called after every deposit and redeem, never after a
// swap: a swap preserves D by construction. Constant-product pools have
// nothing to refresh.
func (p *Pool) UpdateCurveInvariant() error {
	if p.Curve.Kind != curve.Stable {
		return nil
	}
	tokens := p.reserveTokens()
	empty := true
	for _, t := range tokens {
		if t != 0 {
			empty = false
			break
		}
	}
	if empty {
		p.Curve.Invariant = fixed.ZeroD192()
		return nil
	}
	d, err := curve.StableInvariant(p.Curve.Amplifier, tokens)
	if err != nil {
		return err
	}
	p.Curve.Invariant = d
	return nil
}

type DepositResult struct {
	LpMinted program.TokenAmount
	Deposits map[solana.PublicKey]program.TokenAmount
}

// Deposit computes the actual per-mint deposits and the LP amount to mint
// for a basket of maximum amounts, then applies them to the reserves. The
// first deposit mints min(maxAmounts) LP and takes every amount in full;
// later deposits are scaled to the limiting reserve, rounding deposits up
// and minted LP down.
func (p *Pool) Deposit(maxAmounts map[solana.PublicKey]program.TokenAmount, lpSupply program.TokenAmount) (*DepositResult, error) {
	if !p.matchesReserveMints(maxAmounts) {
		return nil, program.ErrInvalidArg
	}
	result := &DepositResult{Deposits: make(map[solana.PublicKey]program.TokenAmount, p.Dimension)}

	if lpSupply == 0 {
		lp := program.TokenAmount(0)
		first := true
		for _, amount := range maxAmounts {
			if first || amount < lp {
				lp = amount
				first = false
			}
		}
		if lp == 0 {
			return nil, program.ErrInvalidArg
		}
		staged := p.Reserves
		for i := range staged[:p.Dimension] {
			amount := maxAmounts[staged[i].Mint]
			result.Deposits[staged[i].Mint] = amount
			tokens, err := checkedAdd(staged[i].Tokens, amount)
			if err != nil {
				return nil, err
			}
			staged[i].Tokens = tokens
		}
		result.LpMinted = lp
		p.Reserves = staged
		if err := p.UpdateCurveInvariant(); err != nil {
			return nil, err
		}
		return result, nil
	}

	// The limiting reserve minimizes maxAmounts[m] / reserves[m].
	// Compared cross-multiplied so nothing is lost to division.
	limiting := -1
	for i := range p.Reserves[:p.Dimension] {
		if p.Reserves[i].Tokens == 0 {
			return nil, program.ErrInvariantViolation
		}
		if limiting < 0 {
			limiting = i
			continue
		}
		l, err := fixed.D192FromUint64(uint64(maxAmounts[p.Reserves[i].Mint])).TryMul(fixed.D192FromUint64(uint64(p.Reserves[limiting].Tokens)))
		if err != nil {
			return nil, err
		}
		r, err := fixed.D192FromUint64(uint64(maxAmounts[p.Reserves[limiting].Mint])).TryMul(fixed.D192FromUint64(uint64(p.Reserves[i].Tokens)))
		if err != nil {
			return nil, err
		}
		if l.Cmp(r) < 0 {
			limiting = i
		}
	}

	limitAmount := fixed.D192FromUint64(uint64(maxAmounts[p.Reserves[limiting].Mint]))
	limitReserve := fixed.D192FromUint64(uint64(p.Reserves[limiting].Tokens))

	staged := p.Reserves
	for i := range staged[:p.Dimension] {
		scaled, err := fixed.D192FromUint64(uint64(staged[i].Tokens)).TryMul(limitAmount)
		if err != nil {
			return nil, err
		}
		if scaled, err = scaled.TryDiv(limitReserve); err != nil {
			return nil, err
		}
		amount, err := scaled.TryCeil()
		if err != nil {
			return nil, err
		}
		result.Deposits[staged[i].Mint] = amount
		tokens, err := checkedAdd(staged[i].Tokens, amount)
		if err != nil {
			return nil, err
		}
		staged[i].Tokens = tokens
	}

	lpScaled, err := fixed.D192FromUint64(uint64(lpSupply)).TryMul(limitAmount)
	if err != nil {
		return nil, err
	}
	if lpScaled, err = lpScaled.TryDiv(limitReserve); err != nil {
		return nil, err
	}
	lp, err := lpScaled.TryFloor()
	if err != nil {
		return nil, err
	}
	if lp == 0 {
		return nil, program.ErrInvalidArg
	}

	result.LpMinted = lp
	p.Reserves = staged
	if err := p.UpdateCurveInvariant(); err != nil {
		return nil, err
	}
	return result, nil
}

// Redeem burns lpBurn LP shares for a proportional, rounded-down cut of
// every reserve, guarded by per-mint minimums.
func (p *Pool) Redeem(lpBurn program.TokenAmount, minAmounts map[solana.PublicKey]program.TokenAmount, lpSupply program.TokenAmount) (map[solana.PublicKey]program.TokenAmount, error) {
	if !p.matchesReserveMints(minAmounts) {
		return nil, program.ErrInvalidArg
	}
	if lpBurn == 0 || lpBurn > lpSupply {
		return nil, program.ErrInvalidLpTokenAmount
	}

	burn := fixed.D192FromUint64(uint64(lpBurn))
	supply := fixed.D192FromUint64(uint64(lpSupply))

	out := make(map[solana.PublicKey]program.TokenAmount, p.Dimension)
	staged := p.Reserves
	for i := range staged[:p.Dimension] {
		scaled, err := fixed.D192FromUint64(uint64(staged[i].Tokens)).TryMul(burn)
		if err != nil {
			return nil, err
		}
		if scaled, err = scaled.TryDiv(supply); err != nil {
			return nil, err
		}
		amount, err := scaled.TryFloor()
		if err != nil {
			return nil, err
		}
		if amount < minAmounts[staged[i].Mint] {
			return nil, program.ErrSlippageExceeded
		}
		out[staged[i].Mint] = amount
		staged[i].Tokens -= amount
	}

	p.Reserves = staged
	if err := p.UpdateCurveInvariant(); err != nil {
		return nil, err
	}
	return out, nil
}

type SwapResult struct {
	Bought program.TokenAmount
	Fee    program.TokenAmount
	TollLp program.TokenAmount
}

// Swap sells sellAmount of one reserve mint for the other. The fee is
// taken off the input up front, the curve prices the net amount and the
// protocol toll is computed against the post-curve sell reserve.
func (p *Pool) Swap(sellMint solana.PublicKey, sellAmount program.TokenAmount, buyMint solana.PublicKey, discount program.Permillion, lpSupply program.TokenAmount) (*SwapResult, error) {
	sellIdx := p.reserveIndex(sellMint)
	buyIdx := p.reserveIndex(buyMint)
	if sellIdx < 0 || buyIdx < 0 || sellIdx == buyIdx {
		return nil, program.ErrInvalidTokenMints
	}
	if sellAmount == 0 {
		return nil, program.ErrInvalidArg
	}
	if uint64(discount) > program.PermillionScale {
		return nil, program.ErrInvalidArg
	}

	fee, err := p.swapFeeFor(sellAmount, discount)
	if err != nil {
		return nil, err
	}
	if fee >= sellAmount {
		return nil, program.ErrInvalidArg
	}
	net := sellAmount - fee

	staged := p.Reserves
	var bought program.TokenAmount
	switch p.Curve.Kind {
	case curve.ConstantProduct:
		bought, err = curve.ConstantProductOutput(staged[sellIdx].Tokens, staged[buyIdx].Tokens, net)
	case curve.Stable:
		others := make([]program.TokenAmount, 0, p.Dimension-1)
		for i := range staged[:p.Dimension] {
			if i == buyIdx {
				continue
			}
			balance := staged[i].Tokens
			if i == sellIdx {
				balance += net
			}
			others = append(others, balance)
		}
		bought, err = curve.StableSwapOutput(p.Curve.Amplifier, p.Curve.Invariant, others, staged[buyIdx].Tokens)
	default:
		return nil, program.ErrInvariantViolation
	}
	if err != nil {
		return nil, err
	}
	if bought == 0 {
		return nil, program.ErrInvalidArg
	}

	sellTokens, err := checkedAdd(staged[sellIdx].Tokens, net)
	if err != nil {
		return nil, err
	}
	staged[sellIdx].Tokens = sellTokens
	staged[buyIdx].Tokens -= bought

	// The fee itself never enters the reserve accounting: the host moves
	// the full sell amount into the vault, so the fee accrues to the LP
	// holders as vault balance above the booked reserve, and the
	// protocol's third is realized through the toll LP mint.
	tollLp, err := p.tollLpAmount(fee, staged[sellIdx].Tokens, lpSupply)
	if err != nil {
		return nil, err
	}

	p.Reserves = staged
	return &SwapResult{Bought: bought, Fee: fee, TollLp: tollLp}, nil
}

// swapFeeFor is ceil(amount * feeRate * (1 - discount)).
func (p *Pool) swapFeeFor(amount program.TokenAmount, discount program.Permillion) (program.TokenAmount, error) {
	rate, err := fixed.D192FromUint64(uint64(p.SwapFee)).TryDiv(fixed.D192FromUint64(program.PermillionScale))
	if err != nil {
		return 0, err
	}
	keep, err := fixed.D192FromUint64(program.PermillionScale - uint64(discount)).TryDiv(fixed.D192FromUint64(program.PermillionScale))
	if err != nil {
		return 0, err
	}
	f, err := fixed.D192FromUint64(uint64(amount)).TryMul(rate)
	if err != nil {
		return 0, err
	}
	if f, err = f.TryMul(keep); err != nil {
		return 0, err
	}
	return f.TryCeil()
}

// tollLpAmount values a hypothetical one-sided deposit of fee/3/dimension
// sell tokens across all dimension reserves:
// floor(lpSupply * fee / (3 * dimension^2 * sellReserve)).
func (p *Pool) tollLpAmount(fee, sellReserve, lpSupply program.TokenAmount) (program.TokenAmount, error) {
	if fee == 0 || lpSupply == 0 || sellReserve == 0 {
		return 0, nil
	}
	t, err := fixed.D192FromUint64(uint64(lpSupply)).TryMul(fixed.D192FromUint64(uint64(fee)))
	if err != nil {
		return 0, err
	}
	if t, err = t.TryDiv(fixed.D192FromUint64(tollShareDenominator)); err != nil {
		return 0, err
	}
	if t, err = t.TryDiv(fixed.D192FromUint64(p.Dimension * p.Dimension)); err != nil {
		return 0, err
	}
	if t, err = t.TryDiv(fixed.D192FromUint64(uint64(sellReserve))); err != nil {
		return 0, err
	}
	return t.TryFloor()
}

// SetSwapFee replaces the fee rate; only the pool admin may call it.
func (p *Pool) SetSwapFee(admin solana.PublicKey, fee program.Permillion) error {
	if admin != p.Admin {
		return program.ErrInvalidAccountInput
	}
	if fee > MaxSwapFee {
		return program.ErrInvalidArg
	}
	p.SwapFee = fee
	return nil
}
