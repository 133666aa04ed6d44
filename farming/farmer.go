package farming

import (
	"math"

	"github.com/badgerodon/collections/stack"
	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-amm/fixed"
	"github.com/egaotan/solana-amm/program"
)

// FarmerHarvest is one accumulated, unclaimed reward balance.
type FarmerHarvest struct {
	Mint   solana.PublicKey
	Tokens program.TokenAmount
}

// Farmer tracks one authority's position in a farm. Staked tokens earn
// rewards; vested tokens were deposited after the last snapshot and start
// earning at the next snapshot boundary, when they promote to staked.
type Farmer struct {
	Authority                solana.PublicKey
	Farm                     solana.PublicKey
	Staked                   program.TokenAmount
	Vested                   program.TokenAmount
	VestedAt                 program.Slot
	CalculateNextHarvestFrom program.Slot
	Harvests                 [MaxHarvestMints]FarmerHarvest
}

func NewFarmer(authority, farm solana.PublicKey, now program.Slot) (*Farmer, error) {
	if authority.IsZero() || farm.IsZero() {
		return nil, program.ErrInvalidAccountInput
	}
	return &Farmer{
		Authority:                authority,
		Farm:                     farm,
		CalculateNextHarvestFrom: now,
	}, nil
}

// TotalDeposited is the farmer's whole position, earning or not.
func (f *Farmer) TotalDeposited() program.TokenAmount {
	return f.Staked + f.Vested
}

func checkedAdd(a, b program.TokenAmount) (program.TokenAmount, error) {
	if uint64(a) > math.MaxUint64-uint64(b) {
		return 0, program.ErrMathOverflow
	}
	return a + b, nil
}

// AddToVested deposits more stake. The new tokens vest until the next
// snapshot boundary; adding again before that boundary restarts the wait
// for the whole vested amount.
func (f *Farmer) AddToVested(farm *Farm, now program.Slot, amount program.TokenAmount) error {
	if amount == 0 {
		return program.ErrInvalidArg
	}
	if err := f.CheckVestedPeriodAndUpdateHarvest(farm, now); err != nil {
		return err
	}
	vested, err := checkedAdd(f.Vested, amount)
	if err != nil {
		return err
	}
	f.Vested = vested
	f.VestedAt = now
	return nil
}

// Unstake withdraws up to max tokens, consuming vested before staked, and
// returns the amount actually withdrawn. The position is fully settled
// first so the reduced stake only applies to future slots.
func (f *Farmer) Unstake(farm *Farm, now program.Slot, max program.TokenAmount) (program.TokenAmount, error) {
	if max == 0 {
		return 0, program.ErrInvalidArg
	}
	if err := f.UpdateEligibleHarvest(farm, now); err != nil {
		return 0, err
	}
	actual := max
	if total := f.TotalDeposited(); actual > total {
		actual = total
	}
	remaining := actual
	if remaining <= f.Vested {
		f.Vested -= remaining
	} else {
		remaining -= f.Vested
		f.Vested = 0
		f.Staked -= remaining
	}
	if f.Vested == 0 {
		f.VestedAt = 0
	}
	return actual, nil
}

// CheckVestedPeriodAndUpdateHarvest promotes vested tokens once a
// snapshot boundary has passed. Harvest up to the slot before the
// boundary is accrued first with the old staked amount only, then the
// vested tokens join the stake.
func (f *Farmer) CheckVestedPeriodAndUpdateHarvest(farm *Farm, now program.Slot) error {
	if f.Vested == 0 {
		return nil
	}
	snap := farm.Snapshots.FirstSnapshotAfter(f.VestedAt)
	if snap == nil {
		return nil
	}
	staked, err := checkedAdd(f.Staked, f.Vested)
	if err != nil {
		return err
	}
	partial, err := f.eligibleHarvestUntil(farm, snap.StartedAt-1)
	if err != nil {
		return err
	}
	if err := f.applyHarvest(farm, partial); err != nil {
		return err
	}
	if snap.StartedAt > f.CalculateNextHarvestFrom {
		f.CalculateNextHarvestFrom = snap.StartedAt
	}
	f.Staked = staked
	f.Vested = 0
	f.VestedAt = 0
	return nil
}

// UpdateEligibleHarvest settles the farmer completely: any pending vested
// promotion, then reward accrual up to now. It is idempotent at a fixed
// slot.
func (f *Farmer) UpdateEligibleHarvest(farm *Farm, now program.Slot) error {
	if err := f.CheckVestedPeriodAndUpdateHarvest(farm, now); err != nil {
		return err
	}
	if f.CalculateNextHarvestFrom >= now {
		return nil
	}
	total, err := f.eligibleHarvestUntil(farm, now)
	if err != nil {
		return err
	}
	if err := f.applyHarvest(farm, total); err != nil {
		return err
	}
	f.CalculateNextHarvestFrom = now + 1
	return nil
}

// ClaimHarvest settles, then withdraws the whole accumulated reward for
// one mint.
func (f *Farmer) ClaimHarvest(farm *Farm, now program.Slot, mint solana.PublicKey) (program.TokenAmount, error) {
	if farm.HarvestSchedule(mint) == nil {
		return 0, program.ErrUnknownHarvestMint
	}
	if err := f.UpdateEligibleHarvest(farm, now); err != nil {
		return 0, err
	}
	for i := range f.Harvests {
		if f.Harvests[i].Mint == mint {
			amount := f.Harvests[i].Tokens
			f.Harvests[i].Tokens = 0
			return amount, nil
		}
	}
	return 0, nil
}

// Compound claims the stake-mint harvest and re-vests it in one step. The
// stake mint must itself be one of the farm's harvest mints.
func (f *Farmer) Compound(farm *Farm, now program.Slot) (program.TokenAmount, error) {
	if farm.HarvestSchedule(farm.StakeMint) == nil {
		return 0, program.ErrCannotCompoundIfStakeMintIsNotHarvest
	}
	amount, err := f.ClaimHarvest(farm, now, farm.StakeMint)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, nil
	}
	vested, err := checkedAdd(f.Vested, amount)
	if err != nil {
		return 0, err
	}
	f.Vested = vested
	f.VestedAt = now
	return amount, nil
}

// Close succeeds only for a fully drained farmer: nothing deposited,
// nothing left to claim.
func (f *Farmer) Close() error {
	if f.TotalDeposited() != 0 {
		return program.ErrInvalidArg
	}
	for i := range f.Harvests {
		if f.Harvests[i].Tokens != 0 {
			return program.ErrInvalidArg
		}
	}
	return nil
}

// syncedHarvests mirrors the farm's current harvest mint set into the
// farmer's entries, keeping balances of surviving mints, dropping removed
// ones and zero-initializing new ones.
func (f *Farmer) syncedHarvests(farm *Farm) ([MaxHarvestMints]FarmerHarvest, error) {
	var synced [MaxHarvestMints]FarmerHarvest
	mints := farm.HarvestMints()
	if len(mints) > MaxHarvestMints {
		return synced, program.ErrInvariantViolation
	}
	for i, mint := range mints {
		synced[i].Mint = mint
		for j := range f.Harvests {
			if f.Harvests[j].Mint == mint {
				synced[i].Tokens = f.Harvests[j].Tokens
				break
			}
		}
	}
	return synced, nil
}

// applyHarvest stages the accrued amounts on top of the synced mint set
// and commits only when every addition fits.
func (f *Farmer) applyHarvest(farm *Farm, amounts map[solana.PublicKey]program.TokenAmount) error {
	staged, err := f.syncedHarvests(farm)
	if err != nil {
		return err
	}
	for i := range staged {
		if staged[i].Mint.IsZero() {
			continue
		}
		amount, ok := amounts[staged[i].Mint]
		if !ok {
			continue
		}
		total, err := checkedAdd(staged[i].Tokens, amount)
		if err != nil {
			return err
		}
		staged[i].Tokens = total
	}
	f.Harvests = staged
	return nil
}

// eligibleHarvestUntil sums share(snapshot) * tps(period) * overlap over
// every snapshot-window/harvest-period intersection inside
// [CalculateNextHarvestFrom, until]. Snapshots are walked newest to
// oldest; each mint's tps history is kept on a stack and popped as the
// descending windows consume it.
func (f *Farmer) eligibleHarvestUntil(farm *Farm, until program.Slot) (map[solana.PublicKey]program.TokenAmount, error) {
	out := make(map[solana.PublicKey]program.TokenAmount)
	if f.Staked == 0 {
		return out, nil
	}
	from := f.CalculateNextHarvestFrom
	if from > until {
		return out, nil
	}

	mints := farm.HarvestMints()
	if len(mints) > MaxHarvestMints {
		return nil, program.ErrInvariantViolation
	}
	histories := make(map[solana.PublicKey]*stack.Stack, len(mints))
	for _, mint := range mints {
		st := stack.New()
		for _, r := range farm.HarvestSchedule(mint).TpsHistory(until) {
			st.Push(r)
		}
		histories[mint] = st
	}

	staked := fixed.D192FromUint64(uint64(f.Staked))
	windowEnd := until
	var walkErr error
	farm.Snapshots.NewestToOldest(func(s *Snapshot) bool {
		if !s.Initialized() || windowEnd < from {
			return false
		}
		windowStart := s.StartedAt
		if windowStart < from {
			windowStart = from
		}
		if s.Staked > 0 && windowStart <= windowEnd {
			share, err := staked.TryDiv(fixed.D192FromUint64(uint64(s.Staked)))
			if err != nil {
				walkErr = err
				return false
			}
			for _, mint := range mints {
				accrued, err := accrueWindow(histories[mint], windowStart, windowEnd, share)
				if err != nil {
					walkErr = err
					return false
				}
				total, err := checkedAdd(out[mint], accrued)
				if err != nil {
					walkErr = err
					return false
				}
				out[mint] = total
			}
		}
		if s.StartedAt <= from {
			return false
		}
		windowEnd = s.StartedAt - 1
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

// accrueWindow walks one mint's tps history from the latest range down,
// accruing share * tps * overlap for every range intersecting the
// snapshot window [start, end]. Ranges that begin inside the window are
// fully consumed and popped; a range extending below the window is kept
// for the older windows still to come. The sum is floored to a token
// amount per window.
func accrueWindow(st *stack.Stack, start, end program.Slot, share fixed.Decimal) (program.TokenAmount, error) {
	sum := fixed.ZeroD192()
	for st.Len() > 0 {
		r := st.Peek().(TpsRange)
		if r.From > end {
			st.Pop()
			continue
		}
		from := r.From
		if from < start {
			from = start
		}
		to := r.To
		if to > end {
			to = end
		}
		if from <= to && r.Tps > 0 {
			slots := uint64(to) - uint64(from) + 1
			term, err := fixed.D192FromUint64(uint64(r.Tps)).TryMul(fixed.D192FromUint64(slots))
			if err != nil {
				return 0, err
			}
			if term, err = term.TryMul(share); err != nil {
				return 0, err
			}
			if sum, err = sum.TryAdd(term); err != nil {
				return 0, err
			}
		}
		if r.From >= start {
			st.Pop()
			continue
		}
		break
	}
	return sum.TryFloor()
}
