package farming

import (
	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-amm/program"
)

// MaxHarvestMints caps the number of concurrent reward streams per farm.
const MaxHarvestMints = 10

// Farm bundles the snapshot history with up to ten harvest schedules for
// one staked mint. Unused harvest slots have a zero mint.
type Farm struct {
	Admin                  solana.PublicKey
	StakeMint              solana.PublicKey
	StakeVault             solana.PublicKey
	Harvests               [MaxHarvestMints]HarvestSchedule
	Snapshots              SnapshotBuffer
	MinSnapshotWindowSlots uint64
}

func NewFarm(admin, stakeMint, stakeVault solana.PublicKey, minSnapshotWindowSlots uint64) (*Farm, error) {
	if admin.IsZero() || stakeMint.IsZero() || stakeVault.IsZero() {
		return nil, program.ErrInvalidAccountInput
	}
	return &Farm{
		Admin:                  admin,
		StakeMint:              stakeMint,
		StakeVault:             stakeVault,
		MinSnapshotWindowSlots: minSnapshotWindowSlots,
	}, nil
}

// TakeSnapshot samples the stake vault balance into the ring.
func (f *Farm) TakeSnapshot(now program.Slot, stakeVaultBalance program.TokenAmount) error {
	return f.Snapshots.Append(now, stakeVaultBalance, f.MinSnapshotWindowSlots)
}

// HarvestSchedule returns the schedule for a mint, or nil.
func (f *Farm) HarvestSchedule(mint solana.PublicKey) *HarvestSchedule {
	for i := range f.Harvests {
		if f.Harvests[i].Initialized() && f.Harvests[i].Mint == mint {
			return &f.Harvests[i]
		}
	}
	return nil
}

// HarvestMints lists the initialized harvest mints in slot order.
func (f *Farm) HarvestMints() []solana.PublicKey {
	mints := make([]solana.PublicKey, 0, MaxHarvestMints)
	for i := range f.Harvests {
		if f.Harvests[i].Initialized() {
			mints = append(mints, f.Harvests[i].Mint)
		}
	}
	return mints
}

// AddHarvest initializes a schedule slot for a new reward mint.
func (f *Farm) AddHarvest(admin, mint, vault solana.PublicKey) error {
	if admin != f.Admin {
		return program.ErrFarmAdminMismatch
	}
	if mint.IsZero() || vault.IsZero() {
		return program.ErrInvalidAccountInput
	}
	if f.HarvestSchedule(mint) != nil {
		return program.ErrInvalidArg
	}
	for i := range f.Harvests {
		if !f.Harvests[i].Initialized() {
			f.Harvests[i] = HarvestSchedule{Mint: mint, Vault: vault}
			return nil
		}
	}
	return program.ErrInvalidArg
}

// RemoveHarvest zeroes a schedule. The host passes the harvest vault
// balance; a non-empty vault still owes tokens and cannot be removed.
func (f *Farm) RemoveHarvest(admin, mint solana.PublicKey, vaultBalance program.TokenAmount) error {
	if admin != f.Admin {
		return program.ErrFarmAdminMismatch
	}
	if vaultBalance != 0 {
		return program.ErrInvalidArg
	}
	for i := range f.Harvests {
		if f.Harvests[i].Initialized() && f.Harvests[i].Mint == mint {
			f.Harvests[i] = HarvestSchedule{}
			return nil
		}
	}
	return program.ErrUnknownHarvestMint
}

// NewHarvestPeriod dispatches to the mint's schedule, binding the
// retention rule to the oldest snapshot still in the ring.
func (f *Farm) NewHarvestPeriod(admin solana.PublicKey, now program.Slot, mint solana.PublicKey, startsAt, endsAt program.Slot, tps program.TokenAmount) (*HarvestPeriod, error) {
	if admin != f.Admin {
		return nil, program.ErrFarmAdminMismatch
	}
	schedule := f.HarvestSchedule(mint)
	if schedule == nil {
		return nil, program.ErrUnknownHarvestMint
	}
	oldest := f.Snapshots.OldestSnapshot()
	return schedule.NewPeriod(now, startsAt, endsAt, tps, oldest.StartedAt)
}
