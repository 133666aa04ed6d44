package farming

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-amm/program"
)

// Fixed little-endian account blobs. Arrays are serialized at full
// capacity with zero padding; unused harvest slots carry a zero mint and
// unused ring entries a zero started_at.
var (
	FarmLayoutSize   = 3*32 + MaxHarvestMints*(2*32+HarvestPeriodsLen*3*8) + (8 + SnapshotsLen*2*8) + 8
	FarmerLayoutSize = 2*32 + 4*8 + MaxHarvestMints*(32+8)
)

type HarvestPeriodLayout struct {
	StartsAt uint64
	EndsAt   uint64
	Tps      uint64
}

type HarvestScheduleLayout struct {
	Mint    solana.PublicKey
	Vault   solana.PublicKey
	Periods [HarvestPeriodsLen]HarvestPeriodLayout
}

type SnapshotLayout struct {
	StartedAt uint64
	Staked    uint64
}

type FarmLayout struct {
	Admin                  solana.PublicKey
	StakeMint              solana.PublicKey
	StakeVault             solana.PublicKey
	Harvests               [MaxHarvestMints]HarvestScheduleLayout
	SnapshotTip            uint64
	SnapshotRing           [SnapshotsLen]SnapshotLayout
	MinSnapshotWindowSlots uint64
}

type FarmerHarvestLayout struct {
	Mint   solana.PublicKey
	Tokens uint64
}

type FarmerLayout struct {
	Authority                solana.PublicKey
	Farm                     solana.PublicKey
	Staked                   uint64
	Vested                   uint64
	VestedAt                 uint64
	CalculateNextHarvestFrom uint64
	Harvests                 [MaxHarvestMints]FarmerHarvestLayout
}

// Encode serializes the farm into its fixed-size blob.
func (f *Farm) Encode() ([]byte, error) {
	layout := FarmLayout{
		Admin:                  f.Admin,
		StakeMint:              f.StakeMint,
		StakeVault:             f.StakeVault,
		SnapshotTip:            f.Snapshots.Tip,
		MinSnapshotWindowSlots: f.MinSnapshotWindowSlots,
	}
	for i := range f.Harvests {
		h := &f.Harvests[i]
		layout.Harvests[i].Mint = h.Mint
		layout.Harvests[i].Vault = h.Vault
		for j, p := range h.Periods {
			layout.Harvests[i].Periods[j] = HarvestPeriodLayout{
				StartsAt: uint64(p.StartsAt),
				EndsAt:   uint64(p.EndsAt),
				Tps:      uint64(p.Tps),
			}
		}
	}
	for i, s := range f.Snapshots.Ring {
		layout.SnapshotRing[i] = SnapshotLayout{StartedAt: uint64(s.StartedAt), Staked: uint64(s.Staked)}
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &layout); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFarm loads a farm from its fixed-size blob.
func DecodeFarm(data []byte) (*Farm, error) {
	var layout FarmLayout
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &layout); err != nil {
		return nil, program.ErrInvalidAccountInput
	}
	if layout.SnapshotTip >= SnapshotsLen {
		return nil, program.ErrInvalidAccountInput
	}
	f := &Farm{
		Admin:                  layout.Admin,
		StakeMint:              layout.StakeMint,
		StakeVault:             layout.StakeVault,
		MinSnapshotWindowSlots: layout.MinSnapshotWindowSlots,
	}
	f.Snapshots.Tip = layout.SnapshotTip
	for i := range layout.Harvests {
		h := &layout.Harvests[i]
		f.Harvests[i].Mint = h.Mint
		f.Harvests[i].Vault = h.Vault
		for j, p := range h.Periods {
			f.Harvests[i].Periods[j] = HarvestPeriod{
				StartsAt: program.Slot(p.StartsAt),
				EndsAt:   program.Slot(p.EndsAt),
				Tps:      program.TokenAmount(p.Tps),
			}
		}
	}
	for i, s := range layout.SnapshotRing {
		f.Snapshots.Ring[i] = Snapshot{StartedAt: program.Slot(s.StartedAt), Staked: program.TokenAmount(s.Staked)}
	}
	return f, nil
}

// Encode serializes the farmer into its fixed-size blob.
func (f *Farmer) Encode() ([]byte, error) {
	layout := FarmerLayout{
		Authority:                f.Authority,
		Farm:                     f.Farm,
		Staked:                   uint64(f.Staked),
		Vested:                   uint64(f.Vested),
		VestedAt:                 uint64(f.VestedAt),
		CalculateNextHarvestFrom: uint64(f.CalculateNextHarvestFrom),
	}
	for i, h := range f.Harvests {
		layout.Harvests[i] = FarmerHarvestLayout{Mint: h.Mint, Tokens: uint64(h.Tokens)}
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &layout); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFarmer loads a farmer from its fixed-size blob.
func DecodeFarmer(data []byte) (*Farmer, error) {
	var layout FarmerLayout
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &layout); err != nil {
		return nil, program.ErrInvalidAccountInput
	}
	f := &Farmer{
		Authority:                layout.Authority,
		Farm:                     layout.Farm,
		Staked:                   program.TokenAmount(layout.Staked),
		Vested:                   program.TokenAmount(layout.Vested),
		VestedAt:                 program.Slot(layout.VestedAt),
		CalculateNextHarvestFrom: program.Slot(layout.CalculateNextHarvestFrom),
	}
	for i, h := range layout.Harvests {
		f.Harvests[i] = FarmerHarvest{Mint: h.Mint, Tokens: program.TokenAmount(h.Tokens)}
	}
	return f, nil
}
