package farming

import (
	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-amm/program"
)

// HarvestPeriodsLen is the fixed schedule capacity per harvest mint.
const HarvestPeriodsLen = 10

// HarvestPeriod emits tps tokens per slot over the inclusive slot range
// [StartsAt, EndsAt]. starts_at == ends_at == 0 marks an unused entry.
type HarvestPeriod struct {
	StartsAt program.Slot
	EndsAt   program.Slot
	Tps      program.TokenAmount
}

func (p *HarvestPeriod) Initialized() bool {
	return p.StartsAt != 0 || p.EndsAt != 0
}

// HarvestSchedule is one reward stream: a mint, its vault and up to ten
// non-overlapping periods stored in descending start-slot order, index 0
// latest. Gaps between periods pay zero.
type HarvestSchedule struct {
	Mint    solana.PublicKey
	Vault   solana.PublicKey
	Periods [HarvestPeriodsLen]HarvestPeriod
}

func (h *HarvestSchedule) Initialized() bool {
	return !h.Mint.IsZero()
}

// latestStarted returns the most recent period that has already started.
func (h *HarvestSchedule) latestStarted(now program.Slot) *HarvestPeriod {
	for i := range h.Periods {
		if !h.Periods[i].Initialized() {
			continue
		}
		if h.Periods[i].StartsAt <= now {
			return &h.Periods[i]
		}
	}
	return nil
}

// NewPeriod admits a new harvest period. A pending scheduled launch
// (index 0 starting in the future) is overwritten in place and returned
// so the host can settle the token delta; otherwise the schedule rotates
// right, refusing to drop a period that may still be owed rewards by a
// retained snapshot.
func (h *HarvestSchedule) NewPeriod(now, startsAt, endsAt program.Slot, tps program.TokenAmount, oldestRetainedSnapshot program.Slot) (*HarvestPeriod, error) {
	if startsAt >= endsAt {
		return nil, program.ErrInvalidArg
	}
	if latest := h.latestStarted(now); latest != nil && latest.EndsAt >= startsAt {
		return nil, program.ErrCannotOverwriteOpenHarvestPeriod
	}

	period := HarvestPeriod{StartsAt: startsAt, EndsAt: endsAt, Tps: tps}

	if h.Periods[0].Initialized() && h.Periods[0].StartsAt > now {
		replaced := h.Periods[0]
		h.Periods[0] = period
		return &replaced, nil
	}

	oldest := &h.Periods[HarvestPeriodsLen-1]
	if oldest.Initialized() && oldest.EndsAt >= oldestRetainedSnapshot {
		return nil, program.ErrConfigurationUpdateLimitExceeded
	}
	for i := HarvestPeriodsLen - 1; i > 0; i-- {
		h.Periods[i] = h.Periods[i-1]
	}
	h.Periods[0] = period
	return nil, nil
}

// TpsRange is one entry of the reconstructed emission history: tps over
// the inclusive slot range [From, To].
type TpsRange struct {
	From program.Slot
	To   program.Slot
	Tps  program.TokenAmount
}

// TpsHistory reconstructs the emission rate over time in ascending order,
// filling every gap between periods with a zero-rate range and appending
// a trailing zero range up to the requested slot.
func (h *HarvestSchedule) TpsHistory(until program.Slot) []TpsRange {
	history := make([]TpsRange, 0, 2*HarvestPeriodsLen+1)
	for i := HarvestPeriodsLen - 1; i >= 0; i-- {
		p := &h.Periods[i]
		if !p.Initialized() {
			continue
		}
		if n := len(history); n > 0 && p.StartsAt > history[n-1].To+1 {
			history = append(history, TpsRange{From: history[n-1].To + 1, To: p.StartsAt - 1})
		}
		history = append(history, TpsRange{From: p.StartsAt, To: p.EndsAt, Tps: p.Tps})
	}
	if n := len(history); n > 0 && until > history[n-1].To {
		history = append(history, TpsRange{From: history[n-1].To + 1, To: until})
	}
	return history
}
