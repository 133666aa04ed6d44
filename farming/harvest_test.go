package farming

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egaotan/solana-amm/program"
)

func TestNewPeriodRejectsEmptyRange(t *testing.T) {
	var h HarvestSchedule
	_, err := h.NewPeriod(5, 10, 10, 1, 0)
	require.ErrorIs(t, err, program.ErrInvalidArg)
	_, err = h.NewPeriod(5, 10, 9, 1, 0)
	require.ErrorIs(t, err, program.ErrInvalidArg)
}

func TestNewPeriodScheduledLaunchOverwrite(t *testing.T) {
	var h HarvestSchedule

	replaced, err := h.NewPeriod(5, 5, 25, 20, 0)
	require.NoError(t, err)
	require.Nil(t, replaced)
	require.Equal(t, HarvestPeriod{StartsAt: 5, EndsAt: 25, Tps: 20}, h.Periods[0])

	// A later period with a gap rotates in above the running one.
	replaced, err = h.NewPeriod(10, 30, 50, 20, 0)
	require.NoError(t, err)
	require.Nil(t, replaced)
	require.Equal(t, HarvestPeriod{StartsAt: 30, EndsAt: 50, Tps: 20}, h.Periods[0])
	require.Equal(t, HarvestPeriod{StartsAt: 5, EndsAt: 25, Tps: 20}, h.Periods[1])

	// Index 0 has not launched yet, so it is overwritten in place and
	// handed back for the host to settle.
	replaced, err = h.NewPeriod(10, 40, 50, 20, 0)
	require.NoError(t, err)
	require.NotNil(t, replaced)
	require.Equal(t, HarvestPeriod{StartsAt: 30, EndsAt: 50, Tps: 20}, *replaced)
	require.Equal(t, HarvestPeriod{StartsAt: 40, EndsAt: 50, Tps: 20}, h.Periods[0])
	require.Equal(t, HarvestPeriod{StartsAt: 5, EndsAt: 25, Tps: 20}, h.Periods[1])
}

func TestNewPeriodRefusesOpenOverlap(t *testing.T) {
	var h HarvestSchedule
	_, err := h.NewPeriod(5, 5, 25, 20, 0)
	require.NoError(t, err)

	// The running period is still open at slot 20.
	_, err = h.NewPeriod(10, 20, 30, 5, 0)
	require.ErrorIs(t, err, program.ErrCannotOverwriteOpenHarvestPeriod)
}

// fullSchedule populates all ten period slots in descending start order;
// the oldest (index 9) spans [21, 25].
func fullSchedule() HarvestSchedule {
	var h HarvestSchedule
	for k := 0; k < HarvestPeriodsLen; k++ {
		start := program.Slot(21 + (HarvestPeriodsLen-1-k)*12)
		h.Periods[k] = HarvestPeriod{StartsAt: start, EndsAt: start + 4, Tps: 1}
	}
	return h
}

func TestNewPeriodHistoryRetention(t *testing.T) {
	h := fullSchedule()

	// The oldest period ends at 25 and a snapshot from slot 20 may still
	// owe rewards from it.
	_, err := h.NewPeriod(150, 160, 165, 10, 20)
	require.ErrorIs(t, err, program.ErrConfigurationUpdateLimitExceeded)

	// Once the ring has rotated past it the same call succeeds and the
	// oldest period falls off.
	dropped := h.Periods[HarvestPeriodsLen-1]
	rotatedDown := h.Periods[HarvestPeriodsLen-2]
	replaced, err := h.NewPeriod(150, 160, 165, 10, 140)
	require.NoError(t, err)
	require.Nil(t, replaced)
	require.Equal(t, HarvestPeriod{StartsAt: 160, EndsAt: 165, Tps: 10}, h.Periods[0])
	require.Equal(t, rotatedDown, h.Periods[HarvestPeriodsLen-1])
	require.NotContains(t, h.Periods, dropped)
}

func TestTpsHistoryFillsGaps(t *testing.T) {
	var h HarvestSchedule
	h.Periods[0] = HarvestPeriod{StartsAt: 30, EndsAt: 40, Tps: 7}
	h.Periods[1] = HarvestPeriod{StartsAt: 10, EndsAt: 20, Tps: 3}

	history := h.TpsHistory(55)
	require.Equal(t, []TpsRange{
		{From: 10, To: 20, Tps: 3},
		{From: 21, To: 29, Tps: 0},
		{From: 30, To: 40, Tps: 7},
		{From: 41, To: 55, Tps: 0},
	}, history)
}

func TestTpsHistoryNoTrailingRangeInsidePeriod(t *testing.T) {
	var h HarvestSchedule
	h.Periods[0] = HarvestPeriod{StartsAt: 10, EndsAt: 40, Tps: 3}

	history := h.TpsHistory(25)
	require.Equal(t, []TpsRange{{From: 10, To: 40, Tps: 3}}, history)
}

func TestTpsHistoryEmptySchedule(t *testing.T) {
	var h HarvestSchedule
	require.Empty(t, h.TpsHistory(100))
}

func TestTpsHistoryAdjacentPeriods(t *testing.T) {
	var h HarvestSchedule
	h.Periods[0] = HarvestPeriod{StartsAt: 21, EndsAt: 30, Tps: 5}
	h.Periods[1] = HarvestPeriod{StartsAt: 10, EndsAt: 20, Tps: 9}

	history := h.TpsHistory(30)
	require.Equal(t, []TpsRange{
		{From: 10, To: 20, Tps: 9},
		{From: 21, To: 30, Tps: 5},
	}, history)
}
