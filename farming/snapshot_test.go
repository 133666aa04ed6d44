package farming

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egaotan/solana-amm/program"
)

func TestAppendEnforcesMinimumWindow(t *testing.T) {
	var b SnapshotBuffer
	require.NoError(t, b.Append(10, 100, 5))
	require.ErrorIs(t, b.Append(14, 100, 5), program.ErrInsufficientTimeSinceLastSnapshot)
	require.NoError(t, b.Append(15, 200, 5))
	require.Equal(t, uint64(2), b.Tip)
	require.Equal(t, Snapshot{StartedAt: 15, Staked: 200}, b.Ring[2])
}

func TestNewestToOldestOrder(t *testing.T) {
	var b SnapshotBuffer
	for slot := program.Slot(10); slot <= 50; slot += 10 {
		require.NoError(t, b.Append(slot, program.TokenAmount(slot), 1))
	}
	seen := make([]program.Slot, 0, 5)
	b.NewestToOldest(func(s *Snapshot) bool {
		if !s.Initialized() {
			return false
		}
		seen = append(seen, s.StartedAt)
		return true
	})
	require.Equal(t, []program.Slot{50, 40, 30, 20, 10}, seen)
}

func TestRingWrapsAroundCapacity(t *testing.T) {
	var b SnapshotBuffer
	for i := 0; i < SnapshotsLen+10; i++ {
		slot := program.Slot(i + 1)
		require.NoError(t, b.Append(slot, 1, 1))
	}
	// The newest sample sits where the oldest used to be.
	require.Equal(t, program.Slot(SnapshotsLen+10), b.Ring[b.Tip].StartedAt)
	count := 0
	last := program.Slot(SnapshotsLen + 11)
	b.NewestToOldest(func(s *Snapshot) bool {
		require.True(t, s.Initialized())
		require.True(t, s.StartedAt < last)
		last = s.StartedAt
		count++
		return true
	})
	require.Equal(t, SnapshotsLen, count)
}

func TestOldestSnapshot(t *testing.T) {
	var b SnapshotBuffer
	// Empty buffer: the sentinel at index 0.
	empty := b.OldestSnapshot()
	require.False(t, empty.Initialized())

	require.NoError(t, b.Append(10, 1, 1))
	require.NoError(t, b.Append(20, 2, 1))
	// Before the wrap the slot after the tip is still uninitialized, so
	// the oldest retained sample is ring[0]. Ring index 0 is the unused
	// sentinel until the first wrap.
	require.Equal(t, program.Slot(0), b.OldestSnapshot().StartedAt)

	for i := 0; i < SnapshotsLen; i++ {
		require.NoError(t, b.Append(program.Slot(30+i), 1, 1))
	}
	oldest := b.OldestSnapshot()
	require.True(t, oldest.Initialized())
	require.Equal(t, b.Ring[(b.Tip+1)%SnapshotsLen], oldest)
}

func TestFirstSnapshotAfter(t *testing.T) {
	var b SnapshotBuffer
	require.Nil(t, b.FirstSnapshotAfter(0))

	require.NoError(t, b.Append(10, 1, 1))
	require.NoError(t, b.Append(20, 2, 1))
	require.NoError(t, b.Append(30, 3, 1))

	snap := b.FirstSnapshotAfter(15)
	require.NotNil(t, snap)
	require.Equal(t, program.Slot(20), snap.StartedAt)

	// Exactly at a sample slot: the next one qualifies.
	snap = b.FirstSnapshotAfter(20)
	require.NotNil(t, snap)
	require.Equal(t, program.Slot(30), snap.StartedAt)

	// Before the first sample: the chronologically first one.
	snap = b.FirstSnapshotAfter(5)
	require.NotNil(t, snap)
	require.Equal(t, program.Slot(10), snap.StartedAt)

	// Newest sample is not after the probe.
	require.Nil(t, b.FirstSnapshotAfter(30))
	require.Nil(t, b.FirstSnapshotAfter(99))
}
