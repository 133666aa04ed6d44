// Package farming implements the yield-farming engine: the snapshot ring
// buffer, harvest-period schedules, the farm aggregate and the per-farmer
// accrual of eligible harvest across historical snapshots.
package farming

import (
	"github.com/egaotan/solana-amm/program"
)

// SnapshotsLen is the fixed ring capacity. Together with the minimum
// snapshot window it bounds how far back a farmer can claim.
const SnapshotsLen = 1000

// Snapshot samples the total staked amount at a slot. The zero value
// marks an unused ring entry; started_at == 0 is the sentinel.
type Snapshot struct {
	StartedAt program.Slot
	Staked    program.TokenAmount
}

func (s *Snapshot) Initialized() bool {
	return s.StartedAt != 0
}

// SnapshotBuffer is an index-based ring: Tip points at the most recent
// sample and the ring is populated in ring order. Before the first wrap
// the entries above the tip are uninitialized.
type SnapshotBuffer struct {
	Tip  uint64
	Ring [SnapshotsLen]Snapshot
}

// Append records a new sample. Samples closer than minWindow slots to the
// previous one are refused so the ring always covers a guaranteed span of
// time.
func (b *SnapshotBuffer) Append(now program.Slot, staked program.TokenAmount, minWindow uint64) error {
	if uint64(now) < uint64(b.Ring[b.Tip].StartedAt)+minWindow {
		return program.ErrInsufficientTimeSinceLastSnapshot
	}
	b.Tip = (b.Tip + 1) % SnapshotsLen
	b.Ring[b.Tip] = Snapshot{StartedAt: now, Staked: staked}
	return nil
}

// NewestToOldest walks up to SnapshotsLen samples in descending
// started_at order starting at the tip, wrapping the ring, until fn
// returns false.
func (b *SnapshotBuffer) NewestToOldest(fn func(s *Snapshot) bool) {
	idx := b.Tip
	for i := 0; i < SnapshotsLen; i++ {
		if !fn(&b.Ring[idx]) {
			return
		}
		idx = (idx + SnapshotsLen - 1) % SnapshotsLen
	}
}

// OldestSnapshot returns the oldest retained sample: the entry right
// after the tip once the ring has wrapped, the first entry otherwise.
func (b *SnapshotBuffer) OldestSnapshot() Snapshot {
	next := (b.Tip + 1) % SnapshotsLen
	if b.Ring[next].Initialized() {
		return b.Ring[next]
	}
	return b.Ring[0]
}

// FirstSnapshotAfter returns the chronologically first sample taken after
// the given slot, or nil when the newest sample is not after it.
func (b *SnapshotBuffer) FirstSnapshotAfter(slot program.Slot) *Snapshot {
	var after *Snapshot
	b.NewestToOldest(func(s *Snapshot) bool {
		if s.StartedAt <= slot {
			return false
		}
		after = s
		return true
	})
	if after == nil {
		return nil
	}
	found := *after
	return &found
}
