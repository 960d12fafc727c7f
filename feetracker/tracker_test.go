package feetracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func obsAt(slot uint64, fee uint64, accounts ...string) *FeeObservation {
	return &FeeObservation{
		Slot:              slot,
		FeePerComputeUnit: fee,
		Accounts:          accounts,
	}
}

// TestTrackerWindowBound verifies that the window never retains more than
// maxLookback distinct slots and that eviction drops exactly the slots that
// fall out of range.
func TestTrackerWindowBound(t *testing.T) {
	tr := NewTracker(3)

	for slot := uint64(1); slot <= 3; slot++ {
		res := tr.Insert(obsAt(slot, 10*slot))
		require.True(t, res.Accepted)
		require.Empty(t, res.EvictedSlots)
	}
	require.Equal(t, 3, tr.Depth())

	res := tr.Insert(obsAt(4, 40))
	require.True(t, res.Accepted)
	require.Equal(t, []uint64{1}, res.EvictedSlots)
	require.Equal(t, 3, tr.Depth())

	snap := tr.Snapshot(0, nil)
	require.NotContains(t, snap.Buckets, uint64(1))
	require.Contains(t, snap.Buckets, uint64(2))
	require.Contains(t, snap.Buckets, uint64(4))
}

// TestTrackerStaleRejection verifies that a slot older than the retention
// range is rejected without mutating any state.
func TestTrackerStaleRejection(t *testing.T) {
	tr := NewTracker(3)
	tr.Insert(obsAt(10, 100))

	res := tr.Insert(obsAt(6, 50))
	require.False(t, res.Accepted)
	require.Equal(t, 1, tr.Depth())

	maxSeen, have := tr.MaxSeenSlot()
	require.True(t, have)
	require.Equal(t, uint64(10), maxSeen)

	// Slot 8 is within range of head 10 and must be admitted late.
	res = tr.Insert(obsAt(8, 80))
	require.True(t, res.Accepted)
	require.Zero(t, res.GapSlots)
	require.Equal(t, 2, tr.Depth())
}

// TestTrackerGapTolerance verifies that a forward jump past missing slots is
// accepted, reported, and leaves earlier in-range slots intact.
func TestTrackerGapTolerance(t *testing.T) {
	tr := NewTracker(150)
	tr.Insert(obsAt(5, 10))

	res := tr.Insert(obsAt(12, 20))
	require.True(t, res.Accepted)
	require.Equal(t, uint64(6), res.GapSlots)

	snap := tr.Snapshot(0, nil)
	require.Contains(t, snap.Buckets, uint64(5))
	require.Contains(t, snap.Buckets, uint64(12))
	require.Len(t, snap.Buckets, 2)
}

// TestTrackerIndexConsistency verifies that the account index tracks window
// eviction: accounts only referenced by evicted slots disappear from
// account-scoped snapshots.
func TestTrackerIndexConsistency(t *testing.T) {
	tr := NewTracker(2)
	tr.Insert(obsAt(1, 10, "alice"))
	tr.Insert(obsAt(2, 20, "alice", "bob"))
	tr.Insert(obsAt(3, 30, "bob"))

	// Slot 1 was evicted, so alice only has the slot 2 observation left.
	snap := tr.Snapshot(0, []string{"alice", "bob"})
	require.Len(t, snap.Accounts["alice"], 1)
	require.Equal(t, uint64(2), snap.Accounts["alice"][0].Slot)
	require.Len(t, snap.Accounts["bob"], 2)

	tr.Insert(obsAt(4, 40, "carol"))
	snap = tr.Snapshot(0, []string{"alice"})
	require.Empty(t, snap.Accounts["alice"])
}

// TestTrackerSnapshotLookback verifies lookback clamping and range scoping.
func TestTrackerSnapshotLookback(t *testing.T) {
	tr := NewTracker(150)
	for slot := uint64(100); slot <= 110; slot++ {
		tr.Insert(obsAt(slot, slot))
	}

	snap := tr.Snapshot(3, nil)
	require.Equal(t, uint64(108), snap.MinSlot)
	require.Len(t, snap.Buckets, 3)

	// A lookback beyond the window depth clamps to the full window.
	snap = tr.Snapshot(1000, nil)
	require.Len(t, snap.Buckets, 11)
}

// TestTrackerSnapshotIsolation verifies that a snapshot taken before further
// inserts does not observe them.
func TestTrackerSnapshotIsolation(t *testing.T) {
	tr := NewTracker(150)
	tr.Insert(obsAt(1, 10))
	snap := tr.Snapshot(0, nil)

	tr.Insert(obsAt(1, 999))
	tr.Insert(obsAt(2, 999))

	est := Estimate(snap, &EstimateRequest{})
	require.Equal(t, 1, est.SampleCount)
	require.Equal(t, 10.0, est.UnsafeMax)
}

// TestTrackerConcurrentReaders exercises one writer against several
// snapshotting readers.  It is mainly meaningful under the race detector.
func TestTrackerConcurrentReaders(t *testing.T) {
	tr := NewTracker(50)

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for slot := uint64(1); slot <= 500; slot++ {
			tr.Insert(obsAt(slot, slot%97, "acct"))
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := tr.Snapshot(0, []string{"acct"})
				est := Estimate(snap, &EstimateRequest{
					Accounts: []string{"acct"},
				})
				if est.SampleCount > 0 {
					require.LessOrEqual(t, est.Min, est.UnsafeMax)
				}
			}
		}()
	}
	wg.Wait()
}
