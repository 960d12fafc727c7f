package feetracker

// slotFeeWindow is the bounded sliding window of slot buckets.  It retains at
// most maxLookback distinct slots ending at the highest slot ever accepted.
// The window is not safe for concurrent use; the owning Tracker serializes
// all access.
type slotFeeWindow struct {
	// maxLookback is the maximum number of distinct slots retained.
	maxLookback uint64

	// buckets maps slot to its bucket.  Every key s satisfies
	// maxSeen-s < maxLookback.
	buckets map[uint64]*slotBucket

	// maxSeen is the highest slot ever accepted.  It never decreases, even
	// when the bucket it referred to has no observations.
	maxSeen uint64

	// haveSeen reports whether any slot has been accepted yet, so slot 0
	// is distinguishable from an empty window.
	haveSeen bool
}

func newSlotFeeWindow(maxLookback uint64) *slotFeeWindow {
	return &slotFeeWindow{
		maxLookback: maxLookback,
		buckets:     make(map[uint64]*slotBucket),
	}
}

// isStale reports whether the given slot is too old to be admitted, meaning
// it falls outside the retention range implied by the highest slot seen.
func (w *slotFeeWindow) isStale(slot uint64) bool {
	return w.haveSeen && w.maxSeen >= slot && w.maxSeen-slot >= w.maxLookback
}

// add inserts the observation into the bucket for its slot, creating the
// bucket if needed, and evicts any slots that fall out of the retention range
// as a result.  The caller must have already rejected stale slots via
// isStale.  The returned slice holds the evicted buckets, if any, so the
// caller can unwind derived state.  gap is the number of slots skipped over
// when the insert advances maxSeen by more than one.
func (w *slotFeeWindow) add(obs *FeeObservation) (evicted []*slotBucket, gap uint64) {
	b, ok := w.buckets[obs.Slot]
	if !ok {
		b = &slotBucket{slot: obs.Slot}
		w.buckets[obs.Slot] = b
	}
	b.observations = append(b.observations, obs)

	if !w.haveSeen {
		w.haveSeen = true
		w.maxSeen = obs.Slot
		return nil, 0
	}
	if obs.Slot <= w.maxSeen {
		return nil, 0
	}

	gap = obs.Slot - w.maxSeen - 1
	w.maxSeen = obs.Slot

	// Drop everything that fell out of the retention range.  The window
	// holds at most maxLookback buckets so a full scan is cheap.
	if w.maxSeen >= w.maxLookback {
		floor := w.maxSeen - w.maxLookback
		for slot, bucket := range w.buckets {
			if slot <= floor {
				evicted = append(evicted, bucket)
				delete(w.buckets, slot)
			}
		}
	}
	return evicted, gap
}

// depth returns the number of slot buckets currently populated.
func (w *slotFeeWindow) depth() int {
	return len(w.buckets)
}
