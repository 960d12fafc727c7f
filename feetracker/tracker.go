package feetracker

import (
	"sync"
	"time"
)

const (
	// DefaultMaxLookbackSlots is the default depth of the sliding window.
	// At roughly 400ms per slot it covers about one minute of recent fee
	// activity.
	DefaultMaxLookbackSlots = 150
)

// InsertResult describes what happened when an observation was offered to the
// tracker.
type InsertResult struct {
	// Accepted reports whether the observation entered the window.  A
	// false value means the slot was stale and the tracker state is
	// unchanged.
	Accepted bool

	// GapSlots is the number of slots skipped over when the insert
	// advanced the window head by more than one slot.  Zero for in-order
	// and late-within-window inserts.
	GapSlots uint64

	// EvictedSlots lists the slots dropped from the window as a result of
	// this insert.
	EvictedSlots []uint64
}

// Snapshot is a point-in-time, immutable view of the tracker's contents
// scoped to a lookback range and an optional account set.  Snapshots hold
// references into the tracker's append-only observation slices, so they stay
// valid and consistent while the tracker keeps mutating.
type Snapshot struct {
	// MaxSeenSlot is the window head at snapshot time.  Meaningless when
	// HaveSlots is false.
	MaxSeenSlot uint64

	// HaveSlots reports whether the window had accepted any slot yet.
	HaveSlots bool

	// MinSlot is the lowest slot included in the snapshot's range.
	MinSlot uint64

	// Buckets maps each in-range slot to its observations.
	Buckets map[uint64][]*FeeObservation

	// Accounts maps each requested account to its in-range observations.
	// Only populated when the snapshot was taken with an account set.
	Accounts map[string][]*FeeObservation
}

// Tracker owns the sliding fee window and its account index and mediates all
// access to them.  A single writer inserts observations while any number of
// readers take snapshots; the window and index are mutated inside one
// critical section so readers can never observe one without the other.
type Tracker struct {
	mtx sync.RWMutex

	window *slotFeeWindow
	index  *accountFeeIndex

	lastUpdate time.Time
}

// NewTracker returns a tracker retaining at most maxLookbackSlots distinct
// slots.  A zero maxLookbackSlots selects DefaultMaxLookbackSlots.
func NewTracker(maxLookbackSlots uint64) *Tracker {
	if maxLookbackSlots == 0 {
		maxLookbackSlots = DefaultMaxLookbackSlots
	}
	return &Tracker{
		window: newSlotFeeWindow(maxLookbackSlots),
		index:  newAccountFeeIndex(),
	}
}

// MaxLookbackSlots returns the configured window depth.
func (t *Tracker) MaxLookbackSlots() uint64 {
	return t.window.maxLookback
}

// Insert offers one observation to the window.  Observations for slots that
// already fell out of the retention range are rejected without mutating any
// state.  Accepted observations update the window and the account index
// atomically with respect to Snapshot.
func (t *Tracker) Insert(obs *FeeObservation) InsertResult {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.window.isStale(obs.Slot) {
		log.Tracef("Rejecting stale observation for slot %d (window head %d)",
			obs.Slot, t.window.maxSeen)
		return InsertResult{}
	}

	evicted, gap := t.window.add(obs)
	t.index.record(obs)

	result := InsertResult{Accepted: true, GapSlots: gap}
	for _, bucket := range evicted {
		t.index.evict(bucket)
		result.EvictedSlots = append(result.EvictedSlots, bucket.slot)
	}
	t.lastUpdate = time.Now()
	return result
}

// Snapshot captures an immutable view of the most recent lookbackSlots slots,
// clamped to the configured window depth, with per-account observation lists
// for each requested account.  A zero lookbackSlots selects the full window.
//
// The returned bucket slices alias the tracker's internal append-only slices.
// Later inserts may append beyond the captured length but never mutate the
// captured prefix, so the snapshot is safe to read without locking.
func (t *Tracker) Snapshot(lookbackSlots uint64, accounts []string) *Snapshot {
	t.mtx.RLock()
	defer t.mtx.RUnlock()

	if lookbackSlots == 0 || lookbackSlots > t.window.maxLookback {
		lookbackSlots = t.window.maxLookback
	}

	snap := &Snapshot{
		MaxSeenSlot: t.window.maxSeen,
		HaveSlots:   t.window.haveSeen,
		Buckets:     make(map[uint64][]*FeeObservation, len(t.window.buckets)),
	}
	if !snap.HaveSlots {
		return snap
	}
	if t.window.maxSeen >= lookbackSlots {
		snap.MinSlot = t.window.maxSeen - lookbackSlots + 1
	}

	for slot, bucket := range t.window.buckets {
		if slot >= snap.MinSlot {
			snap.Buckets[slot] = bucket.observations
		}
	}

	if len(accounts) > 0 {
		snap.Accounts = make(map[string][]*FeeObservation, len(accounts))
		for _, account := range accounts {
			var obs []*FeeObservation
			for slot, entries := range t.index.lookup(account) {
				if slot >= snap.MinSlot {
					obs = append(obs, entries...)
				}
			}
			snap.Accounts[account] = obs
		}
	}
	return snap
}

// MaxSeenSlot returns the highest slot accepted into the window and whether
// any slot has been accepted at all.
func (t *Tracker) MaxSeenSlot() (uint64, bool) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.window.maxSeen, t.window.haveSeen
}

// Depth returns the number of slot buckets currently populated.
func (t *Tracker) Depth() int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.window.depth()
}

// LastUpdate returns the time of the most recent accepted insert, zero when
// nothing has been accepted yet.
func (t *Tracker) LastUpdate() time.Time {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return t.lastUpdate
}
