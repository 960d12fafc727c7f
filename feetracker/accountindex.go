package feetracker

// accountFeeIndex is the secondary index from writable account to the
// observations that lock it, partitioned by slot so eviction can drop exactly
// the entries belonging to an evicted bucket.  The index stores the same
// observation pointers as the window; it never owns data of its own.  It is
// not safe for concurrent use; the owning Tracker serializes all access.
type accountFeeIndex struct {
	// byAccount maps account -> slot -> observations in that slot locking
	// the account.
	byAccount map[string]map[uint64][]*FeeObservation
}

func newAccountFeeIndex() *accountFeeIndex {
	return &accountFeeIndex{
		byAccount: make(map[string]map[uint64][]*FeeObservation),
	}
}

// record indexes the observation under each account it locks.
func (idx *accountFeeIndex) record(obs *FeeObservation) {
	for _, account := range obs.Accounts {
		slots, ok := idx.byAccount[account]
		if !ok {
			slots = make(map[uint64][]*FeeObservation)
			idx.byAccount[account] = slots
		}
		slots[obs.Slot] = append(slots[obs.Slot], obs)
	}
}

// evict removes every index entry that refers to the evicted bucket's slot.
// Accounts left with no slots at all are removed entirely so the index never
// references accounts outside the window.
func (idx *accountFeeIndex) evict(bucket *slotBucket) {
	for _, obs := range bucket.observations {
		for _, account := range obs.Accounts {
			slots, ok := idx.byAccount[account]
			if !ok {
				continue
			}
			if _, ok := slots[bucket.slot]; ok {
				delete(slots, bucket.slot)
				if len(slots) == 0 {
					delete(idx.byAccount, account)
				}
			}
		}
	}
}

// lookup returns the slot-partitioned observations for the account, or nil
// when the account locks nothing in the window.
func (idx *accountFeeIndex) lookup(account string) map[uint64][]*FeeObservation {
	return idx.byAccount[account]
}
