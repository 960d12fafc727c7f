// Package ingest normalizes slot fee feed payloads into tracker observations.
// It owns the lossy edges of ingestion: malformed entries, duplicate
// deliveries, slot gaps, and stale slots are absorbed here so the tracker
// only ever sees clean observations.
package ingest

import (
	"encoding/json"

	"github.com/decred/dcrd/lru"

	"github.com/solsuite/feerd/feejson"
	"github.com/solsuite/feerd/feetracker"
	"github.com/solsuite/feerd/metrics"
)

const (
	// defaultSigCacheSize is the default number of recently seen
	// transaction signatures remembered for deduplication.  It comfortably
	// covers several slots of redelivery at mainnet transaction rates.
	defaultSigCacheSize = 20000
)

// RecentFeeFetcher supplies recent per-slot prioritization fees from a
// fallback source, used to warm the window before live data arrives.
type RecentFeeFetcher interface {
	RecentPrioritizationFees() ([]feejson.RecentPrioritizationFee, error)
}

// Ingestor consumes slot fee notifications and feeds the tracker.  All
// methods are safe for concurrent use, though the feed delivers
// notifications one at a time in practice.
type Ingestor struct {
	tracker  *feetracker.Tracker
	sigCache lru.Cache
}

// NewIngestor returns an ingestor feeding the given tracker.  sigCacheSize
// bounds the signature deduplication cache; zero selects the default.
func NewIngestor(tracker *feetracker.Tracker, sigCacheSize uint) *Ingestor {
	if sigCacheSize == 0 {
		sigCacheSize = defaultSigCacheSize
	}
	return &Ingestor{
		tracker:  tracker,
		sigCache: lru.NewCache(sigCacheSize),
	}
}

// OnSlotFees ingests the transactions of one confirmed slot.  Entries that
// cannot be parsed are dropped individually, redelivered signatures are
// skipped, and the rest are inserted into the tracker.  It returns the number
// of observations accepted.
func (in *Ingestor) OnSlotFees(slot uint64, txns []json.RawMessage) int {
	var accepted int
	for _, raw := range txns {
		var tx feejson.SlotFeeTx
		if err := json.Unmarshal(raw, &tx); err != nil {
			metrics.TxMalformed.Inc()
			log.Debugf("Dropping malformed fee entry in slot %d: %v",
				slot, err)
			continue
		}

		if tx.Signature != "" {
			if in.sigCache.Contains(tx.Signature) {
				metrics.TxDeduped.Inc()
				continue
			}
			in.sigCache.Add(tx.Signature)
		}

		res := in.tracker.Insert(&feetracker.FeeObservation{
			Slot:              slot,
			FeePerComputeUnit: tx.Fee,
			IsVote:            tx.Vote,
			Accounts:          tx.Accounts,
		})
		if !res.Accepted {
			metrics.StaleSlots.Inc()
			continue
		}
		metrics.TxObserved.Inc()
		accepted++

		if res.GapSlots > 0 {
			metrics.SlotGaps.Inc()
			metrics.GapSlots.Add(float64(res.GapSlots))
			log.Infof("Feed skipped %d slot(s) before slot %d",
				res.GapSlots, slot)
		}
		if len(res.EvictedSlots) > 0 {
			log.Tracef("Evicted %d slot(s) after inserting slot %d",
				len(res.EvictedSlots), slot)
		}
	}

	in.updateGauges()
	return accepted
}

// Bootstrap warms the window from the fallback fetcher.  Bootstrap data
// carries per-slot fees with no account or vote detail, so the resulting
// observations only contribute to global estimates.  Failures leave the
// tracker untouched; the caller decides whether to proceed without warm data.
func (in *Ingestor) Bootstrap(fetcher RecentFeeFetcher) error {
	fees, err := fetcher.RecentPrioritizationFees()
	if err != nil {
		return err
	}

	var accepted int
	for _, entry := range fees {
		res := in.tracker.Insert(&feetracker.FeeObservation{
			Slot:              entry.Slot,
			FeePerComputeUnit: entry.PrioritizationFee,
		})
		if res.Accepted {
			metrics.BootstrapObservations.Inc()
			accepted++
		}
	}

	in.updateGauges()
	log.Infof("Bootstrapped window with %d observation(s) across %d "+
		"fee entries", accepted, len(fees))
	return nil
}

func (in *Ingestor) updateGauges() {
	metrics.WindowDepth.Set(float64(in.tracker.Depth()))
	if maxSeen, ok := in.tracker.MaxSeenSlot(); ok {
		metrics.MaxSeenSlot.Set(float64(maxSeen))
	}
}
