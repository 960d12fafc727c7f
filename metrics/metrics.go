// Package metrics defines the prometheus collectors shared by the feerd
// subsystems.  All collectors are registered on the default registry and
// exposed by the RPC server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TxObserved counts every transaction successfully normalized into a
	// fee observation from the live feed.
	TxObserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feerd",
		Name:      "transactions_observed_total",
		Help:      "Transactions normalized into fee observations.",
	})

	// TxMalformed counts feed entries the normalizer could not parse.
	TxMalformed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feerd",
		Name:      "transactions_malformed_total",
		Help:      "Feed entries dropped because they could not be parsed.",
	})

	// TxDeduped counts transactions dropped because their signature was
	// already seen recently.
	TxDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feerd",
		Name:      "transactions_deduplicated_total",
		Help:      "Transactions dropped as duplicate deliveries.",
	})

	// SlotGaps counts the number of times the feed skipped ahead by more
	// than one slot.
	SlotGaps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feerd",
		Name:      "slot_gaps_total",
		Help:      "Occurrences of the feed skipping one or more slots.",
	})

	// GapSlots counts the total number of individual slots skipped.
	GapSlots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feerd",
		Name:      "gap_slots_total",
		Help:      "Total individual slots skipped by the feed.",
	})

	// StaleSlots counts slot updates rejected for being older than the
	// retained window.
	StaleSlots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feerd",
		Name:      "stale_slots_total",
		Help:      "Slot updates dropped for falling outside the window.",
	})

	// BootstrapObservations counts observations loaded from the fallback
	// RPC on cold start.
	BootstrapObservations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feerd",
		Name:      "bootstrap_observations_total",
		Help:      "Observations pre-populated from the fallback RPC.",
	})

	// FeedConnects counts established feed connections, including
	// reconnects after a disconnect.
	FeedConnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feerd",
		Name:      "feed_connects_total",
		Help:      "Feed connections established, including reconnects.",
	})

	// WindowDepth reports the number of slot buckets currently retained.
	WindowDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "feerd",
		Name:      "window_depth_slots",
		Help:      "Slot buckets currently retained in the window.",
	})

	// MaxSeenSlot reports the highest slot number ever accepted.
	MaxSeenSlot = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "feerd",
		Name:      "max_seen_slot",
		Help:      "Highest slot number accepted into the window.",
	})
)

func init() {
	prometheus.MustRegister(TxObserved, TxMalformed, TxDeduped, SlotGaps,
		GapSlots, StaleSlots, BootstrapObservations, FeedConnects,
		WindowDepth, MaxSeenSlot)
}
