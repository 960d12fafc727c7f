// Package feetracker implements the sliding-window priority fee tracker: a
// bounded, slot-indexed store of per-transaction fee observations with a
// derived per-account index and percentile estimation over point-in-time
// snapshots.
package feetracker

// FeeObservation is the normalized unit of data extracted from one
// transaction in one confirmed slot.  Observations are immutable once created
// and are owned exclusively by the slot bucket that holds them until evicted.
type FeeObservation struct {
	// Slot is the slot the transaction was confirmed in.
	Slot uint64

	// FeePerComputeUnit is the price paid per compute unit in
	// micro-lamports.  This is the quantity being estimated.
	FeePerComputeUnit uint64

	// IsVote marks consensus vote transactions.  These are near-zero-fee
	// and excluded from estimates by default to avoid skewing them toward
	// zero.
	IsVote bool

	// Accounts is the set of writable accounts the transaction locks,
	// used for account-scoped estimation.
	Accounts []string
}

// slotBucket holds all fee observations for one slot.  The observation slice
// is append-only; append order is arrival order within the slot, which need
// not match on-chain transaction order since percentile computation is
// order-insensitive.
type slotBucket struct {
	slot         uint64
	observations []*FeeObservation
}
