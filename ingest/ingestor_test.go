package ingest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solsuite/feerd/feejson"
	"github.com/solsuite/feerd/feetracker"
)

func rawTx(t *testing.T, tx feejson.SlotFeeTx) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	return raw
}

func TestIngestNormalization(t *testing.T) {
	tr := feetracker.NewTracker(150)
	in := NewIngestor(tr, 0)

	accepted := in.OnSlotFees(42, []json.RawMessage{
		rawTx(t, feejson.SlotFeeTx{
			Signature: "sig-1",
			Fee:       100,
			Accounts:  []string{"alice"},
		}),
		rawTx(t, feejson.SlotFeeTx{
			Signature: "sig-2",
			Fee:       5,
			Vote:      true,
		}),
	})
	require.Equal(t, 2, accepted)

	snap := tr.Snapshot(0, []string{"alice"})
	est := feetracker.Estimate(snap, &feetracker.EstimateRequest{})
	require.Equal(t, 1, est.SampleCount)
	require.Equal(t, 100.0, est.UnsafeMax)
	require.Len(t, snap.Accounts["alice"], 1)

	est = feetracker.Estimate(snap, &feetracker.EstimateRequest{
		IncludeVote: true,
	})
	require.Equal(t, 2, est.SampleCount)
}

// TestIngestMalformed verifies that an unparseable entry is dropped without
// discarding the rest of the slot.
func TestIngestMalformed(t *testing.T) {
	tr := feetracker.NewTracker(150)
	in := NewIngestor(tr, 0)

	accepted := in.OnSlotFees(1, []json.RawMessage{
		json.RawMessage(`{"signature":`),
		rawTx(t, feejson.SlotFeeTx{Signature: "sig-ok", Fee: 7}),
		json.RawMessage(`[1,2,3]`),
	})
	require.Equal(t, 1, accepted)

	est := feetracker.Estimate(tr.Snapshot(0, nil), &feetracker.EstimateRequest{})
	require.Equal(t, 1, est.SampleCount)
	require.Equal(t, 7.0, est.Medium)
}

// TestIngestDedupe verifies that a redelivered signature contributes only
// once while entries without a signature are never deduplicated.
func TestIngestDedupe(t *testing.T) {
	tr := feetracker.NewTracker(150)
	in := NewIngestor(tr, 0)

	dup := rawTx(t, feejson.SlotFeeTx{Signature: "sig-dup", Fee: 10})
	accepted := in.OnSlotFees(1, []json.RawMessage{dup, dup})
	require.Equal(t, 1, accepted)

	// Redelivery in a later slot is still a duplicate.
	accepted = in.OnSlotFees(2, []json.RawMessage{dup})
	require.Equal(t, 0, accepted)

	unsigned := rawTx(t, feejson.SlotFeeTx{Fee: 20})
	accepted = in.OnSlotFees(3, []json.RawMessage{unsigned, unsigned})
	require.Equal(t, 2, accepted)
}

func TestIngestStaleSlot(t *testing.T) {
	tr := feetracker.NewTracker(3)
	in := NewIngestor(tr, 0)

	in.OnSlotFees(10, []json.RawMessage{
		rawTx(t, feejson.SlotFeeTx{Signature: "a", Fee: 1}),
	})
	accepted := in.OnSlotFees(6, []json.RawMessage{
		rawTx(t, feejson.SlotFeeTx{Signature: "b", Fee: 2}),
	})
	require.Equal(t, 0, accepted)
	require.Equal(t, 1, tr.Depth())
}

type fakeFetcher struct {
	fees []feejson.RecentPrioritizationFee
	err  error
}

func (f *fakeFetcher) RecentPrioritizationFees() ([]feejson.RecentPrioritizationFee, error) {
	return f.fees, f.err
}

func TestBootstrap(t *testing.T) {
	tr := feetracker.NewTracker(150)
	in := NewIngestor(tr, 0)

	err := in.Bootstrap(&fakeFetcher{
		fees: []feejson.RecentPrioritizationFee{
			{Slot: 100, PrioritizationFee: 10},
			{Slot: 101, PrioritizationFee: 20},
			{Slot: 102, PrioritizationFee: 30},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, tr.Depth())

	est := feetracker.Estimate(tr.Snapshot(0, nil), &feetracker.EstimateRequest{})
	require.Equal(t, 3, est.SampleCount)
	require.Equal(t, 20.0, est.Medium)
}

func TestBootstrapError(t *testing.T) {
	tr := feetracker.NewTracker(150)
	in := NewIngestor(tr, 0)

	wantErr := errors.New("fallback unavailable")
	err := in.Bootstrap(&fakeFetcher{err: wantErr})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 0, tr.Depth())
}
