package feetracker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// obsForFees builds one observation per fee value, all in the given slot.
func obsForFees(slot uint64, fees ...uint64) []*FeeObservation {
	obs := make([]*FeeObservation, 0, len(fees))
	for _, fee := range fees {
		obs = append(obs, &FeeObservation{Slot: slot, FeePerComputeUnit: fee})
	}
	return obs
}

// snapFor builds a single-bucket snapshot directly so estimator behavior can
// be tested without going through a tracker.
func snapFor(obs []*FeeObservation) *Snapshot {
	buckets := make(map[uint64][]*FeeObservation)
	var maxSlot uint64
	for _, o := range obs {
		buckets[o.Slot] = append(buckets[o.Slot], o)
		if o.Slot > maxSlot {
			maxSlot = o.Slot
		}
	}
	return &Snapshot{
		MaxSeenSlot: maxSlot,
		HaveSlots:   len(obs) > 0,
		Buckets:     buckets,
	}
}

// TestPercentileInterpolation verifies linear interpolation between closest
// ranks against hand-computed values.
func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{name: "p0 is the minimum", p: 0, want: 10},
		{name: "p25 lands on a rank", p: 25, want: 20},
		{name: "p50 is the median", p: 50, want: 30},
		{name: "p60 interpolates", p: 60, want: 34},
		{name: "p75 lands on a rank", p: 75, want: 40},
		{name: "p95 interpolates near the top", p: 95, want: 48},
		{name: "p100 is the maximum", p: 100, want: 50},
		{name: "negative clamps to 0", p: -5, want: 10},
		{name: "above 100 clamps to 100", p: 150, want: 50},
	}
	for _, test := range tests {
		got := percentile(sorted, test.p)
		require.InDeltaf(t, test.want, got, 1e-9, "%s", test.name)
	}
}

func TestPercentileSingleValue(t *testing.T) {
	for _, p := range []float64{0, 37.5, 100} {
		require.Equal(t, 42.0, percentile([]float64{42}, p))
	}
}

func TestEstimateLevels(t *testing.T) {
	snap := snapFor(obsForFees(7, 30, 10, 50, 20, 40))
	est := Estimate(snap, &EstimateRequest{})

	require.Equal(t, 5, est.SampleCount)
	require.Equal(t, 10.0, est.Min)
	require.Equal(t, 20.0, est.Low)
	require.Equal(t, 30.0, est.Medium)
	require.Equal(t, 40.0, est.High)
	require.Equal(t, 48.0, est.VeryHigh)
	require.Equal(t, 50.0, est.UnsafeMax)
	require.Equal(t, uint64(7), est.FirstSlot)
	require.Equal(t, uint64(7), est.LastSlot)
}

func TestEstimateEmpty(t *testing.T) {
	est := Estimate(snapFor(nil), &EstimateRequest{})
	require.Equal(t, 0, est.SampleCount)
	require.Equal(t, 0.0, est.Min)
	require.Equal(t, 0.0, est.UnsafeMax)
	require.Equal(t, uint64(0), est.FirstSlot)
	require.Equal(t, uint64(0), est.LastSlot)
}

// TestEstimateVoteFiltering verifies that vote transactions are excluded by
// default and included on request.
func TestEstimateVoteFiltering(t *testing.T) {
	snap := snapFor([]*FeeObservation{
		{Slot: 3, FeePerComputeUnit: 100},
		{Slot: 3, FeePerComputeUnit: 1, IsVote: true},
	})

	est := Estimate(snap, &EstimateRequest{})
	require.Equal(t, 1, est.SampleCount)
	require.Equal(t, 100.0, est.Medium)

	est = Estimate(snap, &EstimateRequest{IncludeVote: true})
	require.Equal(t, 2, est.SampleCount)
	require.Equal(t, 1.0, est.Min)
	require.Equal(t, 100.0, est.UnsafeMax)
}

// TestEstimateAccountScope verifies account-scoped estimation, including that
// an observation locking several requested accounts contributes exactly once.
func TestEstimateAccountScope(t *testing.T) {
	tr := NewTracker(10)
	tr.Insert(&FeeObservation{Slot: 1, FeePerComputeUnit: 10, Accounts: []string{"alice"}})
	tr.Insert(&FeeObservation{Slot: 1, FeePerComputeUnit: 20, Accounts: []string{"bob"}})
	tr.Insert(&FeeObservation{Slot: 2, FeePerComputeUnit: 30, Accounts: []string{"alice", "bob"}})
	tr.Insert(&FeeObservation{Slot: 2, FeePerComputeUnit: 500, Accounts: []string{"carol"}})

	snap := tr.Snapshot(0, []string{"alice"})
	est := Estimate(snap, &EstimateRequest{Accounts: []string{"alice"}})
	require.Equal(t, 2, est.SampleCount)
	require.Equal(t, 10.0, est.Min)
	require.Equal(t, 30.0, est.UnsafeMax)

	// The shared observation must not be double counted.
	snap = tr.Snapshot(0, []string{"alice", "bob"})
	est = Estimate(snap, &EstimateRequest{Accounts: []string{"alice", "bob"}})
	require.Equal(t, 3, est.SampleCount)

	// Unknown accounts yield an empty estimate, not an error.
	snap = tr.Snapshot(0, []string{"nobody"})
	est = Estimate(snap, &EstimateRequest{Accounts: []string{"nobody"}})
	require.Equal(t, 0, est.SampleCount)
}

func TestEstimateCustomPercentiles(t *testing.T) {
	snap := snapFor(obsForFees(1, 10, 20, 30, 40, 50))
	est := Estimate(snap, &EstimateRequest{Percentiles: []float64{60, 99.5}})

	require.Len(t, est.Percentiles, 2)
	require.InDelta(t, 34.0, est.Percentiles["p60"], 1e-9)
	require.InDelta(t, 49.8, est.Percentiles["p99.5"], 1e-9)
}

func TestEstimateDetailsScopes(t *testing.T) {
	tr := NewTracker(10)
	tr.Insert(&FeeObservation{Slot: 1, FeePerComputeUnit: 10, Accounts: []string{"alice"}})
	tr.Insert(&FeeObservation{Slot: 1, FeePerComputeUnit: 20, Accounts: []string{"alice"}})
	tr.Insert(&FeeObservation{Slot: 2, FeePerComputeUnit: 30, Accounts: []string{"alice"}})
	tr.Insert(&FeeObservation{Slot: 2, FeePerComputeUnit: 90, Accounts: []string{"bob"}})

	snap := tr.Snapshot(0, []string{"alice"})
	est, scopes := EstimateDetails(snap, &EstimateRequest{Accounts: []string{"alice"}})

	require.Equal(t, 3, est.SampleCount)
	require.Len(t, scopes, 2)

	global := scopes["global"]
	require.Equal(t, 4, global.Count)
	require.Equal(t, 10.0, global.Min)
	require.Equal(t, 90.0, global.UnsafeMax)
	require.InDelta(t, 37.5, global.Mean, 1e-9)

	alice := scopes["alice"]
	require.Equal(t, 3, alice.Count)
	require.InDelta(t, 20.0, alice.Mean, 1e-9)
	require.InDelta(t, 10.0, alice.StdDev, 1e-9)
	// Symmetric sample has zero skewness.
	require.InDelta(t, 0.0, alice.Skewness, 1e-9)
}

func TestScopeStatsSmallSamples(t *testing.T) {
	one := scopeStats(obsForFees(1, 42))
	require.Equal(t, 1, one.Count)
	require.Equal(t, 42.0, one.Mean)
	require.True(t, math.IsNaN(one.StdDev))
	require.True(t, math.IsNaN(one.Skewness))

	two := scopeStats(obsForFees(1, 10, 30))
	require.Equal(t, 20.0, two.Mean)
	require.False(t, math.IsNaN(two.StdDev))
	require.True(t, math.IsNaN(two.Skewness))
}
