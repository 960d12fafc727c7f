package feetracker

import (
	"math"
	"sort"
	"strconv"
)

// Standard percentile levels.  Each label names the percentile of the fee
// distribution it reports.
const (
	LevelMin       = 0
	LevelLow       = 25
	LevelMedium    = 50
	LevelHigh      = 75
	LevelVeryHigh  = 95
	LevelUnsafeMax = 100
)

// EstimateRequest parameterizes a fee estimate over a snapshot.
type EstimateRequest struct {
	// Accounts restricts the estimate to observations locking at least one
	// of the listed accounts.  Empty means global.
	Accounts []string

	// IncludeVote includes consensus vote transactions, which are excluded
	// by default.
	IncludeVote bool

	// Percentiles requests additional explicit percentile levels beyond
	// the standard labeled set.  Values outside [0, 100] are clamped.
	Percentiles []float64
}

// FeeEstimate is the result of a percentile estimate over a snapshot.
type FeeEstimate struct {
	Min       float64
	Low       float64
	Medium    float64
	High      float64
	VeryHigh  float64
	UnsafeMax float64

	// Percentiles holds any explicitly requested levels keyed "p<level>".
	Percentiles map[string]float64

	// SampleCount is the number of observations the estimate was computed
	// from.  When zero, every level is zero and carries no meaning.
	SampleCount int

	// FirstSlot and LastSlot bound the slots the included observations
	// actually came from.  Both are zero when SampleCount is zero.
	FirstSlot uint64
	LastSlot  uint64
}

// ScopeStats carries the distribution statistics of one estimation scope,
// either the whole snapshot or a single account.
type ScopeStats struct {
	Min       float64
	Low       float64
	Medium    float64
	High      float64
	VeryHigh  float64
	UnsafeMax float64
	Mean      float64
	StdDev    float64
	Skewness  float64
	Count     int
}

// Estimate computes percentile fee levels over the snapshot.  When the
// request names accounts, the sample is the deduplicated union of the
// observations locking any of them; otherwise it is every observation in the
// snapshot.  Vote transactions are excluded unless requested.
func Estimate(snap *Snapshot, req *EstimateRequest) *FeeEstimate {
	obs := collect(snap, req)

	est := &FeeEstimate{SampleCount: len(obs)}
	if len(obs) == 0 {
		return est
	}

	fees := make([]float64, 0, len(obs))
	first, last := obs[0].Slot, obs[0].Slot
	for _, o := range obs {
		fees = append(fees, float64(o.FeePerComputeUnit))
		if o.Slot < first {
			first = o.Slot
		}
		if o.Slot > last {
			last = o.Slot
		}
	}
	sort.Float64s(fees)

	est.FirstSlot = first
	est.LastSlot = last
	est.Min = percentile(fees, LevelMin)
	est.Low = percentile(fees, LevelLow)
	est.Medium = percentile(fees, LevelMedium)
	est.High = percentile(fees, LevelHigh)
	est.VeryHigh = percentile(fees, LevelVeryHigh)
	est.UnsafeMax = percentile(fees, LevelUnsafeMax)

	if len(req.Percentiles) > 0 {
		est.Percentiles = make(map[string]float64, len(req.Percentiles))
		for _, p := range req.Percentiles {
			label := "p" + strconv.FormatFloat(p, 'f', -1, 64)
			est.Percentiles[label] = percentile(fees, p)
		}
	}
	return est
}

// EstimateDetails computes the combined estimate plus per-scope distribution
// statistics: one "global" scope covering the whole snapshot and one scope
// per requested account.
func EstimateDetails(snap *Snapshot, req *EstimateRequest) (*FeeEstimate, map[string]ScopeStats) {
	est := Estimate(snap, req)

	scopes := make(map[string]ScopeStats, len(req.Accounts)+1)
	globalReq := &EstimateRequest{IncludeVote: req.IncludeVote}
	scopes["global"] = scopeStats(collect(snap, globalReq))
	for _, account := range req.Accounts {
		acctReq := &EstimateRequest{
			Accounts:    []string{account},
			IncludeVote: req.IncludeVote,
		}
		scopes[account] = scopeStats(collect(snap, acctReq))
	}
	return est, scopes
}

// collect gathers the observations the request selects from the snapshot.
// Account-scoped collection deduplicates observations that lock several of
// the requested accounts so each transaction contributes once.
func collect(snap *Snapshot, req *EstimateRequest) []*FeeObservation {
	var out []*FeeObservation
	if len(req.Accounts) > 0 {
		seen := make(map[*FeeObservation]struct{})
		for _, account := range req.Accounts {
			for _, o := range snap.Accounts[account] {
				if _, ok := seen[o]; ok {
					continue
				}
				seen[o] = struct{}{}
				if o.IsVote && !req.IncludeVote {
					continue
				}
				out = append(out, o)
			}
		}
		return out
	}

	for _, bucket := range snap.Buckets {
		for _, o := range bucket {
			if o.IsVote && !req.IncludeVote {
				continue
			}
			out = append(out, o)
		}
	}
	return out
}

// percentile computes the p'th percentile of the ascending-sorted values
// using linear interpolation between closest ranks.  p is clamped to
// [0, 100].  The slice must be non-empty.
func percentile(sorted []float64, p float64) float64 {
	if p < 0 {
		p = 0
	} else if p > 100 {
		p = 100
	}
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	idx := p / 100 * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// scopeStats computes the percentile levels plus mean, sample standard
// deviation, and adjusted sample skewness for one scope's observations.
// StdDev is NaN for fewer than two samples and Skewness for fewer than three.
func scopeStats(obs []*FeeObservation) ScopeStats {
	stats := ScopeStats{Count: len(obs)}
	if len(obs) == 0 {
		return stats
	}

	fees := make([]float64, 0, len(obs))
	for _, o := range obs {
		fees = append(fees, float64(o.FeePerComputeUnit))
	}
	sort.Float64s(fees)

	stats.Min = percentile(fees, LevelMin)
	stats.Low = percentile(fees, LevelLow)
	stats.Medium = percentile(fees, LevelMedium)
	stats.High = percentile(fees, LevelHigh)
	stats.VeryHigh = percentile(fees, LevelVeryHigh)
	stats.UnsafeMax = percentile(fees, LevelUnsafeMax)

	n := float64(len(fees))
	var sum float64
	for _, v := range fees {
		sum += v
	}
	mean := sum / n
	stats.Mean = mean

	if len(fees) < 2 {
		stats.StdDev = math.NaN()
		stats.Skewness = math.NaN()
		return stats
	}
	var m2, m3 float64
	for _, v := range fees {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	stats.StdDev = math.Sqrt(m2 / (n - 1))

	if len(fees) < 3 || m2 == 0 {
		stats.Skewness = math.NaN()
		return stats
	}
	// Adjusted Fisher-Pearson standardized moment coefficient.
	g1 := (m3 / n) / math.Pow(m2/n, 1.5)
	stats.Skewness = math.Sqrt(n*(n-1)) / (n - 2) * g1
	return stats
}
