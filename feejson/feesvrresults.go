package feejson

// EstimateFeeResult models the data returned from the estimatefee command.
// The labeled levels are the standard percentile set; Percentiles carries any
// explicitly requested additional levels keyed as "p<level>".
type EstimateFeeResult struct {
	Min       float64 `json:"min"`
	Low       float64 `json:"low"`
	Medium    float64 `json:"medium"`
	High      float64 `json:"high"`
	VeryHigh  float64 `json:"veryHigh"`
	UnsafeMax float64 `json:"unsafeMax"`

	Percentiles map[string]float64 `json:"percentiles,omitempty"`

	// SampleCount is the number of observations the estimate was derived
	// from.  A zero value means no data was available in the requested
	// range; callers must treat the level values as meaningless in that
	// case.
	SampleCount int `json:"sampleCount"`

	// FirstSlot and LastSlot bound the slot range actually covered, which
	// may be narrower than requested.
	FirstSlot uint64 `json:"firstSlot"`
	LastSlot  uint64 `json:"lastSlot"`
}

// FeeScopeDetails models per-scope distribution statistics returned by the
// estimatefeedetails command.  A scope is either "global" or one of the
// requested accounts.
type FeeScopeDetails struct {
	Min       float64 `json:"min"`
	Low       float64 `json:"low"`
	Medium    float64 `json:"medium"`
	High      float64 `json:"high"`
	VeryHigh  float64 `json:"veryHigh"`
	UnsafeMax float64 `json:"unsafeMax"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stdDev"`
	Skewness  float64 `json:"skewness"`
	Count     int     `json:"count"`
}

// EstimateFeeDetailsResult models the data returned from the
// estimatefeedetails command.
type EstimateFeeDetailsResult struct {
	Estimate EstimateFeeResult          `json:"estimate"`
	Scopes   map[string]FeeScopeDetails `json:"scopes"`
}

// HealthResult models the data returned from the health command.
type HealthResult struct {
	Status string `json:"status"`

	// MaxSeenSlot is the highest slot accepted into the window, zero when
	// the window is still empty.
	MaxSeenSlot uint64 `json:"maxSeenSlot"`

	// WindowSlots is the number of slot buckets currently populated.
	WindowSlots int `json:"windowSlots"`

	// MaxLookbackSlots is the configured window depth, the upper bound on
	// WindowSlots.
	MaxLookbackSlots uint64 `json:"maxLookbackSlots"`

	// LastUpdateAge is the number of seconds since the window last
	// accepted data, -1 when it never has.  Staleness interpretation is
	// left to the caller.
	LastUpdateAge float64 `json:"lastUpdateAge"`
}

// RecentPrioritizationFee models one entry of the result returned by the
// fallback RPC's getrecentprioritizationfees command.
type RecentPrioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

// VersionResult models objects included in the version response.
type VersionResult struct {
	VersionString string `json:"versionstring"`
	Major         uint32 `json:"major"`
	Minor         uint32 `json:"minor"`
	Patch         uint32 `json:"patch"`
}
