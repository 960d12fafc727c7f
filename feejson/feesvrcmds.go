// NOTE: This file is intended to house the RPC commands that are supported by
// the fee estimator server.

package feejson

// EstimateFeeCmd defines the estimatefee JSON-RPC command.
type EstimateFeeCmd struct {
	// Accounts restricts the estimate to observations that lock at least
	// one of the listed writable accounts.  An empty list requests a
	// global estimate.
	Accounts *[]string `jsonrpcdefault:"[]"`

	// LookbackSlots limits how many of the most recent slots contribute to
	// the estimate.  It is clamped to the configured window depth.  A nil
	// value means the full retained window.
	LookbackSlots *uint64

	// IncludeVote indicates whether consensus vote transactions should
	// contribute to the estimate.
	IncludeVote *bool `jsonrpcdefault:"false"`

	// Percentiles requests additional explicit percentile levels beyond
	// the standard labeled set.
	Percentiles *[]float64
}

// NewEstimateFeeCmd returns a new instance which can be used to issue an
// estimatefee JSON-RPC command.
func NewEstimateFeeCmd(accounts *[]string, lookbackSlots *uint64, includeVote *bool, percentiles *[]float64) *EstimateFeeCmd {
	return &EstimateFeeCmd{
		Accounts:      accounts,
		LookbackSlots: lookbackSlots,
		IncludeVote:   includeVote,
		Percentiles:   percentiles,
	}
}

// EstimateFeeDetailsCmd defines the estimatefeedetails JSON-RPC command.  It
// accepts the same parameters as estimatefee but additionally returns
// per-scope distribution statistics.
type EstimateFeeDetailsCmd struct {
	Accounts      *[]string `jsonrpcdefault:"[]"`
	LookbackSlots *uint64
	IncludeVote   *bool `jsonrpcdefault:"false"`
}

// NewEstimateFeeDetailsCmd returns a new instance which can be used to issue
// an estimatefeedetails JSON-RPC command.
func NewEstimateFeeDetailsCmd(accounts *[]string, lookbackSlots *uint64, includeVote *bool) *EstimateFeeDetailsCmd {
	return &EstimateFeeDetailsCmd{
		Accounts:      accounts,
		LookbackSlots: lookbackSlots,
		IncludeVote:   includeVote,
	}
}

// HealthCmd defines the health JSON-RPC command.
type HealthCmd struct{}

// NewHealthCmd returns a new instance which can be used to issue a health
// JSON-RPC command.
func NewHealthCmd() *HealthCmd {
	return &HealthCmd{}
}

// GetRecentPrioritizationFeesCmd defines the getrecentprioritizationfees
// JSON-RPC command issued against the fallback RPC collaborator to bootstrap
// the window on cold start.
type GetRecentPrioritizationFeesCmd struct {
	Accounts *[]string `jsonrpcdefault:"[]"`
}

// NewGetRecentPrioritizationFeesCmd returns a new instance which can be used
// to issue a getrecentprioritizationfees JSON-RPC command.
func NewGetRecentPrioritizationFeesCmd(accounts *[]string) *GetRecentPrioritizationFeesCmd {
	return &GetRecentPrioritizationFeesCmd{
		Accounts: accounts,
	}
}

// NotifySlotFeesCmd defines the notifyslotfees JSON-RPC command used to
// register for slot fee notifications on the feed.
type NotifySlotFeesCmd struct{}

// NewNotifySlotFeesCmd returns a new instance which can be used to issue a
// notifyslotfees JSON-RPC command.
func NewNotifySlotFeesCmd() *NotifySlotFeesCmd {
	return &NotifySlotFeesCmd{}
}

// UptimeCmd defines the uptime JSON-RPC command.
type UptimeCmd struct{}

// NewUptimeCmd returns a new instance which can be used to issue an uptime
// JSON-RPC command.
func NewUptimeCmd() *UptimeCmd {
	return &UptimeCmd{}
}

// VersionCmd defines the version JSON-RPC command.
type VersionCmd struct{}

// NewVersionCmd returns a new instance which can be used to issue a version
// JSON-RPC command.
func NewVersionCmd() *VersionCmd {
	return &VersionCmd{}
}

// StopCmd defines the stop JSON-RPC command.
type StopCmd struct{}

// NewStopCmd returns a new instance which can be used to issue a stop
// JSON-RPC command.
func NewStopCmd() *StopCmd {
	return &StopCmd{}
}

func init() {
	// No special flags for commands in this file.
	flags := UsageFlag(0)

	MustRegisterCmd("estimatefee", (*EstimateFeeCmd)(nil), flags)
	MustRegisterCmd("estimatefeedetails", (*EstimateFeeDetailsCmd)(nil), flags)
	MustRegisterCmd("getrecentprioritizationfees", (*GetRecentPrioritizationFeesCmd)(nil), flags)
	MustRegisterCmd("health", (*HealthCmd)(nil), flags)
	MustRegisterCmd("stop", (*StopCmd)(nil), flags)
	MustRegisterCmd("uptime", (*UptimeCmd)(nil), flags)
	MustRegisterCmd("version", (*VersionCmd)(nil), flags)

	MustRegisterCmd("notifyslotfees", (*NotifySlotFeesCmd)(nil), UFWebsocketOnly)
}
