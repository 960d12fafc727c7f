package feedclient

import (
	"encoding/json"

	"github.com/solsuite/feerd/feejson"
)

// FutureNotifySlotFeesResult is a future promise to deliver the result of a
// NotifySlotFeesAsync RPC invocation (or an applicable error).
type FutureNotifySlotFeesResult chan *Response

// Receive waits for the Response promised by the future and returns an error
// if the registration was not successful.
func (r FutureNotifySlotFeesResult) Receive() error {
	_, err := ReceiveFuture(r)
	return err
}

// NotifySlotFeesAsync returns an instance of a type that can be used to get
// the result of the RPC at some future time by invoking the Receive function
// on the returned instance.
//
// See NotifySlotFees for the blocking version and more details.
func (c *Client) NotifySlotFeesAsync() FutureNotifySlotFeesResult {
	// Not supported in HTTP POST mode.
	if c.config.HTTPPostMode {
		return newFutureError(ErrWebsocketsRequired)
	}

	cmd := feejson.NewNotifySlotFeesCmd()
	return c.SendCmd(cmd)
}

// NotifySlotFees registers the client for slotfees notifications, delivered
// via the OnSlotFees handler as each new slot is confirmed.  The registration
// is automatically re-established after a reconnect.
//
// NOTE: This is a websocket-only RPC.
func (c *Client) NotifySlotFees() error {
	return c.NotifySlotFeesAsync().Receive()
}

// FutureGetRecentPrioritizationFeesResult is a future promise to deliver the
// result of a GetRecentPrioritizationFeesAsync RPC invocation (or an
// applicable error).
type FutureGetRecentPrioritizationFeesResult chan *Response

// Receive waits for the Response promised by the future and returns the
// per-slot prioritization fees reported by the server.
func (r FutureGetRecentPrioritizationFeesResult) Receive() ([]feejson.RecentPrioritizationFee, error) {
	res, err := ReceiveFuture(r)
	if err != nil {
		return nil, err
	}

	var fees []feejson.RecentPrioritizationFee
	err = json.Unmarshal(res, &fees)
	if err != nil {
		return nil, err
	}
	return fees, nil
}

// GetRecentPrioritizationFeesAsync returns an instance of a type that can be
// used to get the result of the RPC at some future time by invoking the
// Receive function on the returned instance.
//
// See GetRecentPrioritizationFees for the blocking version and more details.
func (c *Client) GetRecentPrioritizationFeesAsync(accounts []string) FutureGetRecentPrioritizationFeesResult {
	cmd := feejson.NewGetRecentPrioritizationFeesCmd(&accounts)
	return c.SendCmd(cmd)
}

// GetRecentPrioritizationFees returns recent per-slot prioritization fees
// from the server, optionally scoped to the given accounts.  It is typically
// issued against a fallback RPC endpoint in HTTP POST mode to warm the
// estimation window before live feed data arrives.
func (c *Client) GetRecentPrioritizationFees(accounts []string) ([]feejson.RecentPrioritizationFee, error) {
	return c.GetRecentPrioritizationFeesAsync(accounts).Receive()
}

// RecentPrioritizationFees returns recent per-slot prioritization fees with
// no account scoping.  It satisfies the bootstrap fetcher interface used by
// the ingestion layer.
func (c *Client) RecentPrioritizationFees() ([]feejson.RecentPrioritizationFee, error) {
	return c.GetRecentPrioritizationFees(nil)
}
