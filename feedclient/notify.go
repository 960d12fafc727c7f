package feedclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/solsuite/feerd/feejson"
)

var (
	// ErrWebsocketsRequired is an error to describe the condition where the
	// caller is trying to use a websocket-only feature, such as requesting
	// notifications or other websocket requests when the client is
	// configured to run in HTTP POST mode.
	ErrWebsocketsRequired = errors.New("a websocket connection is required " +
		"to use this feature")
)

// notificationState is used to track the current state of successfully
// registered notification so the state can be automatically re-established on
// reconnect.
type notificationState struct {
	notifySlotFees bool
}

// Copy returns a deep copy of the receiver.
func (s *notificationState) Copy() *notificationState {
	stateCopy := *s
	return &stateCopy
}

// newNotificationState returns a new notification state ready to be populated.
func newNotificationState() *notificationState {
	return &notificationState{}
}

// NotificationHandlers defines callback function pointers to invoke with
// notifications.  Since all of the functions are nil by default, all
// notifications are effectively ignored until their handlers are set to a
// concrete callback.
//
// NOTE: Unless otherwise documented, these handlers must NOT directly call any
// blocking calls on the client instance since the input reader goroutine blocks
// until the callback has completed.  Doing so will result in a deadlock
// situation.
type NotificationHandlers struct {
	// OnClientConnected is invoked when the client connects or reconnects
	// to the feed.  This callback is run async with the rest of the
	// notification handlers, and is safe for blocking client requests.
	OnClientConnected func()

	// OnSlotFees is invoked when the feed delivers the fee transactions of
	// a newly confirmed slot.  It will only be invoked if a preceding call
	// to NotifySlotFees has been made to register for the notification and
	// the function is non-nil.  The transactions are delivered raw so
	// individually malformed entries can be dropped without discarding the
	// slot.
	OnSlotFees func(slot uint64, transactions []json.RawMessage)

	// OnUnknownNotification is invoked when an unrecognized notification
	// is received.  This typically means the notification handling code
	// for this package needs to be updated for a new notification type or
	// the caller is using a custom notification this package does not know
	// about.
	OnUnknownNotification func(method string, params []json.RawMessage)
}

// handleNotification examines the passed notification type, performs
// conversions to get the raw notification types into higher level types and
// delivers the notification to the appropriate On<X> handler registered with
// the client.
func (c *Client) handleNotification(ntfn *rawNotification) {
	// Ignore the notification if the client is not interested in any
	// notifications.
	if c.ntfnHandlers == nil {
		return
	}

	switch ntfn.Method {
	case feejson.SlotFeesNtfnMethod:
		// Ignore the notification if the client is not interested in
		// it.
		if c.ntfnHandlers.OnSlotFees == nil {
			return
		}

		slot, transactions, err := parseSlotFeesNtfnParams(ntfn.Params)
		if err != nil {
			log.Warnf("Received invalid slot fees notification: %v",
				err)
			return
		}

		c.ntfnHandlers.OnSlotFees(slot, transactions)

	default:
		if c.ntfnHandlers.OnUnknownNotification == nil {
			return
		}

		c.ntfnHandlers.OnUnknownNotification(ntfn.Method, ntfn.Params)
	}
}

// wrongNumParams is an error type describing an unparseable JSON-RPC
// notification due to an incorrect number of parameters for the
// expected notification type.  The value is the number of parameters
// of the invalid notification.
type wrongNumParams int

// Error satisfies the builtin error interface.
func (e wrongNumParams) Error() string {
	return fmt.Sprintf("wrong number of parameters (%d)", e)
}

// parseSlotFeesNtfnParams parses out the slot number and raw fee transactions
// from the parameters of a slotfees notification.
func parseSlotFeesNtfnParams(params []json.RawMessage) (uint64, []json.RawMessage, error) {
	if len(params) != 2 {
		return 0, nil, wrongNumParams(len(params))
	}

	// Unmarshal first parameter as the slot number.
	var slot uint64
	err := json.Unmarshal(params[0], &slot)
	if err != nil {
		return 0, nil, err
	}

	// Unmarshal second parameter as the array of raw transactions.
	var transactions []json.RawMessage
	err = json.Unmarshal(params[1], &transactions)
	if err != nil {
		return 0, nil, err
	}

	return slot, transactions, nil
}
