// NOTE: This file is intended to house the notifications that are delivered
// by the slot fee feed via websockets.

package feejson

import (
	"encoding/json"
)

const (
	// SlotFeesNtfnMethod is the method used for notifications carrying the
	// fee transactions of a newly confirmed slot.
	SlotFeesNtfnMethod = "slotfees"
)

// SlotFeeTx describes the fee-relevant facts of a single transaction inside a
// slotfees notification.
type SlotFeeTx struct {
	// Signature is the transaction's identity, used to deduplicate
	// redelivered transactions.
	Signature string `json:"signature"`

	// Fee is the price paid per compute unit in micro-lamports.
	Fee uint64 `json:"fee"`

	// Vote marks consensus vote transactions, which are excluded from
	// estimates by default.
	Vote bool `json:"vote"`

	// Accounts is the set of writable accounts the transaction locks.
	Accounts []string `json:"accounts"`
}

// SlotFeesNtfn defines the slotfees JSON-RPC notification.  The transactions
// are kept as raw messages so individual malformed entries can be dropped by
// the consumer without discarding the rest of the slot.
type SlotFeesNtfn struct {
	Slot         uint64
	Transactions []json.RawMessage
}

// NewSlotFeesNtfn returns a new instance which can be used to issue a
// slotfees JSON-RPC notification.
func NewSlotFeesNtfn(slot uint64, transactions []json.RawMessage) *SlotFeesNtfn {
	return &SlotFeesNtfn{
		Slot:         slot,
		Transactions: transactions,
	}
}

func init() {
	// The commands in this file are only usable by websockets and are
	// notifications.
	flags := UFWebsocketOnly | UFNotification

	MustRegisterCmd(SlotFeesNtfnMethod, (*SlotFeesNtfn)(nil), flags)
}
