package model

import "time"

// StockEvent describes one committed ledger mutation, for external audit
// sinks. Delivery is fire-and-forget; the mutation is already committed.
type StockEvent struct {
	LocationID    int64     `json:"location_id"`
	ItemID        int64     `json:"item_id"`
	Op            string    `json:"op"`
	QuantityDelta int       `json:"quantity_delta"`
	ReservedDelta int       `json:"reserved_delta"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}

// StockAlert signals a stock record crossing into a more depleted level
// after a mutation.
type StockAlert struct {
	Record   StockRecord `json:"record"`
	Previous StockLevel  `json:"previous"`
	Current  StockLevel  `json:"current"`
	At       time.Time   `json:"at"`
}

// TransferEvent describes one committed workflow transition, for external
// audit sinks. From is empty for creation.
type TransferEvent struct {
	TransferID int64     `json:"transfer_id"`
	RequestID  string    `json:"request_id"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	From       Status    `json:"from,omitempty"`
	To         Status    `json:"to"`
	At         time.Time `json:"at"`
}
