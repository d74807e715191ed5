package model

import "time"

// MaxReasonLength bounds the reason text supplied when creating a transfer.
const MaxReasonLength = 1000

// TransferRequest is one instance of the workflow moving a quantity of an
// item from a source location to a destination location.
type TransferRequest struct {
	ID             int64      `json:"id"`
	RequestID      string     `json:"request_id"`
	ItemID         int64      `json:"item_id"`
	FromLocationID int64      `json:"from_location_id"`
	ToLocationID   int64      `json:"to_location_id"`
	Quantity       int        `json:"quantity"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	RequestedBy    string     `json:"requested_by"`
	ApprovedBy     string     `json:"approved_by,omitempty"`
	Reason         string     `json:"reason"`
	RequestedAt    time.Time  `json:"requested_at"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	// Joined fields (not always populated).
	ItemName         string `json:"item_name,omitempty"`
	FromLocationName string `json:"from_location_name,omitempty"`
	ToLocationName   string `json:"to_location_name,omitempty"`
}

// Rejectable reports whether the request can still be rejected.
func (t TransferRequest) Rejectable() bool {
	return t.Status == StatusPending
}

// CanBeCancelled reports whether the request can still be cancelled.
func (t TransferRequest) CanBeCancelled() bool {
	return t.Status == StatusPending || t.Status == StatusApproved
}

// Completable reports whether the transfer can be executed.
func (t TransferRequest) Completable() bool {
	return t.Status == StatusApproved || t.Status == StatusInTransit
}
