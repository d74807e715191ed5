package model

// Status is the lifecycle state of a transfer request.
type Status string

// Transfer request statuses.
const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// transitions is the complete set of legal status changes. Anything not
// listed here is rejected before persistence.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:  {StatusInTransit, StatusCompleted, StatusCancelled},
	StatusInTransit: {StatusCompleted},
	StatusCompleted: nil,
	StatusRejected:  nil,
	StatusCancelled: nil,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Priority is the urgency of a transfer request.
type Priority string

// Transfer request priorities.
const (
	PriorityNormal    Priority = "normal"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityUrgent, PriorityEmergency:
		return true
	}
	return false
}
