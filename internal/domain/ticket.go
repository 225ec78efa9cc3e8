package domain

import "time"

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	StateCreated            TicketState = "CREATED"
	StateQueued             TicketState = "QUEUED"
	StateInProgress         TicketState = "IN_PROGRESS"
	StateSolved             TicketState = "SOLVED"
	StateClosed             TicketState = "CLOSED"
	StateReopened           TicketState = "REOPENED"
	StateClosedBySupervisor TicketState = "CLOSED_BY_SUPERVISOR"
)

// TerminalState reports whether the state is absorbing unless reopened.
func TerminalState(state TicketState) bool {
	return state == StateClosed || state == StateClosedBySupervisor
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for support requests. The current handler is
// derived from the assignment ledger, never stored here; ClosedAt is set
// exactly when the state is a terminal one.
type Ticket struct {
	ID            string
	ClientID      string
	Title         string
	Description   string
	State         TicketState
	Priority      TicketPriority
	Rating        *int
	RatingComment *string
	RatedAt       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}

const (
	// RatingMin and RatingMax bound client satisfaction ratings.
	RatingMin = 1
	RatingMax = 5
)

// ValidRating reports whether a satisfaction rating is in range.
func ValidRating(rating int) bool {
	return rating >= RatingMin && rating <= RatingMax
}
