package domain

import "time"

// Assignment ties a ticket to the handler a supervisor picked for it.
// Historical rows accumulate per ticket; the active one is the most
// recent by AssignedAt. Escalation deletes the active row outright, so
// "assigned" is exactly "an active row exists".
type Assignment struct {
	ID           string
	TicketID     string
	SupervisorID string
	HandlerID    string
	AssignedAt   time.Time
}
