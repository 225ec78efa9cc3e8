package lifecycle

import (
	"github.com/tiback/helpdesk/internal/domain"
)

// transitionKey identifies one row of the role-gated transition table.
type transitionKey struct {
	Role domain.ActorRole
	From domain.TicketState
	To   domain.TicketState
}

// Decision describes the side effects a validated transition requires.
// The service applies them inside the same transaction as the state
// mutation itself.
type Decision struct {
	SetClosedAt       bool
	ClearClosedAt     bool
	ReleaseAssignment bool
	AllowRating       bool
	AuditKind         domain.EntryKind
}

// table is the full transition table for non-administrator roles. Any
// (role, from, to) combination absent here is invalid. The handler row
// Queued->Queued is deliberate: an assigned handler who never started
// can still hand the ticket back.
var table = map[transitionKey]Decision{
	// Client
	{domain.RoleClient, domain.StateSolved, domain.StateClosed}: {
		SetClosedAt: true,
		AllowRating: true,
		AuditKind:   domain.EntryClosedByClient,
	},
	{domain.RoleClient, domain.StateClosed, domain.StateReopened}: {
		ClearClosedAt: true,
		AuditKind:     domain.EntryReopenedByClient,
	},

	// Handler
	{domain.RoleHandler, domain.StateCreated, domain.StateInProgress}: {},
	{domain.RoleHandler, domain.StateQueued, domain.StateInProgress}:  {},
	{domain.RoleHandler, domain.StateInProgress, domain.StateSolved}: {
		AuditKind: domain.EntrySolved,
	},
	{domain.RoleHandler, domain.StateInProgress, domain.StateQueued}: {
		ReleaseAssignment: true,
		AuditKind:         domain.EntryEscalated,
	},
	{domain.RoleHandler, domain.StateQueued, domain.StateQueued}: {
		ReleaseAssignment: true,
		AuditKind:         domain.EntryEscalated,
	},

	// Supervisor
	{domain.RoleSupervisor, domain.StateCreated, domain.StateQueued}:  {},
	{domain.RoleSupervisor, domain.StateReopened, domain.StateQueued}: {},
	{domain.RoleSupervisor, domain.StateSolved, domain.StateClosedBySupervisor}: {
		SetClosedAt: true,
		AuditKind:   domain.EntryClosedBySupervisor,
	},
	{domain.RoleSupervisor, domain.StateReopened, domain.StateClosedBySupervisor}: {
		SetClosedAt: true,
		AuditKind:   domain.EntryClosedBySupervisor,
	},
	{domain.RoleSupervisor, domain.StateSolved, domain.StateReopened}: {
		ClearClosedAt: true,
		AuditKind:     domain.EntryReopenedBySupervisor,
	},
}

// states enumerated for validation and exhaustive testing.
var states = []domain.TicketState{
	domain.StateCreated,
	domain.StateQueued,
	domain.StateInProgress,
	domain.StateSolved,
	domain.StateClosed,
	domain.StateReopened,
	domain.StateClosedBySupervisor,
}

// States returns every lifecycle state.
func States() []domain.TicketState {
	out := make([]domain.TicketState, len(states))
	copy(out, states)
	return out
}

// ValidState reports whether the state belongs to the lifecycle.
func ValidState(state domain.TicketState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// Decide validates a requested transition and returns its side
// effects. The ticket is left untouched by callers when ok is false.
func Decide(role domain.ActorRole, from, to domain.TicketState) (Decision, bool) {
	if !ValidState(from) || !ValidState(to) {
		return Decision{}, false
	}
	if role == domain.RoleAdministrator {
		return adminDecision(to), true
	}
	decision, ok := table[transitionKey{Role: role, From: from, To: to}]
	return decision, ok
}

// adminDecision grants administrators any target state while keeping
// the closure timestamp consistent with it.
func adminDecision(to domain.TicketState) Decision {
	if domain.TerminalState(to) {
		return Decision{SetClosedAt: true}
	}
	return Decision{ClearClosedAt: true}
}

// assignableStates are the states in which a supervisor may create an
// assignment. Assignment is an action, not a transition; it forces the
// ticket to Queued.
var assignableStates = map[domain.TicketState]struct{}{
	domain.StateCreated:  {},
	domain.StateQueued:   {},
	domain.StateReopened: {},
	domain.StateSolved:   {},
}

// Assignable reports whether a ticket in the given state may receive a
// new assignment.
func Assignable(state domain.TicketState) bool {
	_, ok := assignableStates[state]
	return ok
}

// ReopenRequestable reports whether a client may file a reopen request
// (an audit-only action that leaves the state alone).
func ReopenRequestable(state domain.TicketState) bool {
	return state == domain.StateSolved
}
