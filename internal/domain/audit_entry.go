package domain

import "time"

// EntryKind types every audit entry. Human remarks and the two chat
// conversations share the table with system-generated markers; filters
// such as the handler backlog match on the kind, never on body text.
type EntryKind string

const (
	EntryUserComment          EntryKind = "USER_COMMENT"
	EntryChatSupervisorHandler EntryKind = "CHAT_SUPERVISOR_HANDLER"
	EntryChatHandlerClient    EntryKind = "CHAT_HANDLER_CLIENT"
	EntryAssigned             EntryKind = "ASSIGNED"
	EntryReassigned           EntryKind = "REASSIGNED"
	EntryEscalated            EntryKind = "ESCALATED"
	EntrySolved               EntryKind = "SOLVED"
	EntryClosedByClient       EntryKind = "CLOSED_BY_CLIENT"
	EntryClosedBySupervisor   EntryKind = "CLOSED_BY_SUPERVISOR"
	EntryReopenedByClient     EntryKind = "REOPENED_BY_CLIENT"
	EntryReopenedBySupervisor EntryKind = "REOPENED_BY_SUPERVISOR"
	EntryReopenRequested      EntryKind = "REOPEN_REQUESTED"
	EntryRated                EntryKind = "RATED"
)

// canonicalBodies are the fixed marker strings written for system
// entries. Downstream consumers display them verbatim; renaming one is
// a breaking change for anything parsing exported audit trails.
var canonicalBodies = map[EntryKind]string{
	EntryAssigned:             "assigned",
	EntryReassigned:           "reassigned",
	EntryEscalated:            "escalated",
	EntrySolved:               "solved",
	EntryClosedByClient:       "closed by client",
	EntryClosedBySupervisor:   "closed by supervisor",
	EntryReopenedByClient:     "reopened by client",
	EntryReopenedBySupervisor: "reopened by supervisor",
	EntryReopenRequested:      "reopen requested",
	EntryRated:                "rated",
}

// CanonicalBody returns the fixed body string for a system entry kind,
// or "" for user-authored kinds.
func CanonicalBody(kind EntryKind) string {
	return canonicalBodies[kind]
}

// AuditEntry is an immutable timestamped record attached to a ticket.
// Exactly one author column identifies who wrote a system entry.
// ASSIGNED and REASSIGNED entries additionally set HandlerID to the
// assignment's recipient; that column is not authorial there — the
// dispatching supervisor or administrator remains the author.
// User-authored entries carry whichever participants the conversation
// involves.
type AuditEntry struct {
	ID           string
	TicketID     string
	Kind         EntryKind
	ClientID     *string
	HandlerID    *string
	SupervisorID *string
	Body         string
	CreatedAt    time.Time
}

// ChatKind selects one of the two per-ticket conversations.
type ChatKind string

const (
	ChatSupervisorHandler ChatKind = "supervisor-handler"
	ChatHandlerClient     ChatKind = "handler-client"
)

// EntryKindForChat maps a conversation kind to its audit entry kind.
func EntryKindForChat(kind ChatKind) (EntryKind, bool) {
	switch kind {
	case ChatSupervisorHandler:
		return EntryChatSupervisorHandler, true
	case ChatHandlerClient:
		return EntryChatHandlerClient, true
	}
	return "", false
}
