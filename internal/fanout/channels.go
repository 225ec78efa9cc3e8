package fanout

import (
	"fmt"

	"github.com/tiback/helpdesk/internal/domain"
)

// Channel names are opaque strings derived deterministically from
// (kind, id). Connections join and leave them explicitly; the hub
// holds no notion of a logged-in user beyond what a connection joins.

// TicketChannel is the broadcast group for one ticket.
func TicketChannel(ticketID string) string {
	return "ticket:" + ticketID
}

// RoleChannel is the broadcast group for every actor of a role.
func RoleChannel(role domain.ActorRole) string {
	return "role:" + string(role)
}

// ActorChannel is a specific actor's personal channel.
func ActorChannel(role domain.ActorRole, actorID string) string {
	return fmt.Sprintf("actor:%s:%s", role, actorID)
}

// ChatChannel carries one of the two per-ticket conversations,
// distinct from the ticket's general channel.
func ChatChannel(kind domain.ChatKind, ticketID string) string {
	return fmt.Sprintf("chat:%s:%s", kind, ticketID)
}
