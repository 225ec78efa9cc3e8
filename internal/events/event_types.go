package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tiback/helpdesk/internal/domain"
)

// Kind enumerates supported event identifiers.
type Kind string

const (
	KindTicketCreated      Kind = "ticket_created"
	KindTicketTransitioned Kind = "ticket_transitioned"
	KindTicketAssigned     Kind = "ticket_assigned"
	KindCommentAdded       Kind = "comment_added"
	KindChatMessage        Kind = "chat_message"
	KindTicketRated        Kind = "ticket_rated"
	KindReopenRequested    Kind = "reopen_requested"
	KindTicketPurged       Kind = "ticket_purged"
)

// Actor identifies who triggered an event.
type Actor struct {
	ID   string           `json:"id"`
	Role domain.ActorRole `json:"role"`
}

// Event is the envelope delivered to fanout subscribers. Subscribers
// present in several matching channels may receive it more than once;
// they deduplicate by ID when exactly-once matters downstream.
type Event struct {
	ID        string      `json:"id"`
	Kind      Kind        `json:"kind"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New builds an event with a fresh id and timestamp.
func New(kind Kind, ticketID string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
}

// TransitionPayload payload.
type TransitionPayload struct {
	From domain.TicketState `json:"from"`
	To   domain.TicketState `json:"to"`
}

// AssignedPayload payload.
type AssignedPayload struct {
	HandlerID    string `json:"handler_id"`
	SupervisorID string `json:"supervisor_id"`
	Reassigned   bool   `json:"reassigned"`
}

// CommentPayload payload.
type CommentPayload struct {
	EntryID     string `json:"entry_id"`
	BodyPreview string `json:"body_preview"`
}

// ChatPayload payload.
type ChatPayload struct {
	Conversation domain.ChatKind `json:"conversation"`
	EntryID      string          `json:"entry_id"`
	BodyPreview  string          `json:"body_preview"`
}

// RatedPayload payload.
type RatedPayload struct {
	Rating int `json:"rating"`
}

// Preview truncates a body to at most max runes for inclusion in
// event payloads. Truncation never splits a multi-byte rune.
func Preview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
