package dto

import (
	"time"

	"github.com/tiback/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// TransitionRequest payload. Rating fields are accepted only on the
// client's closing transition.
type TransitionRequest struct {
	To            domain.TicketState `json:"to"`
	Rating        *int               `json:"rating,omitempty"`
	RatingComment *string            `json:"rating_comment,omitempty"`
}

// RateRequest payload for post-closure rating.
type RateRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}

// AssignRequest payload.
type AssignRequest struct {
	HandlerID string `json:"handler_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID        string                `json:"id"`
	ClientID  string                `json:"client_id"`
	Title     string                `json:"title"`
	State     domain.TicketState    `json:"state"`
	Priority  domain.TicketPriority `json:"priority"`
	Rating    *int                  `json:"rating,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	ClosedAt  *time.Time            `json:"closed_at,omitempty"`
}

// TicketDetailResponse provides the full ticket with its trail.
type TicketDetailResponse struct {
	ID            string                `json:"id"`
	ClientID      string                `json:"client_id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	State         domain.TicketState    `json:"state"`
	Priority      domain.TicketPriority `json:"priority"`
	Rating        *int                  `json:"rating,omitempty"`
	RatingComment *string               `json:"rating_comment,omitempty"`
	RatedAt       *time.Time            `json:"rated_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	ClosedAt      *time.Time            `json:"closed_at,omitempty"`
	Assignment    *AssignmentResponse   `json:"assignment,omitempty"`
	Trail         []AuditEntryResponse  `json:"trail"`
}

// AssignmentResponse is one ledger row.
type AssignmentResponse struct {
	ID           string    `json:"id"`
	TicketID     string    `json:"ticket_id"`
	SupervisorID string    `json:"supervisor_id"`
	HandlerID    string    `json:"handler_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// AuditEntryResponse is one trail record.
type AuditEntryResponse struct {
	ID           string           `json:"id"`
	Kind         domain.EntryKind `json:"kind"`
	ClientID     *string          `json:"client_id,omitempty"`
	HandlerID    *string          `json:"handler_id,omitempty"`
	SupervisorID *string          `json:"supervisor_id,omitempty"`
	Body         string           `json:"body"`
	CreatedAt    time.Time        `json:"created_at"`
}

// CommentRequest payload for remarks and chat messages.
type CommentRequest struct {
	Body string `json:"body"`
}
