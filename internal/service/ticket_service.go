package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/events"
	"github.com/tiback/helpdesk/internal/fanout"
	"github.com/tiback/helpdesk/internal/lifecycle"
	"github.com/tiback/helpdesk/internal/repository"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

// TxRunner executes a function inside one storage transaction.
// persistence.TxManager satisfies it; tests substitute a pass-through.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TicketService drives the ticket lifecycle: it validates transitions
// against the role-gated table, applies their side effects atomically
// and publishes the resulting events after commit.
type TicketService struct {
	tickets     repository.TicketRepository
	assignments repository.AssignmentRepository
	audit       repository.AuditRepository
	tx          TxRunner
	publisher   fanout.Publisher
	locks       *TicketLocks
}

// TicketDependencies bundles collaborators for the ticket service.
// Locks must be the same instance across every service publishing
// ticket-scoped events.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	AssignmentRepo repository.AssignmentRepository
	AuditRepo      repository.AuditRepository
	Tx             TxRunner
	Publisher      fanout.Publisher
	Locks          *TicketLocks
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Locks == nil {
		deps.Locks = NewTicketLocks()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		assignments: deps.AssignmentRepo,
		audit:       deps.AuditRepo,
		tx:          deps.Tx,
		publisher:   deps.Publisher,
		locks:       deps.Locks,
	}
}

// TicketCreateInput describes ticket submission payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TransitionInput describes a requested state change. Rating may only
// accompany the client's Solved->Closed transition.
type TransitionInput struct {
	To            domain.TicketState
	Rating        *int
	RatingComment *string
}

// TicketDetail is a ticket with its ledger and trail.
type TicketDetail struct {
	Ticket           *domain.Ticket
	ActiveAssignment *domain.Assignment
	Trail            []domain.AuditEntry
}

// Submit creates a ticket in the Created state for a client.
func (s *TicketService) Submit(ctx context.Context, actor domain.ActorRef, input TicketCreateInput) (*domain.Ticket, error) {
	if actor.Role != domain.RoleClient {
		return nil, apperrors.NewPermissionDenied("only clients submit tickets")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewConstraintViolation("title and description required", nil)
	}

	ticket := &domain.Ticket{
		ClientID:    actor.ID,
		Title:       title,
		Description: description,
		State:       domain.StateCreated,
		Priority:    input.Priority,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewTransactionFailed(err)
	}

	s.publish(ctx, events.New(events.KindTicketCreated, ticket.ID, eventActor(actor), events.TicketCreatedPayload{
		Title:    ticket.Title,
		Priority: ticket.Priority,
	}),
		fanout.TicketChannel(ticket.ID),
		fanout.RoleChannel(domain.RoleSupervisor),
		fanout.ActorChannel(domain.RoleClient, actor.ID),
	)
	return ticket, nil
}

// Transition validates and applies a state change for the actor. The
// state mutation, ledger change and audit append commit atomically;
// fanout delivery happens afterwards and never fails the call.
func (s *TicketService) Transition(ctx context.Context, actor domain.ActorRef, ticketID string, input TransitionInput) (*domain.Ticket, error) {
	if !lifecycle.ValidState(input.To) {
		return nil, apperrors.NewConstraintViolation("unknown target state", map[string]any{"to": input.To})
	}
	if input.Rating != nil && !domain.ValidRating(*input.Rating) {
		return nil, apperrors.NewConstraintViolation("rating must be between 1 and 5", map[string]any{"rating": *input.Rating})
	}

	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	var (
		ticket        *domain.Ticket
		from          domain.TicketState
		activeHandler string
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.lockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		from = ticket.State

		active, err := s.activeAssignment(ctx, ticketID)
		if err != nil {
			return err
		}
		if active != nil {
			activeHandler = active.HandlerID
		}
		if err := s.authorizeTransition(actor, ticket, active); err != nil {
			return err
		}

		decision, ok := lifecycle.Decide(actor.Role, ticket.State, input.To)
		if !ok {
			return apperrors.NewInvalidTransition(string(actor.Role), string(ticket.State), string(input.To))
		}
		if input.Rating != nil && !decision.AllowRating {
			return apperrors.NewConstraintViolation("rating not accepted on this transition", nil)
		}

		applyDecision(ticket, input, decision)
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return storage(err)
		}
		if decision.ReleaseAssignment {
			if err := s.assignments.DeleteActive(ctx, ticketID, actor.ID); err != nil {
				return storage(err)
			}
		}
		if decision.AuditKind != "" {
			if err := s.audit.Append(ctx, systemEntry(ticketID, decision.AuditKind, actor)); err != nil {
				return storage(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, finalize(err)
	}

	channels := []string{
		fanout.TicketChannel(ticket.ID),
		fanout.RoleChannel(domain.RoleSupervisor),
		fanout.ActorChannel(domain.RoleClient, ticket.ClientID),
	}
	if activeHandler != "" {
		channels = append(channels, fanout.ActorChannel(domain.RoleHandler, activeHandler))
	}
	s.publish(ctx, events.New(events.KindTicketTransitioned, ticket.ID, eventActor(actor), events.TransitionPayload{
		From: from,
		To:   ticket.State,
	}), channels...)
	return ticket, nil
}

// RequestReopen records a client's wish to reopen a Solved ticket
// without changing its state.
func (s *TicketService) RequestReopen(ctx context.Context, actor domain.ActorRef, ticketID string) error {
	if actor.Role != domain.RoleClient {
		return apperrors.NewPermissionDenied("only clients request reopening")
	}
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	var ticket *domain.Ticket
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.lockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.ClientID != actor.ID {
			return apperrors.NewPermissionDenied("ticket belongs to another client")
		}
		if !lifecycle.ReopenRequestable(ticket.State) {
			return apperrors.NewInvalidTransition(string(actor.Role), string(ticket.State), string(ticket.State))
		}
		return storage(s.audit.Append(ctx, systemEntry(ticketID, domain.EntryReopenRequested, actor)))
	})
	if err != nil {
		return finalize(err)
	}

	s.publish(ctx, events.New(events.KindReopenRequested, ticketID, eventActor(actor), nil),
		fanout.TicketChannel(ticketID),
		fanout.RoleChannel(domain.RoleSupervisor),
	)
	return nil
}

// Rate records post-closure client satisfaction. Ratings survive
// subsequent reopen/re-close cycles unless overwritten.
func (s *TicketService) Rate(ctx context.Context, actor domain.ActorRef, ticketID string, rating int, comment *string) (*domain.Ticket, error) {
	if actor.Role != domain.RoleClient {
		return nil, apperrors.NewPermissionDenied("only clients rate tickets")
	}
	if !domain.ValidRating(rating) {
		return nil, apperrors.NewConstraintViolation("rating must be between 1 and 5", map[string]any{"rating": rating})
	}

	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	var ticket *domain.Ticket
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.lockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.ClientID != actor.ID {
			return apperrors.NewPermissionDenied("ticket belongs to another client")
		}
		if !domain.TerminalState(ticket.State) {
			return apperrors.NewConstraintViolation("ticket must be closed before rating", map[string]any{"state": ticket.State})
		}
		now := nowFunc()
		ticket.Rating = &rating
		ticket.RatingComment = comment
		ticket.RatedAt = &now
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return storage(err)
		}
		return storage(s.audit.Append(ctx, systemEntry(ticketID, domain.EntryRated, actor)))
	})
	if err != nil {
		return nil, finalize(err)
	}

	s.publish(ctx, events.New(events.KindTicketRated, ticketID, eventActor(actor), events.RatedPayload{Rating: rating}),
		fanout.TicketChannel(ticketID),
		fanout.RoleChannel(domain.RoleSupervisor),
		fanout.ActorChannel(domain.RoleClient, actor.ID),
	)
	return ticket, nil
}

// Purge removes a ticket and, by cascade, its assignments and trail.
// Administrative use only.
func (s *TicketService) Purge(ctx context.Context, actor domain.ActorRef, ticketID string) error {
	if actor.Role != domain.RoleAdministrator {
		return apperrors.NewPermissionDenied("only administrators purge tickets")
	}
	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.NewTransactionFailed(err)
	}
	s.publish(ctx, events.New(events.KindTicketPurged, ticketID, eventActor(actor), nil),
		fanout.TicketChannel(ticketID),
		fanout.RoleChannel(domain.RoleAdministrator),
	)
	return nil
}

// Get fetches a ticket with its active assignment and audit trail,
// enforcing the actor's visibility.
func (s *TicketService) Get(ctx context.Context, actor domain.ActorRef, ticketID string) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	active, err := s.activeAssignment(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.authorizeRead(actor, ticket, active); err != nil {
		return nil, err
	}
	trail, err := s.audit.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if actor.Role == domain.RoleClient {
		trail = withoutKind(trail, domain.EntryChatSupervisorHandler)
	}
	return &TicketDetail{Ticket: ticket, ActiveAssignment: active, Trail: trail}, nil
}

// ListForClient returns the client's own tickets.
func (s *TicketService) ListForClient(ctx context.Context, actor domain.ActorRef, limit, offset int) ([]domain.Ticket, error) {
	if actor.Role != domain.RoleClient {
		return nil, apperrors.NewPermissionDenied("client role required")
	}
	return s.mapList(s.tickets.List(ctx, repository.TicketFilter{
		ClientID: &actor.ID,
		Limit:    limit,
		Offset:   offset,
	}))
}

// Backlog returns the handler's open backlog, recomputed on every
// call: actively assigned, not escalated since, not terminal.
func (s *TicketService) Backlog(ctx context.Context, actor domain.ActorRef) ([]domain.Ticket, error) {
	if actor.Role != domain.RoleHandler {
		return nil, apperrors.NewPermissionDenied("handler role required")
	}
	return s.mapList(s.tickets.ListBacklog(ctx, actor.ID))
}

// List returns tickets across clients for dispatch-capable roles.
func (s *TicketService) List(ctx context.Context, actor domain.ActorRef, states []domain.TicketState, limit, offset int) ([]domain.Ticket, error) {
	if actor.Role != domain.RoleSupervisor && actor.Role != domain.RoleAdministrator {
		return nil, apperrors.NewPermissionDenied("supervisor or administrator role required")
	}
	return s.mapList(s.tickets.List(ctx, repository.TicketFilter{
		States: states,
		Limit:  limit,
		Offset: offset,
	}))
}

func (s *TicketService) mapList(tickets []domain.Ticket, err error) ([]domain.Ticket, error) {
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

func (s *TicketService) lockTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetForUpdate(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, storage(err)
	}
	return ticket, nil
}

func (s *TicketService) activeAssignment(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	active, err := s.assignments.ActiveByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storage(err)
	}
	return active, nil
}

func (s *TicketService) authorizeTransition(actor domain.ActorRef, ticket *domain.Ticket, active *domain.Assignment) error {
	switch actor.Role {
	case domain.RoleClient:
		if ticket.ClientID != actor.ID {
			return apperrors.NewPermissionDenied("ticket belongs to another client")
		}
	case domain.RoleHandler:
		if active == nil || active.HandlerID != actor.ID {
			return apperrors.NewPermissionDenied("ticket not assigned to handler")
		}
	case domain.RoleSupervisor, domain.RoleAdministrator:
		// dispatch-capable roles act on any ticket
	default:
		return apperrors.NewPermissionDenied("unknown role")
	}
	return nil
}

func (s *TicketService) authorizeRead(actor domain.ActorRef, ticket *domain.Ticket, active *domain.Assignment) error {
	switch actor.Role {
	case domain.RoleClient:
		if ticket.ClientID != actor.ID {
			return apperrors.NewPermissionDenied("ticket belongs to another client")
		}
	case domain.RoleHandler:
		if active == nil || active.HandlerID != actor.ID {
			return apperrors.NewPermissionDenied("ticket not assigned to handler")
		}
	case domain.RoleSupervisor, domain.RoleAdministrator:
	default:
		return apperrors.NewPermissionDenied("unknown role")
	}
	return nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event, channels ...string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, channels, event)
}

// applyDecision mutates the locked ticket per the machine's decision.
func applyDecision(ticket *domain.Ticket, input TransitionInput, decision lifecycle.Decision) {
	if decision.SetClosedAt {
		now := nowFunc()
		ticket.ClosedAt = &now
	}
	if decision.ClearClosedAt {
		ticket.ClosedAt = nil
	}
	if input.Rating != nil && decision.AllowRating {
		now := nowFunc()
		ticket.Rating = input.Rating
		ticket.RatingComment = input.RatingComment
		ticket.RatedAt = &now
	}
	ticket.State = input.To
}

func withoutKind(entries []domain.AuditEntry, kind domain.EntryKind) []domain.AuditEntry {
	filtered := make([]domain.AuditEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Kind == kind {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}
