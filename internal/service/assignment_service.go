package service

import (
	"context"

	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/events"
	"github.com/tiback/helpdesk/internal/fanout"
	"github.com/tiback/helpdesk/internal/lifecycle"
	"github.com/tiback/helpdesk/internal/repository"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

// AssignmentService manages the assignment ledger. A ticket has at
// most one active assignment; assigning an already-assigned ticket
// deletes the previous active row before inserting the new one.
type AssignmentService struct {
	tickets     repository.TicketRepository
	assignments repository.AssignmentRepository
	actors      repository.ActorRepository
	audit       repository.AuditRepository
	tx          TxRunner
	publisher   fanout.Publisher
	locks       *TicketLocks
}

// AssignmentDependencies bundles collaborators for the assignment service.
type AssignmentDependencies struct {
	TicketRepo     repository.TicketRepository
	AssignmentRepo repository.AssignmentRepository
	ActorRepo      repository.ActorRepository
	AuditRepo      repository.AuditRepository
	Tx             TxRunner
	Publisher      fanout.Publisher
	// Locks must be the same instance across every service publishing
	// ticket-scoped events so fanout order matches commit order.
	Locks *TicketLocks
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	locks := deps.Locks
	if locks == nil {
		locks = NewTicketLocks()
	}
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		assignments: deps.AssignmentRepo,
		actors:      deps.ActorRepo,
		audit:       deps.AuditRepo,
		tx:          deps.Tx,
		publisher:   deps.Publisher,
		locks:       locks,
	}
}

// Assign dispatches a ticket to a handler. The ticket is forced into
// the Queued state, any previous active assignment is superseded, and
// the trail records whether this was a first assignment or a
// reassignment.
func (s *AssignmentService) Assign(ctx context.Context, actor domain.ActorRef, ticketID, handlerID string) (*domain.Assignment, error) {
	if actor.Role != domain.RoleSupervisor && actor.Role != domain.RoleAdministrator {
		return nil, apperrors.NewPermissionDenied("supervisor or administrator role required")
	}

	handler, err := s.actors.GetByID(ctx, handlerID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if handler.Role != domain.RoleHandler {
		return nil, apperrors.NewConstraintViolation("assignee must be a handler", map[string]any{"actor_id": handlerID})
	}

	s.locks.Lock(ticketID)
	defer s.locks.Unlock(ticketID)

	var (
		assignment *domain.Assignment
		reassigned bool
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ticket, err := s.lockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if !lifecycle.Assignable(ticket.State) {
			return apperrors.NewInvalidTransition(string(actor.Role), string(ticket.State), string(domain.StateQueued))
		}

		previous, err := s.activeAssignment(ctx, ticketID)
		if err != nil {
			return err
		}
		if previous != nil {
			reassigned = true
			if err := s.assignments.DeleteActiveByTicket(ctx, ticketID); err != nil {
				return storage(err)
			}
		}

		assignment = &domain.Assignment{
			TicketID:     ticketID,
			SupervisorID: actor.ID,
			HandlerID:    handlerID,
		}
		if err := s.assignments.Create(ctx, assignment); err != nil {
			return storage(err)
		}

		if ticket.State != domain.StateQueued {
			ticket.State = domain.StateQueued
			ticket.ClosedAt = nil
			if err := s.tickets.Update(ctx, ticket); err != nil {
				return storage(err)
			}
		}

		kind := domain.EntryAssigned
		if reassigned {
			kind = domain.EntryReassigned
		}
		entry := systemEntry(ticketID, kind, actor)
		entry.HandlerID = &handlerID
		return storage(s.audit.Append(ctx, entry))
	})
	if err != nil {
		return nil, finalize(err)
	}

	s.publish(ctx, events.New(events.KindTicketAssigned, ticketID, eventActor(actor), events.AssignedPayload{
		HandlerID:    handlerID,
		SupervisorID: actor.ID,
		Reassigned:   reassigned,
	}),
		fanout.TicketChannel(ticketID),
		fanout.RoleChannel(domain.RoleSupervisor),
		fanout.ActorChannel(domain.RoleHandler, handlerID),
	)
	return assignment, nil
}

// History returns the full assignment ledger for a ticket, oldest
// first.
func (s *AssignmentService) History(ctx context.Context, actor domain.ActorRef, ticketID string) ([]domain.Assignment, error) {
	if actor.Role != domain.RoleSupervisor && actor.Role != domain.RoleAdministrator {
		return nil, apperrors.NewPermissionDenied("supervisor or administrator role required")
	}
	history, err := s.assignments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

func (s *AssignmentService) lockTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetForUpdate(ctx, ticketID)
	if err != nil {
		return nil, mapNotFound(err, "ticket", ticketID)
	}
	return ticket, nil
}

func (s *AssignmentService) activeAssignment(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	active, err := s.assignments.ActiveByTicket(ctx, ticketID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, storage(err)
	}
	return active, nil
}

func (s *AssignmentService) publish(ctx context.Context, event events.Event, channels ...string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, channels, event)
}
