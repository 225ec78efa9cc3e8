package service

import (
	"context"
	"strings"

	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/events"
	"github.com/tiback/helpdesk/internal/fanout"
	"github.com/tiback/helpdesk/internal/repository"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

const previewLength = 120

// CommentService writes remarks and chat messages into the audit
// trail. Comments are visible to every participant; the two chat
// conversations each have their own membership.
type CommentService struct {
	tickets     repository.TicketRepository
	assignments repository.AssignmentRepository
	audit       repository.AuditRepository
	publisher   fanout.Publisher
}

// CommentDependencies bundles collaborators for the comment service.
type CommentDependencies struct {
	TicketRepo     repository.TicketRepository
	AssignmentRepo repository.AssignmentRepository
	AuditRepo      repository.AuditRepository
	Publisher      fanout.Publisher
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	return &CommentService{
		tickets:     deps.TicketRepo,
		assignments: deps.AssignmentRepo,
		audit:       deps.AuditRepo,
		publisher:   deps.Publisher,
	}
}

// AddComment appends a user remark to the trail.
func (s *CommentService) AddComment(ctx context.Context, actor domain.ActorRef, ticketID, body string) (*domain.AuditEntry, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewConstraintViolation("comment body required", nil)
	}
	ticket, active, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParticipant(actor, ticket, active); err != nil {
		return nil, err
	}

	entry := &domain.AuditEntry{
		TicketID: ticketID,
		Kind:     domain.EntryUserComment,
		Body:     body,
	}
	setAuthor(entry, actor)
	if err := s.audit.Append(ctx, entry); err != nil {
		return nil, apperrors.NewTransactionFailed(err)
	}

	s.publish(ctx, events.New(events.KindCommentAdded, ticketID, eventActor(actor), events.CommentPayload{
		EntryID:     entry.ID,
		BodyPreview: events.Preview(body, previewLength),
	}), s.participantChannels(ticket, active)...)
	return entry, nil
}

// ListComments returns the user remarks on a ticket, oldest first.
func (s *CommentService) ListComments(ctx context.Context, actor domain.ActorRef, ticketID string) ([]domain.AuditEntry, error) {
	ticket, active, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParticipant(actor, ticket, active); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByKind(ctx, ticketID, domain.EntryUserComment)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// SendChat appends a message to one of the two per-ticket
// conversations. Membership is checked against the conversation, not
// just the ticket.
func (s *CommentService) SendChat(ctx context.Context, actor domain.ActorRef, ticketID string, chat domain.ChatKind, body string) (*domain.AuditEntry, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewConstraintViolation("message body required", nil)
	}
	kind, ok := domain.EntryKindForChat(chat)
	if !ok {
		return nil, apperrors.NewConstraintViolation("unknown conversation", map[string]any{"conversation": chat})
	}

	ticket, active, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeChat(actor, ticket, active, chat); err != nil {
		return nil, err
	}

	entry := &domain.AuditEntry{
		TicketID: ticketID,
		Kind:     kind,
		Body:     body,
	}
	setAuthor(entry, actor)
	if err := s.audit.Append(ctx, entry); err != nil {
		return nil, apperrors.NewTransactionFailed(err)
	}

	s.publish(ctx, events.New(events.KindChatMessage, ticketID, eventActor(actor), events.ChatPayload{
		Conversation: chat,
		EntryID:      entry.ID,
		BodyPreview:  events.Preview(body, previewLength),
	}), fanout.ChatChannel(chat, ticketID))
	return entry, nil
}

// ListChat returns one conversation's messages, oldest first.
func (s *CommentService) ListChat(ctx context.Context, actor domain.ActorRef, ticketID string, chat domain.ChatKind) ([]domain.AuditEntry, error) {
	kind, ok := domain.EntryKindForChat(chat)
	if !ok {
		return nil, apperrors.NewConstraintViolation("unknown conversation", map[string]any{"conversation": chat})
	}
	ticket, active, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeChat(actor, ticket, active, chat); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByKind(ctx, ticketID, kind)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *CommentService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, *domain.Assignment, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, mapNotFound(err, "ticket", ticketID)
	}
	active, err := s.assignments.ActiveByTicket(ctx, ticketID)
	if err != nil {
		if isNoRows(err) {
			return ticket, nil, nil
		}
		return nil, nil, storage(err)
	}
	return ticket, active, nil
}

// authorizeParticipant admits anyone involved with the ticket: the
// owning client, the actively assigned handler, and dispatch roles.
func (s *CommentService) authorizeParticipant(actor domain.ActorRef, ticket *domain.Ticket, active *domain.Assignment) error {
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

// authorizeChat narrows participation to the conversation's members.
// Clients never see the supervisor-handler channel.
func (s *CommentService) authorizeChat(actor domain.ActorRef, ticket *domain.Ticket, active *domain.Assignment, chat domain.ChatKind) error {
	switch chat {
	case domain.ChatSupervisorHandler:
		switch actor.Role {
		case domain.RoleSupervisor, domain.RoleAdministrator:
			return nil
		case domain.RoleHandler:
			if active != nil && active.HandlerID == actor.ID {
				return nil
			}
			return apperrors.NewPermissionDenied("ticket not assigned to handler")
		default:
			return apperrors.NewPermissionDenied("conversation restricted to staff")
		}
	case domain.ChatHandlerClient:
		switch actor.Role {
		case domain.RoleClient:
			if ticket.ClientID == actor.ID {
				return nil
			}
			return apperrors.NewPermissionDenied("ticket belongs to another client")
		case domain.RoleHandler:
			if active != nil && active.HandlerID == actor.ID {
				return nil
			}
			return apperrors.NewPermissionDenied("ticket not assigned to handler")
		case domain.RoleSupervisor, domain.RoleAdministrator:
			return nil
		default:
			return apperrors.NewPermissionDenied("unknown role")
		}
	}
	return apperrors.NewConstraintViolation("unknown conversation", map[string]any{"conversation": chat})
}

func (s *CommentService) participantChannels(ticket *domain.Ticket, active *domain.Assignment) []string {
	channels := []string{
		fanout.TicketChannel(ticket.ID),
		fanout.ActorChannel(domain.RoleClient, ticket.ClientID),
	}
	if active != nil {
		channels = append(channels, fanout.ActorChannel(domain.RoleHandler, active.HandlerID))
	}
	return channels
}

func (s *CommentService) publish(ctx context.Context, event events.Event, channels ...string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, channels, event)
}
