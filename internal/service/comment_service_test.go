package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/events"
	"github.com/tiback/helpdesk/internal/fanout"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

type commentFixture struct {
	publisher *capturingPublisher
	service   *CommentService
	appended  []*domain.AuditEntry
	entries   []domain.AuditEntry
}

func newCommentFixture(ticket *domain.Ticket, active *domain.Assignment) *commentFixture {
	f := &commentFixture{publisher: &capturingPublisher{}}
	tickets := &fakeTicketRepo{
		GetByIDFn: func(_ context.Context, id string) (*domain.Ticket, error) {
			if ticket == nil || ticket.ID != id {
				return nil, pgx.ErrNoRows
			}
			copied := *ticket
			return &copied, nil
		},
	}
	assignments := &fakeAssignmentRepo{
		ActiveByTicketFn: func(_ context.Context, _ string) (*domain.Assignment, error) {
			if active == nil {
				return nil, pgx.ErrNoRows
			}
			copied := *active
			return &copied, nil
		},
	}
	audit := &fakeAuditRepo{
		AppendFn: func(_ context.Context, entry *domain.AuditEntry) error {
			entry.ID = "e-1"
			f.appended = append(f.appended, entry)
			return nil
		},
		ListByKindFn: func(_ context.Context, _ string, kind domain.EntryKind) ([]domain.AuditEntry, error) {
			var matched []domain.AuditEntry
			for _, entry := range f.entries {
				if entry.Kind == kind {
					matched = append(matched, entry)
				}
			}
			return matched, nil
		},
	}
	f.service = NewCommentService(CommentDependencies{
		TicketRepo:     tickets,
		AssignmentRepo: assignments,
		AuditRepo:      audit,
		Publisher:      f.publisher,
	})
	return f
}

func openTicket() *domain.Ticket {
	return &domain.Ticket{ID: "t-1", ClientID: "c-1", State: domain.StateInProgress}
}

func activeFor(handlerID string) *domain.Assignment {
	return &domain.Assignment{ID: "a-1", TicketID: "t-1", HandlerID: handlerID, SupervisorID: "s-1"}
}

func TestAddCommentByOwnerClient(t *testing.T) {
	f := newCommentFixture(openTicket(), activeFor("h-1"))
	client := domain.ActorRef{ID: "c-1", Role: domain.RoleClient}

	entry, err := f.service.AddComment(context.Background(), client, "t-1", "  still broken  ")
	require.NoError(t, err)
	assert.Equal(t, domain.EntryUserComment, entry.Kind)
	assert.Equal(t, "still broken", entry.Body)
	require.NotNil(t, entry.ClientID)
	assert.Equal(t, "c-1", *entry.ClientID)

	published := f.publisher.byKind(events.KindCommentAdded)
	require.Len(t, published, 1)
	assert.Contains(t, published[0].Channels, fanout.TicketChannel("t-1"))
	assert.Contains(t, published[0].Channels, fanout.ActorChannel(domain.RoleClient, "c-1"))
	assert.Contains(t, published[0].Channels, fanout.ActorChannel(domain.RoleHandler, "h-1"))
}

func TestAddCommentEmptyBody(t *testing.T) {
	f := newCommentFixture(openTicket(), nil)
	client := domain.ActorRef{ID: "c-1", Role: domain.RoleClient}

	_, err := f.service.AddComment(context.Background(), client, "t-1", "   ")
	assert.True(t, apperrors.IsCode(err, "CONSTRAINT_VIOLATION"))
	assert.Empty(t, f.appended)
}

func TestAddCommentForeignClientDenied(t *testing.T) {
	f := newCommentFixture(openTicket(), nil)

	_, err := f.service.AddComment(context.Background(), domain.ActorRef{ID: "c-other", Role: domain.RoleClient}, "t-1", "hi")
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}

func TestStaffChatExcludesClient(t *testing.T) {
	f := newCommentFixture(openTicket(), activeFor("h-1"))
	client := domain.ActorRef{ID: "c-1", Role: domain.RoleClient}

	_, err := f.service.SendChat(context.Background(), client, "t-1", domain.ChatSupervisorHandler, "secret")
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	_, err = f.service.ListChat(context.Background(), client, "t-1", domain.ChatSupervisorHandler)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}

func TestStaffChatBetweenSupervisorAndHandler(t *testing.T) {
	f := newCommentFixture(openTicket(), activeFor("h-1"))

	entry, err := f.service.SendChat(context.Background(), domain.ActorRef{ID: "s-1", Role: domain.RoleSupervisor}, "t-1", domain.ChatSupervisorHandler, "please expedite")
	require.NoError(t, err)
	assert.Equal(t, domain.EntryChatSupervisorHandler, entry.Kind)
	require.NotNil(t, entry.SupervisorID)

	entry, err = f.service.SendChat(context.Background(), domain.ActorRef{ID: "h-1", Role: domain.RoleHandler}, "t-1", domain.ChatSupervisorHandler, "on it")
	require.NoError(t, err)
	require.NotNil(t, entry.HandlerID)

	published := f.publisher.byKind(events.KindChatMessage)
	require.Len(t, published, 2)
	assert.Equal(t, []string{fanout.ChatChannel(domain.ChatSupervisorHandler, "t-1")}, published[0].Channels)
}

func TestClientChatRequiresAssignedHandler(t *testing.T) {
	f := newCommentFixture(openTicket(), activeFor("h-other"))

	_, err := f.service.SendChat(context.Background(), domain.ActorRef{ID: "h-1", Role: domain.RoleHandler}, "t-1", domain.ChatHandlerClient, "hello")
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}

func TestSendChatUnknownConversation(t *testing.T) {
	f := newCommentFixture(openTicket(), nil)

	_, err := f.service.SendChat(context.Background(), domain.ActorRef{ID: "s-1", Role: domain.RoleSupervisor}, "t-1", "backchannel", "hi")
	assert.True(t, apperrors.IsCode(err, "CONSTRAINT_VIOLATION"))
}

func TestListCommentsFiltersKind(t *testing.T) {
	f := newCommentFixture(openTicket(), activeFor("h-1"))
	f.entries = []domain.AuditEntry{
		{ID: "e-1", Kind: domain.EntryUserComment, Body: "a"},
		{ID: "e-2", Kind: domain.EntryEscalated, Body: "escalated"},
		{ID: "e-3", Kind: domain.EntryUserComment, Body: "b"},
	}

	comments, err := f.service.ListComments(context.Background(), domain.ActorRef{ID: "c-1", Role: domain.RoleClient}, "t-1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "a", comments[0].Body)
	assert.Equal(t, "b", comments[1].Body)
}
