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

type assignFixture struct {
	publisher *capturingPublisher
	service   *AssignmentService

	ticket     *domain.Ticket
	active     *domain.Assignment
	appended   []*domain.AuditEntry
	superseded bool
}

func newAssignFixture(ticket *domain.Ticket, active *domain.Assignment) *assignFixture {
	f := &assignFixture{
		publisher: &capturingPublisher{},
		ticket:    ticket,
		active:    active,
	}
	tickets := &fakeTicketRepo{
		GetForUpdateFn: func(_ context.Context, id string) (*domain.Ticket, error) {
			if f.ticket == nil || f.ticket.ID != id {
				return nil, pgx.ErrNoRows
			}
			copied := *f.ticket
			return &copied, nil
		},
		UpdateFn: func(_ context.Context, ticket *domain.Ticket) error {
			copied := *ticket
			f.ticket = &copied
			return nil
		},
	}
	assignments := &fakeAssignmentRepo{
		ActiveByTicketFn: func(_ context.Context, _ string) (*domain.Assignment, error) {
			if f.active == nil {
				return nil, pgx.ErrNoRows
			}
			copied := *f.active
			return &copied, nil
		},
		DeleteActiveByTicketFn: func(_ context.Context, _ string) error {
			f.active = nil
			f.superseded = true
			return nil
		},
		CreateFn: func(_ context.Context, assignment *domain.Assignment) error {
			assignment.ID = "a-new"
			assignment.AssignedAt = nowFunc()
			copied := *assignment
			f.active = &copied
			return nil
		},
		ListByTicketFn: func(_ context.Context, _ string) ([]domain.Assignment, error) {
			if f.active == nil {
				return nil, nil
			}
			return []domain.Assignment{*f.active}, nil
		},
	}
	actors := &fakeActorRepo{
		GetByIDFn: func(_ context.Context, id string) (*domain.Actor, error) {
			switch id {
			case "h-1", "h-2":
				return &domain.Actor{ID: id, Role: domain.RoleHandler}, nil
			case "c-1":
				return &domain.Actor{ID: id, Role: domain.RoleClient}, nil
			}
			return nil, pgx.ErrNoRows
		},
	}
	audit := &fakeAuditRepo{
		AppendFn: func(_ context.Context, entry *domain.AuditEntry) error {
			entry.ID = "e-1"
			entry.CreatedAt = nowFunc()
			f.appended = append(f.appended, entry)
			return nil
		},
	}
	f.service = NewAssignmentService(AssignmentDependencies{
		TicketRepo:     tickets,
		AssignmentRepo: assignments,
		ActorRepo:      actors,
		AuditRepo:      audit,
		Tx:             passthroughTx{},
		Publisher:      f.publisher,
	})
	return f
}

func TestAssignForcesQueued(t *testing.T) {
	fixedNow(t)
	ticket := &domain.Ticket{ID: "t-1", ClientID: "c-1", State: domain.StateCreated}
	f := newAssignFixture(ticket, nil)
	supervisor := domain.ActorRef{ID: "s-1", Role: domain.RoleSupervisor}

	assignment, err := f.service.Assign(context.Background(), supervisor, "t-1", "h-1")
	require.NoError(t, err)
	assert.Equal(t, "h-1", assignment.HandlerID)
	assert.Equal(t, "s-1", assignment.SupervisorID)
	assert.Equal(t, domain.StateQueued, f.ticket.State)
	assert.False(t, f.superseded)

	require.Len(t, f.appended, 1)
	assert.Equal(t, domain.EntryAssigned, f.appended[0].Kind)
	// supervisor is the author; HandlerID only names the recipient
	require.NotNil(t, f.appended[0].SupervisorID)
	assert.Equal(t, "s-1", *f.appended[0].SupervisorID)
	require.NotNil(t, f.appended[0].HandlerID)
	assert.Equal(t, "h-1", *f.appended[0].HandlerID)
	assert.Nil(t, f.appended[0].ClientID)

	published := f.publisher.byKind(events.KindTicketAssigned)
	require.Len(t, published, 1)
	assert.Contains(t, published[0].Channels, fanout.ActorChannel(domain.RoleHandler, "h-1"))
	payload, ok := published[0].Event.Payload.(events.AssignedPayload)
	require.True(t, ok)
	assert.False(t, payload.Reassigned)
}

func TestAssignFromSolvedClearsClosure(t *testing.T) {
	fixedNow(t)
	closed := nowFunc()
	ticket := &domain.Ticket{ID: "t-1", ClientID: "c-1", State: domain.StateSolved, ClosedAt: &closed}
	f := newAssignFixture(ticket, nil)
	supervisor := domain.ActorRef{ID: "s-1", Role: domain.RoleSupervisor}

	_, err := f.service.Assign(context.Background(), supervisor, "t-1", "h-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateQueued, f.ticket.State)
	assert.Nil(t, f.ticket.ClosedAt)
}

func TestReassignSupersedesActive(t *testing.T) {
	fixedNow(t)
	ticket := &domain.Ticket{ID: "t-1", ClientID: "c-1", State: domain.StateQueued}
	active := &domain.Assignment{ID: "a-1", TicketID: "t-1", HandlerID: "h-1", SupervisorID: "s-1"}
	f := newAssignFixture(ticket, active)
	supervisor := domain.ActorRef{ID: "s-1", Role: domain.RoleSupervisor}

	assignment, err := f.service.Assign(context.Background(), supervisor, "t-1", "h-2")
	require.NoError(t, err)
	assert.True(t, f.superseded)
	assert.Equal(t, "h-2", assignment.HandlerID)

	require.Len(t, f.appended, 1)
	assert.Equal(t, domain.EntryReassigned, f.appended[0].Kind)

	published := f.publisher.byKind(events.KindTicketAssigned)
	require.Len(t, published, 1)
	payload := published[0].Event.Payload.(events.AssignedPayload)
	assert.True(t, payload.Reassigned)
}

func TestAssignRejectsNonAssignableState(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-1", ClientID: "c-1", State: domain.StateInProgress}
	f := newAssignFixture(ticket, nil)
	supervisor := domain.ActorRef{ID: "s-1", Role: domain.RoleSupervisor}

	_, err := f.service.Assign(context.Background(), supervisor, "t-1", "h-1")
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestAssignRejectsNonHandlerAssignee(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-1", ClientID: "c-1", State: domain.StateCreated}
	f := newAssignFixture(ticket, nil)
	supervisor := domain.ActorRef{ID: "s-1", Role: domain.RoleSupervisor}

	_, err := f.service.Assign(context.Background(), supervisor, "t-1", "c-1")
	assert.True(t, apperrors.IsCode(err, "CONSTRAINT_VIOLATION"))

	_, err = f.service.Assign(context.Background(), supervisor, "t-1", "ghost")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestAssignRequiresDispatchRole(t *testing.T) {
	f := newAssignFixture(&domain.Ticket{ID: "t-1", State: domain.StateCreated}, nil)

	_, err := f.service.Assign(context.Background(), domain.ActorRef{ID: "h-1", Role: domain.RoleHandler}, "t-1", "h-2")
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}

func TestAssignmentHistoryRestricted(t *testing.T) {
	active := &domain.Assignment{ID: "a-1", TicketID: "t-1", HandlerID: "h-1", SupervisorID: "s-1"}
	f := newAssignFixture(&domain.Ticket{ID: "t-1", State: domain.StateQueued}, active)

	_, err := f.service.History(context.Background(), domain.ActorRef{ID: "c-1", Role: domain.RoleClient}, "t-1")
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	history, err := f.service.History(context.Background(), domain.ActorRef{ID: "s-1", Role: domain.RoleSupervisor}, "t-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
