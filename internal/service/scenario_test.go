package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/repository"
)

// memoryStore backs the full repository surface with maps so a whole
// lifecycle can run through the real services end to end.
type memoryStore struct {
	seq         int
	clock       time.Time
	tickets     map[string]*domain.Ticket
	assignments []*domain.Assignment
	entries     []*domain.AuditEntry
	actors      map[string]*domain.Actor
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		clock:   time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
		tickets: map[string]*domain.Ticket{},
		actors:  map[string]*domain.Actor{},
	}
}

func (m *memoryStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memoryStore) addActor(role domain.ActorRole) domain.ActorRef {
	actor := &domain.Actor{ID: m.nextID("actor"), Role: role}
	m.actors[actor.ID] = actor
	return domain.ActorRef{ID: actor.ID, Role: role}
}

func (m *memoryStore) ticketRepo() repository.TicketRepository {
	return &fakeTicketRepo{
		CreateFn: func(_ context.Context, ticket *domain.Ticket) error {
			ticket.ID = m.nextID("ticket")
			ticket.CreatedAt = m.tick()
			ticket.UpdatedAt = ticket.CreatedAt
			copied := *ticket
			m.tickets[ticket.ID] = &copied
			return nil
		},
		GetByIDFn:      m.getTicket,
		GetForUpdateFn: m.getTicket,
		UpdateFn: func(_ context.Context, ticket *domain.Ticket) error {
			if _, ok := m.tickets[ticket.ID]; !ok {
				return pgx.ErrNoRows
			}
			ticket.UpdatedAt = m.tick()
			copied := *ticket
			m.tickets[ticket.ID] = &copied
			return nil
		},
		DeleteFn: func(_ context.Context, id string) error {
			if _, ok := m.tickets[id]; !ok {
				return pgx.ErrNoRows
			}
			delete(m.tickets, id)
			return nil
		},
		ListFn: func(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
			var result []domain.Ticket
			for _, ticket := range m.tickets {
				if filter.ClientID != nil && ticket.ClientID != *filter.ClientID {
					continue
				}
				result = append(result, *ticket)
			}
			sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
			return result, nil
		},
		ListBacklogFn: func(_ context.Context, handlerID string) ([]domain.Ticket, error) {
			var result []domain.Ticket
			for _, ticket := range m.tickets {
				active := m.active(ticket.ID)
				if active == nil || active.HandlerID != handlerID {
					continue
				}
				if domain.TerminalState(ticket.State) {
					continue
				}
				escalatedSince := false
				for _, entry := range m.entries {
					if entry.TicketID == ticket.ID &&
						entry.Kind == domain.EntryEscalated &&
						entry.HandlerID != nil && *entry.HandlerID == handlerID &&
						entry.CreatedAt.After(active.AssignedAt) {
						escalatedSince = true
					}
				}
				if escalatedSince {
					continue
				}
				result = append(result, *ticket)
			}
			return result, nil
		},
	}
}

func (m *memoryStore) getTicket(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (m *memoryStore) active(ticketID string) *domain.Assignment {
	var latest *domain.Assignment
	for _, assignment := range m.assignments {
		if assignment.TicketID != ticketID {
			continue
		}
		if latest == nil || assignment.AssignedAt.After(latest.AssignedAt) {
			latest = assignment
		}
	}
	return latest
}

func (m *memoryStore) removeAssignment(id string) {
	kept := m.assignments[:0]
	for _, assignment := range m.assignments {
		if assignment.ID != id {
			kept = append(kept, assignment)
		}
	}
	m.assignments = kept
}

func (m *memoryStore) assignmentRepo() repository.AssignmentRepository {
	return &fakeAssignmentRepo{
		CreateFn: func(_ context.Context, assignment *domain.Assignment) error {
			assignment.ID = m.nextID("assignment")
			assignment.AssignedAt = m.tick()
			copied := *assignment
			m.assignments = append(m.assignments, &copied)
			return nil
		},
		ActiveByTicketFn: func(_ context.Context, ticketID string) (*domain.Assignment, error) {
			if active := m.active(ticketID); active != nil {
				copied := *active
				return &copied, nil
			}
			return nil, pgx.ErrNoRows
		},
		DeleteActiveFn: func(_ context.Context, ticketID, handlerID string) error {
			active := m.active(ticketID)
			if active == nil || active.HandlerID != handlerID {
				return pgx.ErrNoRows
			}
			m.removeAssignment(active.ID)
			return nil
		},
		DeleteActiveByTicketFn: func(_ context.Context, ticketID string) error {
			if active := m.active(ticketID); active != nil {
				m.removeAssignment(active.ID)
			}
			return nil
		},
		ListByTicketFn: func(_ context.Context, ticketID string) ([]domain.Assignment, error) {
			var result []domain.Assignment
			for _, assignment := range m.assignments {
				if assignment.TicketID == ticketID {
					result = append(result, *assignment)
				}
			}
			return result, nil
		},
	}
}

func (m *memoryStore) auditRepo() repository.AuditRepository {
	return &fakeAuditRepo{
		AppendFn: func(_ context.Context, entry *domain.AuditEntry) error {
			entry.ID = m.nextID("entry")
			entry.CreatedAt = m.tick()
			copied := *entry
			m.entries = append(m.entries, &copied)
			return nil
		},
		ListByTicketFn: func(_ context.Context, ticketID string) ([]domain.AuditEntry, error) {
			var result []domain.AuditEntry
			for _, entry := range m.entries {
				if entry.TicketID == ticketID {
					result = append(result, *entry)
				}
			}
			return result, nil
		},
		ListByKindFn: func(_ context.Context, ticketID string, kind domain.EntryKind) ([]domain.AuditEntry, error) {
			var result []domain.AuditEntry
			for _, entry := range m.entries {
				if entry.TicketID == ticketID && entry.Kind == kind {
					result = append(result, *entry)
				}
			}
			return result, nil
		},
	}
}

func (m *memoryStore) actorRepo() repository.ActorRepository {
	return &fakeActorRepo{
		GetByIDFn: func(_ context.Context, id string) (*domain.Actor, error) {
			actor, ok := m.actors[id]
			if !ok {
				return nil, pgx.ErrNoRows
			}
			return actor, nil
		},
	}
}

// TestFullLifecycleScenario drives a ticket through submission,
// dispatch, escalation, reassignment, solving, closing with a rating,
// reopening and a final supervisor closure, checking ledger and trail
// along the way.
func TestFullLifecycleScenario(t *testing.T) {
	store := newMemoryStore()
	publisher := &capturingPublisher{}

	ticketSvc := NewTicketService(TicketDependencies{
		TicketRepo:     store.ticketRepo(),
		AssignmentRepo: store.assignmentRepo(),
		AuditRepo:      store.auditRepo(),
		Tx:             passthroughTx{},
		Publisher:      publisher,
	})
	assignSvc := NewAssignmentService(AssignmentDependencies{
		TicketRepo:     store.ticketRepo(),
		AssignmentRepo: store.assignmentRepo(),
		ActorRepo:      store.actorRepo(),
		AuditRepo:      store.auditRepo(),
		Tx:             passthroughTx{},
		Publisher:      publisher,
	})

	ctx := context.Background()
	client := store.addActor(domain.RoleClient)
	handlerA := store.addActor(domain.RoleHandler)
	handlerB := store.addActor(domain.RoleHandler)
	supervisor := store.addActor(domain.RoleSupervisor)

	ticket, err := ticketSvc.Submit(ctx, client, TicketCreateInput{
		Title:       "vpn drops hourly",
		Description: "connection resets every hour on the hour",
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)

	// dispatch to handler A
	_, err = assignSvc.Assign(ctx, supervisor, ticket.ID, handlerA.ID)
	require.NoError(t, err)

	backlog, err := ticketSvc.Backlog(ctx, handlerA)
	require.NoError(t, err)
	require.Len(t, backlog, 1)

	// handler A starts, then escalates back to the queue
	_, err = ticketSvc.Transition(ctx, handlerA, ticket.ID, TransitionInput{To: domain.StateInProgress})
	require.NoError(t, err)
	_, err = ticketSvc.Transition(ctx, handlerA, ticket.ID, TransitionInput{To: domain.StateQueued})
	require.NoError(t, err)

	backlog, err = ticketSvc.Backlog(ctx, handlerA)
	require.NoError(t, err)
	assert.Empty(t, backlog, "escalated ticket leaves the handler's backlog")

	// escalated handler can no longer act
	_, err = ticketSvc.Transition(ctx, handlerA, ticket.ID, TransitionInput{To: domain.StateInProgress})
	require.Error(t, err)

	// reassign to handler B, who solves it
	_, err = assignSvc.Assign(ctx, supervisor, ticket.ID, handlerB.ID)
	require.NoError(t, err)
	_, err = ticketSvc.Transition(ctx, handlerB, ticket.ID, TransitionInput{To: domain.StateInProgress})
	require.NoError(t, err)
	_, err = ticketSvc.Transition(ctx, handlerB, ticket.ID, TransitionInput{To: domain.StateSolved})
	require.NoError(t, err)

	// client closes with a rating
	rating := 5
	closed, err := ticketSvc.Transition(ctx, client, ticket.ID, TransitionInput{
		To:     domain.StateClosed,
		Rating: &rating,
	})
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.Rating)

	// reopen; the rating stays
	reopened, err := ticketSvc.Transition(ctx, client, ticket.ID, TransitionInput{To: domain.StateReopened})
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)
	require.NotNil(t, reopened.Rating)
	assert.Equal(t, 5, *reopened.Rating)

	// supervisor closes for good
	final, err := ticketSvc.Transition(ctx, supervisor, ticket.ID, TransitionInput{To: domain.StateClosedBySupervisor})
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosedBySupervisor, final.State)
	require.NotNil(t, final.ClosedAt)

	// the trail tells the whole story in order
	var kinds []domain.EntryKind
	for _, entry := range store.entries {
		kinds = append(kinds, entry.Kind)
	}
	assert.Equal(t, []domain.EntryKind{
		domain.EntryAssigned,
		domain.EntryEscalated,
		// escalation released the ledger row, so this is a fresh
		// assignment rather than a supersede
		domain.EntryAssigned,
		domain.EntrySolved,
		domain.EntryClosedByClient,
		domain.EntryReopenedByClient,
		domain.EntryClosedBySupervisor,
	}, kinds)

	// ledger: handler A's row was deleted on escalate, B's row remains
	history, err := assignSvc.History(ctx, supervisor, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, handlerB.ID, history[0].HandlerID)
}
