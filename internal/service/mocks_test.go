package service

import (
	"context"
	"sync"

	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/events"
	"github.com/tiback/helpdesk/internal/repository"
)

// Function-field fakes keep each test's behavior next to its
// assertions instead of a shared expectation registry.

type fakeTicketRepo struct {
	CreateFn       func(ctx context.Context, ticket *domain.Ticket) error
	GetByIDFn      func(ctx context.Context, id string) (*domain.Ticket, error)
	GetForUpdateFn func(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateFn       func(ctx context.Context, ticket *domain.Ticket) error
	DeleteFn       func(ctx context.Context, id string) error
	ListFn         func(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
	ListBacklogFn  func(ctx context.Context, handlerID string) ([]domain.Ticket, error)
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	return f.CreateFn(ctx, ticket)
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return f.GetByIDFn(ctx, id)
}

func (f *fakeTicketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return f.GetForUpdateFn(ctx, id)
}

func (f *fakeTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	return f.UpdateFn(ctx, ticket)
}

func (f *fakeTicketRepo) Delete(ctx context.Context, id string) error {
	return f.DeleteFn(ctx, id)
}

func (f *fakeTicketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return f.ListFn(ctx, filter)
}

func (f *fakeTicketRepo) ListBacklog(ctx context.Context, handlerID string) ([]domain.Ticket, error) {
	return f.ListBacklogFn(ctx, handlerID)
}

type fakeAssignmentRepo struct {
	CreateFn               func(ctx context.Context, assignment *domain.Assignment) error
	ActiveByTicketFn       func(ctx context.Context, ticketID string) (*domain.Assignment, error)
	DeleteActiveFn         func(ctx context.Context, ticketID, handlerID string) error
	DeleteActiveByTicketFn func(ctx context.Context, ticketID string) error
	ListByTicketFn         func(ctx context.Context, ticketID string) ([]domain.Assignment, error)
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, assignment *domain.Assignment) error {
	return f.CreateFn(ctx, assignment)
}

func (f *fakeAssignmentRepo) ActiveByTicket(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	return f.ActiveByTicketFn(ctx, ticketID)
}

func (f *fakeAssignmentRepo) DeleteActive(ctx context.Context, ticketID, handlerID string) error {
	return f.DeleteActiveFn(ctx, ticketID, handlerID)
}

func (f *fakeAssignmentRepo) DeleteActiveByTicket(ctx context.Context, ticketID string) error {
	return f.DeleteActiveByTicketFn(ctx, ticketID)
}

func (f *fakeAssignmentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Assignment, error) {
	return f.ListByTicketFn(ctx, ticketID)
}

type fakeAuditRepo struct {
	AppendFn       func(ctx context.Context, entry *domain.AuditEntry) error
	ListByTicketFn func(ctx context.Context, ticketID string) ([]domain.AuditEntry, error)
	ListByKindFn   func(ctx context.Context, ticketID string, kind domain.EntryKind) ([]domain.AuditEntry, error)
}

func (f *fakeAuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	return f.AppendFn(ctx, entry)
}

func (f *fakeAuditRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error) {
	return f.ListByTicketFn(ctx, ticketID)
}

func (f *fakeAuditRepo) ListByKind(ctx context.Context, ticketID string, kind domain.EntryKind) ([]domain.AuditEntry, error) {
	return f.ListByKindFn(ctx, ticketID, kind)
}

type fakeActorRepo struct {
	CreateFn     func(ctx context.Context, actor *domain.Actor) error
	GetByIDFn    func(ctx context.Context, id string) (*domain.Actor, error)
	GetByEmailFn func(ctx context.Context, role domain.ActorRole, email string) (*domain.Actor, error)
	ListFn       func(ctx context.Context, role domain.ActorRole, limit, offset int) ([]domain.Actor, error)
}

func (f *fakeActorRepo) Create(ctx context.Context, actor *domain.Actor) error {
	return f.CreateFn(ctx, actor)
}

func (f *fakeActorRepo) GetByID(ctx context.Context, id string) (*domain.Actor, error) {
	return f.GetByIDFn(ctx, id)
}

func (f *fakeActorRepo) GetByEmail(ctx context.Context, role domain.ActorRole, email string) (*domain.Actor, error) {
	return f.GetByEmailFn(ctx, role, email)
}

func (f *fakeActorRepo) List(ctx context.Context, role domain.ActorRole, limit, offset int) ([]domain.Actor, error) {
	return f.ListFn(ctx, role, limit, offset)
}

// passthroughTx runs the function directly, with no transaction.
type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// capturingPublisher records every publish for assertions. Safe for
// concurrent publishers.
type capturingPublisher struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	Channels []string
	Event    events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, channels []string, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedEvent{Channels: channels, Event: event})
}

func (p *capturingPublisher) byKind(kind events.Kind) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []publishedEvent
	for _, pe := range p.published {
		if pe.Event.Kind == kind {
			matched = append(matched, pe)
		}
	}
	return matched
}
