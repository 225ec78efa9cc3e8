package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiback/helpdesk/internal/domain"
)

const ticketColumns = `id, client_id, title, description, state, priority,
       rating, rating_comment, rated_at, created_at, updated_at, closed_at`

// TicketFilter captures listing parameters.
type TicketFilter struct {
	ClientID *string
	States   []domain.TicketState
	Limit    int
	Offset   int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate locks the ticket row for the duration of the
	// surrounding transaction, serializing concurrent transitions.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListBacklog computes a handler's open backlog at read time: an
	// active assignment to the handler, no escalation by that handler
	// newer than the assignment, and a non-terminal state.
	ListBacklog(ctx context.Context, handlerID string) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (client_id, title, description, state, priority)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		ticket.ClientID,
		ticket.Title,
		ticket.Description,
		ticket.State,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(querierFrom(ctx, r.pool).QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, state=$3, priority=$4,
            rating=$5, rating_comment=$6, rated_at=$7, closed_at=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.State,
		ticket.Priority,
		ticket.Rating,
		ticket.RatingComment,
		ticket.RatedAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			args = append(args, state)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("state IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListBacklog(ctx context.Context, handlerID string) ([]domain.Ticket, error) {
	const query = `
        SELECT t.id, t.client_id, t.title, t.description, t.state, t.priority,
               t.rating, t.rating_comment, t.rated_at, t.created_at, t.updated_at, t.closed_at
        FROM tickets t
        JOIN assignments a ON a.ticket_id = t.id AND a.handler_id = $1
        WHERE a.assigned_at = (
                SELECT MAX(a2.assigned_at) FROM assignments a2 WHERE a2.ticket_id = t.id)
          AND t.state NOT IN ($2, $3)
          AND NOT EXISTS (
                SELECT 1 FROM audit_entries e
                WHERE e.ticket_id = t.id
                  AND e.kind = $4
                  AND e.handler_id = $1
                  AND e.created_at > a.assigned_at)
        ORDER BY t.updated_at DESC`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query,
		handlerID,
		domain.StateClosed,
		domain.StateClosedBySupervisor,
		domain.EntryEscalated,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ClientID,
		&ticket.Title,
		&ticket.Description,
		&ticket.State,
		&ticket.Priority,
		&ticket.Rating,
		&ticket.RatingComment,
		&ticket.RatedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
