package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiback/helpdesk/internal/domain"
)

// AssignmentRepository is the assignment ledger: historical rows
// accumulate per ticket, the active one is the latest by timestamp,
// and escalation deletes the active row outright.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	// ActiveByTicket returns the most recent assignment for the
	// ticket, or pgx.ErrNoRows when the ticket is unassigned.
	ActiveByTicket(ctx context.Context, ticketID string) (*domain.Assignment, error)
	// DeleteActive removes the active row if it belongs to the given
	// handler; pgx.ErrNoRows when no such active row exists.
	DeleteActive(ctx context.Context, ticketID, handlerID string) error
	// DeleteActiveByTicket removes the active row regardless of
	// handler. Used when a new assignment supersedes the current one;
	// a no-op when the ticket is unassigned.
	DeleteActiveByTicket(ctx context.Context, ticketID string) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository instantiates the ledger.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO assignments (ticket_id, supervisor_id, handler_id)
        VALUES ($1,$2,$3)
        RETURNING id, assigned_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		assignment.TicketID,
		assignment.SupervisorID,
		assignment.HandlerID,
	).Scan(&assignment.ID, &assignment.AssignedAt)
}

func (r *assignmentRepository) ActiveByTicket(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	const query = `
        SELECT id, ticket_id, supervisor_id, handler_id, assigned_at
        FROM assignments WHERE ticket_id=$1
        ORDER BY assigned_at DESC, id DESC LIMIT 1`
	var assignment domain.Assignment
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, ticketID).Scan(
		&assignment.ID,
		&assignment.TicketID,
		&assignment.SupervisorID,
		&assignment.HandlerID,
		&assignment.AssignedAt,
	); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepository) DeleteActive(ctx context.Context, ticketID, handlerID string) error {
	const query = `
        DELETE FROM assignments
        WHERE id = (
            SELECT id FROM assignments WHERE ticket_id=$1
            ORDER BY assigned_at DESC, id DESC LIMIT 1)
          AND handler_id = $2`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query, ticketID, handlerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRepository) DeleteActiveByTicket(ctx context.Context, ticketID string) error {
	const query = `
        DELETE FROM assignments
        WHERE id = (
            SELECT id FROM assignments WHERE ticket_id=$1
            ORDER BY assigned_at DESC, id DESC LIMIT 1)`
	_, err := querierFrom(ctx, r.pool).Exec(ctx, query, ticketID)
	return err
}

func (r *assignmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Assignment, error) {
	const query = `
        SELECT id, ticket_id, supervisor_id, handler_id, assigned_at
        FROM assignments WHERE ticket_id=$1 ORDER BY assigned_at ASC, id ASC`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var assignment domain.Assignment
		if err := rows.Scan(
			&assignment.ID,
			&assignment.TicketID,
			&assignment.SupervisorID,
			&assignment.HandlerID,
			&assignment.AssignedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}
