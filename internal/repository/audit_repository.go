package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiback/helpdesk/internal/domain"
)

// AuditRepository appends and reads the immutable per-ticket trail.
// Entries are never mutated after the fact; retrieval is timestamp
// ascending.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error)
	ListByKind(ctx context.Context, ticketID string, kind domain.EntryKind) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository instantiates the trail writer.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (ticket_id, kind, client_id, handler_id, supervisor_id, body)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		entry.TicketID,
		entry.Kind,
		entry.ClientID,
		entry.HandlerID,
		entry.SupervisorID,
		entry.Body,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, ticket_id, kind, client_id, handler_id, supervisor_id, body, created_at
        FROM audit_entries WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *auditRepository) ListByKind(ctx context.Context, ticketID string, kind domain.EntryKind) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, ticket_id, kind, client_id, handler_id, supervisor_id, body, created_at
        FROM audit_entries WHERE ticket_id=$1 AND kind=$2 ORDER BY created_at ASC, id ASC`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, ticketID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Kind,
			&entry.ClientID,
			&entry.HandlerID,
			&entry.SupervisorID,
			&entry.Body,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
