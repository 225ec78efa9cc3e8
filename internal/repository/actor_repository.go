package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiback/helpdesk/internal/domain"
)

const actorColumns = `id, role, name, email, password_hash, phone, address,
       specialty, area, created_at, updated_at`

// ActorRepository is the actor directory backing the identity layer.
type ActorRepository interface {
	Create(ctx context.Context, actor *domain.Actor) error
	GetByID(ctx context.Context, id string) (*domain.Actor, error)
	GetByEmail(ctx context.Context, role domain.ActorRole, email string) (*domain.Actor, error)
	List(ctx context.Context, role domain.ActorRole, limit, offset int) ([]domain.Actor, error)
}

type actorRepository struct {
	pool *pgxpool.Pool
}

// NewActorRepository instantiates the directory.
func NewActorRepository(pool *pgxpool.Pool) ActorRepository {
	return &actorRepository{pool: pool}
}

func (r *actorRepository) Create(ctx context.Context, actor *domain.Actor) error {
	const query = `
        INSERT INTO actors (role, name, email, password_hash, phone, address, specialty, area)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		actor.Role,
		actor.Name,
		actor.Email,
		actor.PasswordHash,
		actor.Phone,
		actor.Address,
		actor.Specialty,
		actor.Area,
	).Scan(&actor.ID, &actor.CreatedAt, &actor.UpdatedAt)
}

func (r *actorRepository) GetByID(ctx context.Context, id string) (*domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *actorRepository) GetByEmail(ctx context.Context, role domain.ActorRole, email string) (*domain.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors WHERE role=$1 AND email=$2`
	var actor domain.Actor
	if err := scanActor(querierFrom(ctx, r.pool).QueryRow(ctx, query, role, email), &actor); err != nil {
		return nil, err
	}
	return &actor, nil
}

func (r *actorRepository) List(ctx context.Context, role domain.ActorRole, limit, offset int) ([]domain.Actor, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + actorColumns + ` FROM actors WHERE role=$1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, role, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Actor
	for rows.Next() {
		var actor domain.Actor
		if err := scanActor(rows, &actor); err != nil {
			return nil, err
		}
		result = append(result, actor)
	}
	return result, rows.Err()
}

func (r *actorRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Actor, error) {
	var actor domain.Actor
	if err := scanActor(querierFrom(ctx, r.pool).QueryRow(ctx, query, arg), &actor); err != nil {
		return nil, err
	}
	return &actor, nil
}

func scanActor(row pgx.Row, actor *domain.Actor) error {
	return row.Scan(
		&actor.ID,
		&actor.Role,
		&actor.Name,
		&actor.Email,
		&actor.PasswordHash,
		&actor.Phone,
		&actor.Address,
		&actor.Specialty,
		&actor.Area,
		&actor.CreatedAt,
		&actor.UpdatedAt,
	)
}
