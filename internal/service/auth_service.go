package service

import (
	"context"
	"strings"
	"time"

	"github.com/tiback/helpdesk/internal/auth"
	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/repository"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

// AuthService registers actors and issues access tokens. Email
// uniqueness is scoped per role, so the same address may hold a client
// account and a handler account.
type AuthService struct {
	actors     repository.ActorRepository
	tokens     *auth.TokenManager
	bcryptCost int
}

// NewAuthService constructs the service.
func NewAuthService(actors repository.ActorRepository, tokens *auth.TokenManager, bcryptCost int) *AuthService {
	return &AuthService{actors: actors, tokens: tokens, bcryptCost: bcryptCost}
}

// RegisterInput is the actor registration payload. The optional
// profile fields only apply to some roles and are stored as given.
type RegisterInput struct {
	Role      domain.ActorRole
	Name      string
	Email     string
	Password  string
	Phone     *string
	Address   *string
	Specialty *string
	Area      *string
}

// LoginResult carries the issued token alongside the actor.
type LoginResult struct {
	Actor     *domain.Actor
	Token     string
	ExpiresAt time.Time
}

// Register creates an actor in the directory.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Actor, error) {
	if !domain.ValidRole(input.Role) {
		return nil, apperrors.NewConstraintViolation("unknown role", map[string]any{"role": input.Role})
	}
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewConstraintViolation("name, email and password required", nil)
	}

	if existing, err := s.actors.GetByEmail(ctx, input.Role, email); err == nil && existing != nil {
		return nil, apperrors.NewConstraintViolation("email already registered for role", map[string]any{
			"role":  input.Role,
			"email": email,
		})
	} else if err != nil && !isNoRows(err) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	actor := &domain.Actor{
		Role:         input.Role,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Phone:        input.Phone,
		Address:      input.Address,
		Specialty:    input.Specialty,
		Area:         input.Area,
	}
	if err := s.actors.Create(ctx, actor); err != nil {
		return nil, apperrors.MapError(err)
	}
	return actor, nil
}

// Login verifies credentials for a role and issues a token. The
// response does not reveal whether the email or the password was
// wrong.
func (s *AuthService) Login(ctx context.Context, role domain.ActorRole, email, password string) (*LoginResult, error) {
	if !domain.ValidRole(role) {
		return nil, apperrors.NewConstraintViolation("unknown role", map[string]any{"role": role})
	}
	email = strings.ToLower(strings.TrimSpace(email))

	actor, err := s.actors.GetByEmail(ctx, role, email)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(actor.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(actor.ID, actor.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Actor: actor, Token: token, ExpiresAt: expiresAt}, nil
}

// ListActors returns the directory page for one role. Staff listings
// back the supervisor's dispatch view.
func (s *AuthService) ListActors(ctx context.Context, actor domain.ActorRef, role domain.ActorRole, limit, offset int) ([]domain.Actor, error) {
	if actor.Role != domain.RoleSupervisor && actor.Role != domain.RoleAdministrator {
		return nil, apperrors.NewPermissionDenied("supervisor or administrator role required")
	}
	if !domain.ValidRole(role) {
		return nil, apperrors.NewConstraintViolation("unknown role", map[string]any{"role": role})
	}
	actors, err := s.actors.List(ctx, role, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return actors, nil
}
