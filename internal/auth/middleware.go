package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/repository"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Actor *domain.Actor
}

// Ref returns the opaque (id, role) pair services operate on.
func (p *Principal) Ref() domain.ActorRef {
	return domain.ActorRef{ID: p.Actor.ID, Role: p.Actor.Role}
}

// Middleware validates bearer tokens and loads principals.
type Middleware struct {
	tokens *TokenManager
	actors repository.ActorRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, actors repository.ActorRepository) *Middleware {
	return &Middleware{tokens: tokens, actors: actors}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	actor, err := m.actors.GetByID(c.Context(), claims.ActorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("actor not found")
		}
		return apperrors.MapError(err)
	}
	if actor.Role != claims.Role {
		return apperrors.NewUnauthorized("role mismatch")
	}

	c.Locals(principalKey, &Principal{Actor: actor})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
