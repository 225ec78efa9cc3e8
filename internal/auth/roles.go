package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tiback/helpdesk/internal/domain"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

// RequireRole ensures the principal carries one of the allowed roles.
// With no arguments it only requires authentication.
func RequireRole(allowed ...domain.ActorRole) fiber.Handler {
	allowedSet := make(map[domain.ActorRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Actor == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Actor.Role]; !exists {
			return apperrors.NewPermissionDenied("insufficient role")
		}
		return c.Next()
	}
}
