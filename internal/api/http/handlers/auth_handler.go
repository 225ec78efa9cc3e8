package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tiback/helpdesk/internal/api/dto"
	"github.com/tiback/helpdesk/internal/auth"
	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/service"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

// AuthHandler exposes registration, login and the directory listing.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Register POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewConstraintViolation("invalid payload", nil)
	}
	actor, err := h.service.Register(c.Context(), service.RegisterInput{
		Role:      req.Role,
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
		Address:   req.Address,
		Specialty: req.Specialty,
		Area:      req.Area,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": actorResponse(actor)})
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewConstraintViolation("invalid payload", nil)
	}
	result, err := h.service.Login(c.Context(), req.Role, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Actor:     actorResponse(result.Actor),
	}})
}

// ListActors GET /actors?role=HANDLER.
func (h *AuthHandler) ListActors(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	role := domain.ActorRole(c.Query("role", string(domain.RoleHandler)))
	limit, offset := parsePage(c)
	actors, err := h.service.ListActors(c.Context(), principal.Ref(), role, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ActorResponse, 0, len(actors))
	for i := range actors {
		items = append(items, actorResponse(&actors[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
