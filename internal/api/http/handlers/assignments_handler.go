package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tiback/helpdesk/internal/api/dto"
	"github.com/tiback/helpdesk/internal/auth"
	"github.com/tiback/helpdesk/internal/service"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

// AssignmentsHandler exposes dispatch endpoints.
type AssignmentsHandler struct {
	service *service.AssignmentService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignmentService *service.AssignmentService) *AssignmentsHandler {
	return &AssignmentsHandler{service: assignmentService}
}

// Assign POST /tickets/:id/assignment.
func (h *AssignmentsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewConstraintViolation("invalid payload", nil)
	}
	if req.HandlerID == "" {
		return apperrors.NewConstraintViolation("handler_id required", nil)
	}
	assignment, err := h.service.Assign(c.Context(), principal.Ref(), c.Params("id"), req.HandlerID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// History GET /tickets/:id/assignments.
func (h *AssignmentsHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	history, err := h.service.History(c.Context(), principal.Ref(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponses(history)})
}
