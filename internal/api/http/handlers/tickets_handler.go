package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tiback/helpdesk/internal/api/dto"
	"github.com/tiback/helpdesk/internal/auth"
	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/service"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewConstraintViolation("invalid payload", nil)
	}
	ticket, err := h.service.Submit(c.Context(), principal.Ref(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	detail, err := h.service.Get(c.Context(), principal.Ref(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(detail)})
}

// ListMine GET /tickets (client's own tickets).
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit, offset := parsePage(c)
	tickets, err := h.service.ListForClient(c.Context(), principal.Ref(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// Backlog GET /tickets/backlog (handler's open queue).
func (h *TicketsHandler) Backlog(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.service.Backlog(c.Context(), principal.Ref())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// ListAll GET /tickets/all (dispatch view).
func (h *TicketsHandler) ListAll(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var states []domain.TicketState
	if stateStr := c.Query("state"); stateStr != "" {
		for _, part := range strings.Split(stateStr, ",") {
			states = append(states, domain.TicketState(strings.TrimSpace(part)))
		}
	}
	limit, offset := parsePage(c)
	tickets, err := h.service.List(c.Context(), principal.Ref(), states, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// Transition POST /tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewConstraintViolation("invalid payload", nil)
	}
	ticket, err := h.service.Transition(c.Context(), principal.Ref(), c.Params("id"), service.TransitionInput{
		To:            req.To,
		Rating:        req.Rating,
		RatingComment: req.RatingComment,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// RequestReopen POST /tickets/:id/reopen-request.
func (h *TicketsHandler) RequestReopen(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.RequestReopen(c.Context(), principal.Ref(), c.Params("id")); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"status": "requested"}})
}

// Rate POST /tickets/:id/rating.
func (h *TicketsHandler) Rate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewConstraintViolation("invalid payload", nil)
	}
	ticket, err := h.service.Rate(c.Context(), principal.Ref(), c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Purge DELETE /tickets/:id.
func (h *TicketsHandler) Purge(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Purge(c.Context(), principal.Ref(), c.Params("id")); err != nil {
		return err
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}
