package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tiback/helpdesk/internal/api/dto"
	"github.com/tiback/helpdesk/internal/auth"
	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/service"
	apperrors "github.com/tiback/helpdesk/pkg/util"
)

// CommentsHandler exposes remarks and the two per-ticket chats.
type CommentsHandler struct {
	service *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{service: commentService}
}

// AddComment POST /tickets/:id/comments.
func (h *CommentsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewConstraintViolation("invalid payload", nil)
	}
	entry, err := h.service.AddComment(c.Context(), principal.Ref(), c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": entryResponse(entry)})
}

// ListComments GET /tickets/:id/comments.
func (h *CommentsHandler) ListComments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	entries, err := h.service.ListComments(c.Context(), principal.Ref(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entryResponses(entries)})
}

// SendChat POST /tickets/:id/chats/:conversation.
func (h *CommentsHandler) SendChat(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewConstraintViolation("invalid payload", nil)
	}
	conversation := domain.ChatKind(c.Params("conversation"))
	entry, err := h.service.SendChat(c.Context(), principal.Ref(), c.Params("id"), conversation, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": entryResponse(entry)})
}

// ListChat GET /tickets/:id/chats/:conversation.
func (h *CommentsHandler) ListChat(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	conversation := domain.ChatKind(c.Params("conversation"))
	entries, err := h.service.ListChat(c.Context(), principal.Ref(), c.Params("id"), conversation)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entryResponses(entries)})
}
